package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"Vestify-Chain/internal/config"
	xerrors "Vestify-Chain/internal/errors"
)

// CodeInvalidAddress 表示配置的合约地址格式非法，属于配置期错误。
const CodeInvalidAddress xerrors.Code = "INVALID_ADDRESS"

func init() {
	xerrors.Register(CodeInvalidAddress, xerrors.Attributes{
		Message:   "malformed contract address",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// Token is the typed handle for the token contract's state-changing entry
// points. Both return a broadcast transaction that can be awaited for
// confirmation.
type Token interface {
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
	Mint(opts *bind.TransactOpts, recipient common.Address, amount *big.Int) (*types.Transaction, error)
}

// Vesting is the typed handle for the vesting contract.
type Vesting interface {
	CreateVestingSchedule(opts *bind.TransactOpts, amount *big.Int, beneficiary common.Address, stakeholderType uint8, releaseTime *big.Int, organisationName, description string) (*types.Transaction, error)
	WhitelistAddress(opts *bind.TransactOpts, beneficiary common.Address) (*types.Transaction, error)
}

// Gateway produces contract handles bound to the fixed addresses and a given
// backend. It carries no state of its own beyond the configuration.
type Gateway interface {
	Token(backend bind.ContractBackend) (Token, error)
	Vesting(backend bind.ContractBackend) (Vesting, error)
	TokenAddress() common.Address
	VestingAddress() common.Address
}

// Factory 实现 Gateway，持有两份固定的合约地址与解析后的接口描述。
type Factory struct {
	tokenAddr   common.Address
	vestingAddr common.Address
	tokenABI    abi.ABI
	vestingABI  abi.ABI
}

// NewFactory 校验配置的合约地址并预解析接口描述。地址非法会返回
// INVALID_ADDRESS，这类错误应在启动阶段暴露，而不是运行时。
func NewFactory(cfg config.ContractAddresses) (*Factory, error) {
	tokenAddr, err := parseAddress("token", cfg.Token)
	if err != nil {
		return nil, err
	}
	vestingAddr, err := parseAddress("vesting", cfg.Vesting)
	if err != nil {
		return nil, err
	}

	parsedToken, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析 token ABI 失败")
	}
	parsedVesting, err := abi.JSON(strings.NewReader(vestingABI))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析 vesting ABI 失败")
	}

	return &Factory{
		tokenAddr:   tokenAddr,
		vestingAddr: vestingAddr,
		tokenABI:    parsedToken,
		vestingABI:  parsedVesting,
	}, nil
}

func parseAddress(name, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, xerrors.New(CodeInvalidAddress,
			fmt.Sprintf("%s 合约地址非法: %q", name, raw))
	}
	return common.HexToAddress(trimmed), nil
}

// Token returns a token handle bound to the given backend.
func (f *Factory) Token(backend bind.ContractBackend) (Token, error) {
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "合约后端不能为空")
	}
	return &boundToken{
		contract: bind.NewBoundContract(f.tokenAddr, f.tokenABI, backend, backend, backend),
	}, nil
}

// Vesting returns a vesting handle bound to the given backend.
func (f *Factory) Vesting(backend bind.ContractBackend) (Vesting, error) {
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "合约后端不能为空")
	}
	return &boundVesting{
		contract: bind.NewBoundContract(f.vestingAddr, f.vestingABI, backend, backend, backend),
	}, nil
}

// TokenAddress returns the fixed token contract address.
func (f *Factory) TokenAddress() common.Address {
	return f.tokenAddr
}

// VestingAddress returns the fixed vesting contract address. It doubles as
// the approval spender in the vesting workflow.
func (f *Factory) VestingAddress() common.Address {
	return f.vestingAddr
}

type boundToken struct {
	contract *bind.BoundContract
}

func (t *boundToken) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "approve", spender, amount)
}

func (t *boundToken) Mint(opts *bind.TransactOpts, recipient common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "mint", recipient, amount)
}

type boundVesting struct {
	contract *bind.BoundContract
}

func (v *boundVesting) CreateVestingSchedule(opts *bind.TransactOpts, amount *big.Int, beneficiary common.Address, stakeholderType uint8, releaseTime *big.Int, organisationName, description string) (*types.Transaction, error) {
	return v.contract.Transact(opts, "createVestingSchedule", amount, beneficiary, stakeholderType, releaseTime, organisationName, description)
}

func (v *boundVesting) WhitelistAddress(opts *bind.TransactOpts, beneficiary common.Address) (*types.Transaction, error) {
	return v.contract.Transact(opts, "whitelistAddress", beneficiary)
}

var _ Gateway = (*Factory)(nil)
