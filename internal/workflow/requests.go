package workflow

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Vestify-Chain/internal/errors"
)

// StakeholderType 是归属计划的受益人类别，按枚举序号上链。
type StakeholderType uint8

const (
	StakeholderNone StakeholderType = iota
	StakeholderFounder
	StakeholderInvestor
	StakeholderCommunity
	StakeholderPreSale
)

var stakeholderNames = [...]string{"None", "Founder", "Investor", "Community", "PreSale"}

// String returns the display name of the stakeholder category.
func (s StakeholderType) String() string {
	if int(s) < len(stakeholderNames) {
		return stakeholderNames[s]
	}
	return fmt.Sprintf("StakeholderType(%d)", uint8(s))
}

// Valid reports whether the value is one of the defined categories.
func (s StakeholderType) Valid() bool {
	return int(s) < len(stakeholderNames)
}

// ParseStakeholderType 接受类别名称或其序号字符串。
func ParseStakeholderType(raw string) (StakeholderType, error) {
	trimmed := strings.TrimSpace(raw)
	for idx, name := range stakeholderNames {
		if strings.EqualFold(trimmed, name) || trimmed == fmt.Sprintf("%d", idx) {
			return StakeholderType(idx), nil
		}
	}
	return StakeholderNone, xerrors.New(CodeIncompleteRequest,
		fmt.Sprintf("未知的受益人类别: %q", raw))
}

// MaxMintAmount 是铸币工作流的策略上限，在提交前本地拦截，
// 不依赖合约侧限制。
const MaxMintAmount = 300

// VestingScheduleRequest 在六个字段齐备后构造，提交编排器后不可变。
// ReleaseTime 不在本系统内强制要求晚于当前时间，未来性由合约侧裁决。
type VestingScheduleRequest struct {
	Amount           *big.Int
	Beneficiary      common.Address
	StakeholderType  StakeholderType
	ReleaseTime      int64
	OrganisationName string
	Description      string
}

// Validate 检查请求是否完整，缺失字段会被逐一列出。校验完全在本地完成，
// 不触发任何网络调用。
func (r VestingScheduleRequest) Validate() error {
	var missing []string
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		missing = append(missing, "amount")
	}
	if r.Beneficiary == (common.Address{}) {
		missing = append(missing, "beneficiary")
	}
	if !r.StakeholderType.Valid() {
		missing = append(missing, "stakeholderType")
	}
	if r.ReleaseTime <= 0 {
		missing = append(missing, "releaseTime")
	}
	if strings.TrimSpace(r.OrganisationName) == "" {
		missing = append(missing, "organisationName")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return incompleteRequest(missing)
	}
	return nil
}

// MintRequest 描述一次测试代币铸造。
type MintRequest struct {
	Recipient common.Address
	Amount    int64
}

// Validate 检查收款地址与铸造数量（0 到 MaxMintAmount）。
func (r MintRequest) Validate() error {
	var missing []string
	if r.Recipient == (common.Address{}) {
		missing = append(missing, "recipient")
	}
	if len(missing) > 0 {
		return incompleteRequest(missing)
	}
	if r.Amount < 0 || r.Amount > MaxMintAmount {
		return xerrors.New(CodeIncompleteRequest,
			fmt.Sprintf("铸造数量 %d 超出允许区间 [0, %d]", r.Amount, MaxMintAmount))
	}
	return nil
}

// WhitelistRequest 描述一次受益人白名单操作。
type WhitelistRequest struct {
	Address common.Address
}

// Validate 检查目标地址是否给出。
func (r WhitelistRequest) Validate() error {
	if r.Address == (common.Address{}) {
		return incompleteRequest([]string{"address"})
	}
	return nil
}

func incompleteRequest(missing []string) error {
	return xerrors.New(CodeIncompleteRequest,
		fmt.Sprintf("缺少必填字段: %s", strings.Join(missing, ", ")))
}
