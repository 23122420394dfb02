package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/pkg/logger"
)

// Backend combines the chain capabilities the workflows need: issuing
// contract calls and querying transaction receipts for confirmation.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Provider is the opaque capability handed to the session layer by a concrete
// signing provider. RequestAccess may block on operator interaction (an
// unlock prompt) and fails when access is denied or no provider is reachable.
// ChainID reads the provider's current network identity; it is consulted
// fresh before every transaction because the network can change underneath an
// established session.
type Provider interface {
	RequestAccess(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Signer(ctx context.Context) (*bind.TransactOpts, error)
	Backend() Backend
	Close()
}

// Session represents one wallet-connected context. The zero value is the
// disconnected state.
type Session struct {
	Connected bool
	Account   common.Address
	ChainID   *big.Int
}

const (
	CodeNotConnected        xerrors.Code = "NOT_CONNECTED"
	CodeWrongNetwork        xerrors.Code = "WRONG_NETWORK"
	CodeUserRejected        xerrors.Code = "USER_REJECTED"
	CodeProviderUnavailable xerrors.Code = "PROVIDER_UNAVAILABLE"
)

var (
	// ErrNotConnected 表示当前没有活跃的签名会话。
	ErrNotConnected = xerrors.New(CodeNotConnected, "no active wallet session")
	// ErrUserRejected 表示签名提供方拒绝了访问或签名请求。
	ErrUserRejected = xerrors.New(CodeUserRejected, "signing request rejected")
	// ErrProviderUnavailable 表示环境中没有可用的签名提供方。
	ErrProviderUnavailable = xerrors.New(CodeProviderUnavailable, "no signing provider available")
)

func init() {
	xerrors.Register(CodeNotConnected, xerrors.Attributes{
		Message:   "no active wallet session",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeWrongNetwork, xerrors.Attributes{
		Message:   "connected to the wrong network",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeUserRejected, xerrors.Attributes{
		Message:   "signing request rejected",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeProviderUnavailable, xerrors.Attributes{
		Message:   "no signing provider available",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}

// Manager 持有进程内唯一的签名会话，所有会话状态变更都经过它。
type Manager struct {
	mu       sync.RWMutex
	provider Provider
	required *big.Int
	network  string
	session  Session
}

// NewManager 构造会话管理器。requiredChainID 与 networkName 来自合约配置，
// 进程生命周期内不变。
func NewManager(provider Provider, requiredChainID uint64, networkName string) *Manager {
	return &Manager{
		provider: provider,
		required: new(big.Int).SetUint64(requiredChainID),
		network:  networkName,
	}
}

// Connect 向签名提供方请求账户访问并建立会话。与事务操作不同，连接在网络
// 不匹配时仍会保留已建立的会话（与原始行为一致），同时返回 WRONG_NETWORK
// 错误；此后所有事务操作都会在 RequireNetwork 上快速失败，直到网络切换回来。
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	if m == nil || m.provider == nil {
		return Session{}, ErrProviderUnavailable
	}

	account, err := m.provider.RequestAccess(ctx)
	if err != nil {
		if _, ok := xerrors.From(err); ok {
			return Session{}, err
		}
		return Session{}, xerrors.Wrap(CodeProviderUnavailable, err, "请求账户访问失败")
	}

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return Session{}, xerrors.Wrap(CodeProviderUnavailable, err, "读取网络标识失败")
	}

	m.mu.Lock()
	m.session = Session{
		Connected: true,
		Account:   account,
		ChainID:   new(big.Int).Set(chainID),
	}
	current := m.session
	m.mu.Unlock()

	logger.Audit().Info("wallet_connected",
		"account", account.Hex(),
		"chain_id", chainID.String(),
	)

	if chainID.Cmp(m.required) != 0 {
		return current, m.wrongNetwork(chainID)
	}
	return current, nil
}

// Disconnect 清除会话状态。对未连接的会话调用是安全的空操作。
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasConnected := m.session.Connected
	m.session = Session{}
	m.mu.Unlock()

	if wasConnected {
		logger.Audit().Info("wallet_disconnected")
	}
}

// Current returns a copy of the session state.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	current := m.session
	if current.ChainID != nil {
		current.ChainID = new(big.Int).Set(current.ChainID)
	}
	return current
}

// RequireNetwork 在每次发起交易前调用：重新读取提供方的网络标识并与配置的
// 网络比对，不一致时返回 WRONG_NETWORK。读取到的最新值会回写到会话上。
func (m *Manager) RequireNetwork(ctx context.Context) error {
	m.mu.RLock()
	connected := m.session.Connected
	m.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return xerrors.Wrap(CodeProviderUnavailable, err, "读取网络标识失败")
	}

	m.mu.Lock()
	if m.session.Connected {
		m.session.ChainID = new(big.Int).Set(chainID)
	}
	m.mu.Unlock()

	if chainID.Cmp(m.required) != 0 {
		return m.wrongNetwork(chainID)
	}
	return nil
}

// CurrentSigner 返回绑定到活跃会话的交易签名器。
func (m *Manager) CurrentSigner(ctx context.Context) (*bind.TransactOpts, error) {
	m.mu.RLock()
	connected := m.session.Connected
	m.mu.RUnlock()
	if !connected {
		return nil, ErrNotConnected
	}
	signer, err := m.provider.Signer(ctx)
	if err != nil {
		if _, ok := xerrors.From(err); ok {
			return nil, err
		}
		return nil, xerrors.Wrap(CodeProviderUnavailable, err, "获取签名器失败")
	}
	return signer, nil
}

// Backend 返回可用于合约调用与回执查询的链后端。
func (m *Manager) Backend() (Backend, error) {
	m.mu.RLock()
	connected := m.session.Connected
	m.mu.RUnlock()
	if !connected {
		return nil, ErrNotConnected
	}
	return m.provider.Backend(), nil
}

// NetworkName returns the human-readable name of the required network.
func (m *Manager) NetworkName() string {
	return m.network
}

// RequiredChainID returns the configured network identifier.
func (m *Manager) RequiredChainID() *big.Int {
	return new(big.Int).Set(m.required)
}

func (m *Manager) wrongNetwork(actual *big.Int) error {
	return xerrors.New(CodeWrongNetwork,
		fmt.Sprintf("please switch to the %s network", m.network),
		xerrors.WithMetadata("expected_chain_id", m.required.String()),
		xerrors.WithMetadata("actual_chain_id", actual.String()),
	)
}
