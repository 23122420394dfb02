package session

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	xerrors "Vestify-Chain/internal/errors"
)

type stubProvider struct {
	account   common.Address
	chainIDs  []*big.Int
	calls     int
	accessErr error
}

func (p *stubProvider) RequestAccess(context.Context) (common.Address, error) {
	if p.accessErr != nil {
		return common.Address{}, p.accessErr
	}
	return p.account, nil
}

// ChainID 依次返回配置的序列，最后一个值之后保持不变。
func (p *stubProvider) ChainID(context.Context) (*big.Int, error) {
	idx := p.calls
	if idx >= len(p.chainIDs) {
		idx = len(p.chainIDs) - 1
	}
	p.calls++
	return new(big.Int).Set(p.chainIDs[idx]), nil
}

func (p *stubProvider) Signer(context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: p.account}, nil
}

func (p *stubProvider) Backend() Backend { return nil }

func (p *stubProvider) Close() {}

func TestConnectEstablishesSession(t *testing.T) {
	provider := &stubProvider{
		account:  common.HexToAddress("0x4000000000000000000000000000000000000004"),
		chainIDs: []*big.Int{big.NewInt(11155111)},
	}
	mgr := NewManager(provider, 11155111, "Sepolia")

	current, err := mgr.Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !current.Connected || current.Account != provider.account {
		t.Fatalf("unexpected session: %+v", current)
	}
	if current.ChainID.Uint64() != 11155111 {
		t.Fatalf("unexpected chain id: %s", current.ChainID)
	}
}

func TestConnectWrongNetworkKeepsSession(t *testing.T) {
	provider := &stubProvider{
		account:  common.HexToAddress("0x4000000000000000000000000000000000000004"),
		chainIDs: []*big.Int{big.NewInt(1)},
	}
	mgr := NewManager(provider, 11155111, "Sepolia")

	current, err := mgr.Connect(context.Background())
	if xerrors.CodeOf(err) != CodeWrongNetwork {
		t.Fatalf("expected %s, got %v", CodeWrongNetwork, err)
	}
	// 网络不匹配时连接依然建立，与事务前置检查的快速失败不同。
	if !current.Connected {
		t.Fatalf("session should be established on wrong network")
	}
	if !mgr.Current().Connected {
		t.Fatalf("manager must keep the session")
	}
}

func TestConnectRejection(t *testing.T) {
	provider := &stubProvider{accessErr: ErrUserRejected}
	mgr := NewManager(provider, 11155111, "Sepolia")

	_, err := mgr.Connect(context.Background())
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected user rejection, got %v", err)
	}
	if mgr.Current().Connected {
		t.Fatalf("session must not be established on rejection")
	}
}

func TestRequireNetworkRereadsChainID(t *testing.T) {
	provider := &stubProvider{
		account: common.HexToAddress("0x4000000000000000000000000000000000000004"),
		// 连接时在正确网络，随后切换到错误网络。
		chainIDs: []*big.Int{big.NewInt(11155111), big.NewInt(1)},
	}
	mgr := NewManager(provider, 11155111, "Sepolia")

	if _, err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := mgr.RequireNetwork(context.Background()); xerrors.CodeOf(err) != CodeWrongNetwork {
		t.Fatalf("expected %s after network switch, got %v", CodeWrongNetwork, err)
	}
	// 最新读取到的网络标识要回写到会话。
	if got := mgr.Current().ChainID.Uint64(); got != 1 {
		t.Fatalf("session chain id not refreshed, got %d", got)
	}
}

func TestRequireNetworkWithoutSession(t *testing.T) {
	provider := &stubProvider{chainIDs: []*big.Int{big.NewInt(11155111)}}
	mgr := NewManager(provider, 11155111, "Sepolia")

	if err := mgr.RequireNetwork(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	if _, err := mgr.CurrentSigner(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	if _, err := mgr.Backend(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	provider := &stubProvider{
		account:  common.HexToAddress("0x4000000000000000000000000000000000000004"),
		chainIDs: []*big.Int{big.NewInt(11155111)},
	}
	mgr := NewManager(provider, 11155111, "Sepolia")

	if _, err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	mgr.Disconnect()
	mgr.Disconnect()
	if mgr.Current().Connected {
		t.Fatalf("expected disconnected session")
	}
}
