// Package keyed implements the session.Provider capability on top of a JSON
// RPC endpoint and locally held key material, either an encrypted keystore
// file unlocked with an operator passphrase or a raw private key taken from
// the environment.
package keyed

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/session"
)

// Config describes how to construct a keyed signing provider.
type Config struct {
	RPCURL        string
	KeystorePath  string
	PassphraseEnv string
	PrivateKeyEnv string
}

// Provider dials the configured RPC endpoint and signs with a local key.
type Provider struct {
	mu        sync.Mutex
	rpcClient *gethrpc.Client
	eth       *ethclient.Client

	keystorePath  string
	passphraseEnv string
	privateKeyEnv string

	key     *ecdsa.PrivateKey
	account common.Address
}

// NewProvider 连接配置的 RPC 端点并返回签名提供方。密钥在首次
// RequestAccess 时才会解锁。
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(session.CodeProviderUnavailable, "未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(session.CodeProviderUnavailable, err, "连接以太坊节点失败")
	}

	return &Provider{
		rpcClient:     rpcClient,
		eth:           ethclient.NewClient(rpcClient),
		keystorePath:  cfg.KeystorePath,
		passphraseEnv: cfg.PassphraseEnv,
		privateKeyEnv: cfg.PrivateKeyEnv,
	}, nil
}

// RequestAccess unlocks the configured key material and returns the account
// address. A refused or failed keystore unlock is surfaced as USER_REJECTED:
// it is the headless equivalent of the operator denying the access prompt.
func (p *Provider) RequestAccess(_ context.Context) (common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.account, nil
	}

	key, err := p.loadKey()
	if err != nil {
		return common.Address{}, err
	}
	p.key = key
	p.account = crypto.PubkeyToAddress(key.PublicKey)
	return p.account, nil
}

func (p *Provider) loadKey() (*ecdsa.PrivateKey, error) {
	if p.keystorePath != "" {
		content, err := os.ReadFile(p.keystorePath)
		if err != nil {
			return nil, xerrors.Wrap(session.CodeProviderUnavailable, err, "读取 keystore 文件失败")
		}
		passphrase := os.Getenv(p.passphraseEnv)
		if passphrase == "" {
			return nil, xerrors.New(session.CodeUserRejected,
				fmt.Sprintf("keystore 口令未提供（环境变量 %s 为空）", p.passphraseEnv))
		}
		decrypted, err := keystore.DecryptKey(content, passphrase)
		if err != nil {
			return nil, xerrors.Wrap(session.CodeUserRejected, err, "keystore 解锁被拒绝")
		}
		return decrypted.PrivateKey, nil
	}

	if raw := strings.TrimSpace(os.Getenv(p.privateKeyEnv)); raw != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, xerrors.Wrap(session.CodeProviderUnavailable, err, "解析私钥失败")
		}
		return key, nil
	}

	return nil, xerrors.New(session.CodeProviderUnavailable, "未配置任何密钥来源")
}

// ChainID reads the current network identity from the RPC endpoint.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := p.eth.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Wrap(session.CodeProviderUnavailable, err, "获取链 ID 失败")
	}
	return chainID, nil
}

// Signer returns a keyed transactor bound to the unlocked account and the
// endpoint's current chain id.
func (p *Provider) Signer(ctx context.Context) (*bind.TransactOpts, error) {
	if _, err := p.RequestAccess(ctx); err != nil {
		return nil, err
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	key := p.key
	p.mu.Unlock()

	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, xerrors.Wrap(session.CodeProviderUnavailable, err, "构造交易签名器失败")
	}
	return signer, nil
}

// Backend exposes the RPC client as a contract and receipt backend.
func (p *Provider) Backend() session.Backend {
	return p.eth
}

// Close releases the network connection held by the provider.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eth != nil {
		p.eth.Close()
		p.eth = nil
	}
	if p.rpcClient != nil {
		p.rpcClient.Close()
		p.rpcClient = nil
	}
	p.key = nil
}

var _ session.Provider = (*Provider)(nil)
