package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"Vestify-Chain/internal/auth"
	"Vestify-Chain/internal/contracts"
	"Vestify-Chain/internal/form"
	"Vestify-Chain/internal/session"
	"Vestify-Chain/internal/workflow"
)

const testChainID = 11155111

type stubProvider struct {
	account common.Address
	chainID *big.Int
}

func (p *stubProvider) RequestAccess(context.Context) (common.Address, error) {
	return p.account, nil
}

func (p *stubProvider) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(p.chainID), nil
}

func (p *stubProvider) Signer(context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: p.account}, nil
}

func (p *stubProvider) Backend() session.Backend { return nil }

func (p *stubProvider) Close() {}

// stubGateway 同时充当 Token 与 Vesting 句柄。
type stubGateway struct {
	whitelistErr error
	nonce        uint64
}

func (g *stubGateway) Token(bind.ContractBackend) (contracts.Token, error)     { return g, nil }
func (g *stubGateway) Vesting(bind.ContractBackend) (contracts.Vesting, error) { return g, nil }

func (g *stubGateway) TokenAddress() common.Address {
	return common.HexToAddress("0x1000000000000000000000000000000000000001")
}

func (g *stubGateway) VestingAddress() common.Address {
	return common.HexToAddress("0x2000000000000000000000000000000000000002")
}

func (g *stubGateway) tx() *types.Transaction {
	g.nonce++
	to := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	return types.NewTx(&types.LegacyTx{Nonce: g.nonce, To: &to, Gas: 21000, GasPrice: big.NewInt(1)})
}

func (g *stubGateway) Approve(*bind.TransactOpts, common.Address, *big.Int) (*types.Transaction, error) {
	return g.tx(), nil
}

func (g *stubGateway) Mint(*bind.TransactOpts, common.Address, *big.Int) (*types.Transaction, error) {
	return g.tx(), nil
}

func (g *stubGateway) CreateVestingSchedule(*bind.TransactOpts, *big.Int, common.Address, uint8, *big.Int, string, string) (*types.Transaction, error) {
	return g.tx(), nil
}

func (g *stubGateway) WhitelistAddress(*bind.TransactOpts, common.Address) (*types.Transaction, error) {
	if g.whitelistErr != nil {
		return nil, g.whitelistErr
	}
	return g.tx(), nil
}

type stubConfirmer struct{}

func (stubConfirmer) Confirm(_ context.Context, _ session.Backend, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil
}

func newTestServer(t *testing.T, tokens []string, gateway *stubGateway) (*Server, *session.Manager) {
	t.Helper()
	provider := &stubProvider{
		account: common.HexToAddress("0x4000000000000000000000000000000000000004"),
		chainID: big.NewInt(testChainID),
	}
	mgr := session.NewManager(provider, testChainID, "Sepolia")
	orch := workflow.NewOrchestrator(mgr, gateway, workflow.WithConfirmer(stubConfirmer{}))
	t.Cleanup(func() { _ = orch.Close() })
	server := NewServer(":0", mgr, orch, form.NewBuilder(time.UTC), auth.NewService(tokens))
	return server, mgr
}

func do(t *testing.T, server *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	server, _ := newTestServer(t, nil, &stubGateway{})

	rec := do(t, server, http.MethodGet, "/api/v1/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var got struct {
		Session struct {
			Connected bool   `json:"connected"`
			Network   string `json:"network"`
			Stage     string `json:"stage"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Session.Connected || got.Session.Network != "Sepolia" || got.Session.Stage != "minting" {
		t.Fatalf("unexpected session: %+v", got.Session)
	}

	rec = do(t, server, http.MethodPost, "/api/v1/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("connect failed: %d %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Session.Connected {
		t.Fatalf("expected connected session")
	}

	rec = do(t, server, http.MethodDelete, "/api/v1/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect failed: %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Session.Connected {
		t.Fatalf("expected disconnected session")
	}
}

func TestMintEndpoint(t *testing.T) {
	server, mgr := newTestServer(t, nil, &stubGateway{})
	if _, err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	rec := do(t, server, http.MethodPost, "/api/v1/mint",
		`{"recipient":"0x3000000000000000000000000000000000000003","amount":"100"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Run *workflow.Run `json:"run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Run == nil || got.Run.Status != workflow.StatusSucceeded {
		t.Fatalf("unexpected run: %+v", got.Run)
	}
}

func TestMintEndpointValidation(t *testing.T) {
	server, mgr := newTestServer(t, nil, &stubGateway{})
	if _, err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	rec := do(t, server, http.MethodPost, "/api/v1/mint",
		`{"recipient":"0x3000000000000000000000000000000000000003","amount":"301"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var got struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Error.Code != string(workflow.CodeIncompleteRequest) {
		t.Fatalf("unexpected error code: %s", got.Error.Code)
	}
}

func TestMintEndpointNotConnected(t *testing.T) {
	server, _ := newTestServer(t, nil, &stubGateway{})

	rec := do(t, server, http.MethodPost, "/api/v1/mint",
		`{"recipient":"0x3000000000000000000000000000000000000003","amount":"10"}`, nil)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestWhitelistAlreadyWhitelistedReturnsOK(t *testing.T) {
	gateway := &stubGateway{}
	server, mgr := newTestServer(t, nil, gateway)
	if _, err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	gateway.whitelistErr = &revertError{"execution reverted: Address is already whitelisted "}

	rec := do(t, server, http.MethodPost, "/api/v1/whitelist",
		`{"address":"0x3000000000000000000000000000000000000003"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("already-whitelisted must map to 200, got %d", rec.Code)
	}
	var got struct {
		Run   *workflow.Run `json:"run"`
		Error struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Error.Code != string(workflow.CodeAlreadyWhitelisted) {
		t.Fatalf("unexpected error code: %s", got.Error.Code)
	}
	if !strings.Contains(got.Error.Detail, "already whitelisted") {
		t.Fatalf("detail must preserve the revert text, got %q", got.Error.Detail)
	}
	if got.Run == nil || got.Run.Status != workflow.StatusSucceeded {
		t.Fatalf("unexpected run: %+v", got.Run)
	}
}

type revertError struct{ msg string }

func (e *revertError) Error() string { return e.msg }

func TestRunTrailEndpoints(t *testing.T) {
	server, mgr := newTestServer(t, nil, &stubGateway{})
	if _, err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	rec := do(t, server, http.MethodPost, "/api/v1/mint",
		`{"recipient":"0x3000000000000000000000000000000000000003","amount":"5"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mint failed: %d", rec.Code)
	}

	rec = do(t, server, http.MethodGet, "/api/v1/runs", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list runs failed: %d", rec.Code)
	}
	var listed struct {
		Runs []*workflow.Run `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(listed.Runs))
	}

	rec = do(t, server, http.MethodGet, "/api/v1/runs/"+listed.Runs[0].ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run detail failed: %d", rec.Code)
	}

	rec = do(t, server, http.MethodGet, "/api/v1/runs/missing-run", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", rec.Code)
	}

	rec = do(t, server, http.MethodGet, "/api/v1/runs/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", rec.Code)
	}
	var stats workflow.RunStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	server, _ := newTestServer(t, []string{"secret"}, &stubGateway{})

	rec := do(t, server, http.MethodGet, "/api/v1/session", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = do(t, server, http.MethodGet, "/api/v1/session", "", map[string]string{
		"Authorization": "Bearer secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// 指标端点不要求令牌。
	rec = do(t, server, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics must not require auth, got %d", rec.Code)
	}
}
