package vestify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the Vestify Chain REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// SessionState mirrors the daemon's view of the wallet session.
type SessionState struct {
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	ChainID   string `json:"chain_id,omitempty"`
	Network   string `json:"network"`
	Stage     string `json:"stage"`
}

// MintSubmission is the payload for the mint workflow. All fields are raw
// form strings; the daemon validates and converts them.
type MintSubmission struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// VestingSubmission is the payload for the vesting schedule workflow.
type VestingSubmission struct {
	Amount           string `json:"amount"`
	Beneficiary      string `json:"beneficiary"`
	StakeholderType  string `json:"stakeholder_type"`
	ReleaseTime      string `json:"release_time"`
	OrganisationName string `json:"organisation_name"`
	Description      string `json:"description"`
}

// WhitelistSubmission is the payload for the whitelist workflow.
type WhitelistSubmission struct {
	Address string `json:"address"`
}

// Run describes one workflow run recorded by the daemon.
type Run struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	CurrentStep int      `json:"current_step"`
	TotalSteps  int      `json:"total_steps"`
	TxHashes    []string `json:"tx_hashes,omitempty"`
	LastError   string   `json:"last_error,omitempty"`
	ErrorCode   string   `json:"error_code,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// RunStats summarises the recorded runs by outcome.
type RunStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	InFlight  int `json:"in_flight"`
}

// APIError represents server side validation or workflow errors.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("vestify api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("vestify api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the Vestify Chain API. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken stores the static bearer token used for subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently stored token string.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type sessionEnvelope struct {
	Session SessionState `json:"session"`
	Error   *APIError    `json:"error,omitempty"`
}

// Session fetches the current session state.
func (c *Client) Session(ctx context.Context) (SessionState, error) {
	var envelope sessionEnvelope
	if err := c.get(ctx, "/api/v1/session", &envelope); err != nil {
		return SessionState{}, err
	}
	return envelope.Session, nil
}

// Connect asks the daemon to establish a wallet session. On a wrong-network
// response the returned state is still populated alongside the error.
func (c *Client) Connect(ctx context.Context) (SessionState, error) {
	var envelope sessionEnvelope
	err := c.post(ctx, "/api/v1/session", nil, &envelope)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.Code == "WRONG_NETWORK" {
			return envelope.Session, err
		}
		return SessionState{}, err
	}
	if envelope.Error != nil {
		return envelope.Session, envelope.Error
	}
	return envelope.Session, nil
}

// Disconnect tears down the wallet session.
func (c *Client) Disconnect(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/session", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type runEnvelope struct {
	Run   *Run      `json:"run,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// Mint submits a mint workflow and waits for its outcome.
func (c *Client) Mint(ctx context.Context, submission MintSubmission) (*Run, error) {
	return c.submitWorkflow(ctx, "/api/v1/mint", submission)
}

// CreateVestingSchedule submits the two-phase vesting schedule workflow.
func (c *Client) CreateVestingSchedule(ctx context.Context, submission VestingSubmission) (*Run, error) {
	return c.submitWorkflow(ctx, "/api/v1/vesting/schedules", submission)
}

// Whitelist submits a whitelist workflow. When the address is already
// whitelisted the run is returned together with an ALREADY_WHITELISTED
// APIError so callers can tell the outcomes apart.
func (c *Client) Whitelist(ctx context.Context, submission WhitelistSubmission) (*Run, error) {
	return c.submitWorkflow(ctx, "/api/v1/whitelist", submission)
}

func (c *Client) submitWorkflow(ctx context.Context, endpoint string, payload any) (*Run, error) {
	var envelope runEnvelope
	if err := c.post(ctx, endpoint, payload, &envelope); err != nil {
		return envelope.Run, err
	}
	if envelope.Error != nil {
		envelope.Error.StatusCode = http.StatusOK
		return envelope.Run, envelope.Error
	}
	return envelope.Run, nil
}

// Runs lists the most recent workflow runs.
func (c *Client) Runs(ctx context.Context, limit int) ([]*Run, error) {
	endpoint := "/api/v1/runs"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var envelope struct {
		Runs []*Run `json:"runs"`
	}
	if err := c.get(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}
	return envelope.Runs, nil
}

// Run fetches a single run by identifier.
func (c *Client) Run(ctx context.Context, id string) (*Run, error) {
	var envelope runEnvelope
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &envelope); err != nil {
		return nil, err
	}
	return envelope.Run, nil
}

// Stats fetches the run statistics.
func (c *Client) Stats(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if err := c.get(ctx, "/api/v1/runs/stats", &stats); err != nil {
		return RunStats{}, err
	}
	return stats, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr}); err != nil {
				// try direct decode if the server returned a flat payload
				_ = json.Unmarshal(data, apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		// 错误响应里也可能带会话或运行快照，尽力解码。
		if out != nil && len(data) > 0 {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func asAPIError(err error, target **APIError) bool {
	apiErr, ok := err.(*APIError)
	if ok {
		*target = apiErr
	}
	return ok
}
