package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Vestify-Chain/internal/auth"
	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/form"
	"Vestify-Chain/internal/observability/metrics"
	"Vestify-Chain/internal/session"
	"Vestify-Chain/internal/workflow"
)

// Server 负责暴露 REST 接口，是上层界面与工作流编排器之间的边界。
type Server struct {
	addr     string
	sessions *session.Manager
	orch     *workflow.Orchestrator
	forms    *form.Builder
	auth     *auth.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, sessions *session.Manager, orch *workflow.Orchestrator, forms *form.Builder, authSvc *auth.Service) *Server {
	if forms == nil {
		forms = form.NewBuilder(nil)
	}
	return &Server{
		addr:     addr,
		sessions: sessions,
		orch:     orch,
		forms:    forms,
		auth:     authSvc,
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回完整的路由。/metrics 不走认证，其余 API 路由经过
// 认证中间件并记录访问审计。
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/v1/session", s.instrument("session", s.handleSession))
	api.HandleFunc("/api/v1/mint", s.instrument("mint", s.handleMint))
	api.HandleFunc("/api/v1/vesting/schedules", s.instrument("vesting_schedules", s.handleVestingSchedules))
	api.HandleFunc("/api/v1/whitelist", s.instrument("whitelist", s.handleWhitelist))
	api.HandleFunc("/api/v1/runs", s.instrument("runs", s.handleRuns))
	api.HandleFunc("/api/v1/runs/", s.instrument("runs", s.handleRunByID))

	var protected http.Handler = api
	if s.auth != nil {
		protected = s.auth.Middleware(api)
	}

	root := http.NewServeMux()
	root.Handle("/metrics", metrics.Handler())
	root.Handle("/", protected)
	return root
}

type sessionResponse struct {
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	ChainID   string `json:"chain_id,omitempty"`
	Network   string `json:"network"`
	Stage     string `json:"stage"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeSession(w, http.StatusOK, nil)
	case http.MethodPost:
		_, err := s.sessions.Connect(r.Context())
		if err != nil {
			// 网络不匹配时会话仍然建立，照常返回会话状态与错误码。
			if xerrors.CodeOf(err) == session.CodeWrongNetwork {
				s.writeSession(w, http.StatusConflict, err)
				return
			}
			writeError(w, err)
			return
		}
		s.writeSession(w, http.StatusOK, nil)
	case http.MethodDelete:
		s.sessions.Disconnect()
		s.writeSession(w, http.StatusOK, nil)
	default:
		http.Error(w, "仅支持 GET/POST/DELETE", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeSession(w http.ResponseWriter, status int, err error) {
	current := s.sessions.Current()
	resp := struct {
		Session sessionResponse `json:"session"`
		Error   *errorBody      `json:"error,omitempty"`
	}{
		Session: sessionResponse{
			Connected: current.Connected,
			Network:   s.sessions.NetworkName(),
			Stage:     string(s.orch.Stage()),
		},
		Error: errorBodyOf(err),
	}
	if current.Connected {
		resp.Session.Account = current.Account.Hex()
		if current.ChainID != nil {
			resp.Session.ChainID = current.ChainID.String()
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var fields form.MintFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	req, err := s.forms.BuildMint(fields)
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := s.orch.Mint(r.Context(), req)
	s.writeRunResult(w, run, err)
}

func (s *Server) handleVestingSchedules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var fields form.VestingFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	req, err := s.forms.BuildVestingSchedule(fields)
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := s.orch.CreateVestingSchedule(r.Context(), req)
	s.writeRunResult(w, run, err)
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var fields form.WhitelistFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	req, err := s.forms.BuildWhitelist(fields)
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := s.orch.Whitelist(r.Context(), req)
	s.writeRunResult(w, run, err)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	runs, err := s.orch.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Runs []*workflow.Run `json:"runs"`
	}{Runs: runs})
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if rest == "stats" {
		stats, err := s.orch.RunStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	run, err := s.orch.RunByID(r.Context(), rest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Run *workflow.Run `json:"run"`
	}{Run: run})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// errorBodyOf 输出错误码与描述。底层提供方的原文放在 detail 里，
// 供界面展示与诊断。
func errorBodyOf(err error) *errorBody {
	if err == nil {
		return nil
	}
	body := &errorBody{
		Code:    string(xerrors.CodeOf(err)),
		Message: err.Error(),
	}
	if coded, ok := xerrors.From(err); ok {
		body.Message = coded.Message()
		if cause := coded.Unwrap(); cause != nil {
			body.Detail = cause.Error()
		}
	}
	return body
}

// writeRunResult 输出带运行记录的响应。目标地址已在白名单的情形不算
// 失败：运行按成功收尾，响应为 200 并携带错误码供界面提示。
func (s *Server) writeRunResult(w http.ResponseWriter, run *workflow.Run, err error) {
	status := http.StatusOK
	if err != nil {
		if xerrors.CodeOf(err) == workflow.CodeAlreadyWhitelisted {
			status = http.StatusOK
		} else {
			status = statusForError(err)
		}
	}
	writeJSON(w, status, struct {
		Run   *workflow.Run `json:"run,omitempty"`
		Error *errorBody    `json:"error,omitempty"`
	}{Run: run, Error: errorBodyOf(err)})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), struct {
		Error *errorBody `json:"error"`
	}{Error: errorBodyOf(err)})
}

func statusForError(err error) int {
	switch xerrors.CodeOf(err) {
	case workflow.CodeIncompleteRequest, xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, workflow.CodeWorkflowBusy, session.CodeUserRejected:
		return http.StatusConflict
	case session.CodeNotConnected, session.CodeWrongNetwork:
		return http.StatusPreconditionFailed
	case session.CodeProviderUnavailable, xerrors.CodeQueueFailure, xerrors.CodeStorageFailure:
		return http.StatusServiceUnavailable
	case workflow.CodeConfirmationTimeout:
		return http.StatusGatewayTimeout
	case workflow.CodeApprovalFailed, workflow.CodeScheduleCreationFailed,
		workflow.CodeMintFailed, workflow.CodeWhitelistFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// instrument 记录每个端点的请求指标。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mw := &metricsWriter{ResponseWriter: w, status: http.StatusOK}
		next(mw, r)
		metrics.ObserveHTTPRequest(name, r.Method, mw.status, time.Since(start))
	}
}

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	// 包装处理器以检查上下文状态。
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
