package auth

import (
	"net/http"
	"time"

	loggerpkg "Vestify-Chain/pkg/logger"
)

// Middleware 返回一个 HTTP 中间件，校验静态令牌并记录访问审计日志。
// 认证关闭时请求直接放行，但审计日志照常记录。
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		audit := loggerpkg.Audit()
		if s != nil && s.audit != nil {
			audit = s.audit
		}

		var subject Subject
		if s.Enabled() {
			authenticated, err := s.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				status := http.StatusUnauthorized
				http.Error(w, http.StatusText(status), status)
				audit.Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
				)
				return
			}
			subject = authenticated
		}

		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		ctx := WithSubject(r.Context(), subject)
		next.ServeHTTP(aw, r.WithContext(ctx))

		audit.Info("api_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", aw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"caller", subject.ID,
		)
	})
}

// auditWriter 包装 http.ResponseWriter 以捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
