package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/pkg/logger"
)

// Mode 表示认证模式。
type Mode string

const (
	// ModeDisabled 关闭认证，所有请求直接放行。未配置令牌时的默认模式。
	ModeDisabled Mode = "disabled"
	// ModeToken 使用静态 Bearer 令牌认证。
	ModeToken Mode = "token"
)

const (
	CodeMissingToken xerrors.Code = "MISSING_TOKEN"
	CodeInvalidToken xerrors.Code = "INVALID_TOKEN"
)

var (
	// ErrMissingToken 表示请求缺少 Authorization 头。
	ErrMissingToken = xerrors.New(CodeMissingToken, "missing bearer token")
	// ErrInvalidToken 表示提供的令牌不在配置的令牌列表中。
	ErrInvalidToken = xerrors.New(CodeInvalidToken, "invalid bearer token")
)

func init() {
	xerrors.Register(CodeMissingToken, xerrors.Attributes{
		Message:   "missing bearer token",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInvalidToken, xerrors.Attributes{
		Message:   "invalid bearer token",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// Subject 标识通过认证的调用方。ID 是令牌指纹，审计日志用它区分
// 调用方而不暴露令牌本身。
type Subject struct {
	ID string
}

// Service 负责 HTTP 端点的静态令牌认证。
type Service struct {
	mode   Mode
	tokens map[string]Subject
	audit  *slog.Logger
}

// NewService 构造认证服务。tokens 为空时认证被关闭。
func NewService(tokens []string) *Service {
	svc := &Service{
		mode:   ModeDisabled,
		tokens: make(map[string]Subject),
		audit:  logger.Audit(),
	}
	for _, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		svc.tokens[trimmed] = Subject{ID: fingerprint(trimmed)}
	}
	if len(svc.tokens) > 0 {
		svc.mode = ModeToken
	}
	return svc
}

// Enabled 报告认证是否开启。
func (s *Service) Enabled() bool {
	return s != nil && s.mode == ModeToken
}

// Authenticate 校验 Authorization 头并返回调用方标识。
func (s *Service) Authenticate(header string) (Subject, error) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return Subject{}, ErrMissingToken
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Subject{}, ErrInvalidToken
	}
	candidate := strings.TrimSpace(parts[1])
	for token, subject := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			return subject, nil
		}
	}
	return Subject{}, ErrInvalidToken
}

// fingerprint 返回令牌的短指纹，用于审计标识。
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
