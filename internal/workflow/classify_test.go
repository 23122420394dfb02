package workflow

import (
	"errors"
	"testing"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/session"
)

func TestIsUserRejection(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"coded rejection", xerrors.Wrap(session.CodeUserRejected, errors.New("denied"), "签名请求被拒绝"), true},
		{"metamask wording", errors.New("MetaMask Tx Signature: User denied transaction signature."), true},
		{"eip-1193 wording", errors.New("user rejected the request"), true},
		{"plain revert", errors.New("execution reverted: insufficient balance"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUserRejection(tc.err); got != tc.want {
				t.Fatalf("isUserRejection(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyWhitelistError(t *testing.T) {
	// 合约侧的原文带一个尾随空格，分类只依赖稳定的中段。
	reverted := errors.New("execution reverted: Address is already whitelisted ")
	classified := classifyWhitelistError(reverted)
	if classified.Code() != CodeAlreadyWhitelisted {
		t.Fatalf("expected %s, got %s", CodeAlreadyWhitelisted, classified.Code())
	}
	if !errors.Is(classified.Unwrap(), reverted) {
		t.Fatalf("cause must be preserved")
	}

	other := errors.New("execution reverted: Only owner can whitelist")
	classified = classifyWhitelistError(other)
	if classified.Code() != CodeWhitelistFailed {
		t.Fatalf("expected %s, got %s", CodeWhitelistFailed, classified.Code())
	}

	if classifyWhitelistError(nil) != nil {
		t.Fatalf("nil error must classify to nil")
	}
}
