package workflow

import (
	stdErrors "errors"
	"strings"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/session"
)

// alreadyWhitelistedFragment is the stable middle of the upstream revert
// wording ("Address is already whitelisted "). Matching on free text is
// fragile by nature; the rule lives here and nowhere else so it can be
// swapped for a structured error code if the contract ever exposes one.
const alreadyWhitelistedFragment = "already whitelisted"

var rejectionFragments = []string{
	"user denied",
	"user rejected",
	"request rejected",
	"denied transaction signature",
}

// isUserRejection 判断错误是否来自签名方拒绝，而非链上执行失败。
func isUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, session.ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range rejectionFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// classifyWhitelistError 将白名单失败二分为「目标地址已在名单上」与真正的
// 失败。两种结果都保留底层原文，供界面展示与诊断。
func classifyWhitelistError(err error) *xerrors.Error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), alreadyWhitelistedFragment) {
		return xerrors.Wrap(CodeAlreadyWhitelisted, err, "address is already whitelisted")
	}
	return xerrors.Wrap(CodeWhitelistFailed, err, "whitelist transaction failed")
}
