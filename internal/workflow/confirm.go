package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/session"
)

// Confirmer 等待交易被打包并返回回执。两段式流程依赖它保证
// 前一步的交易确认后才发起下一步。
type Confirmer interface {
	Confirm(ctx context.Context, backend session.Backend, tx *types.Transaction) (*types.Receipt, error)
}

// minedConfirmer 基于 bind.WaitMined 轮询回执, 超出配置的确认窗口
// 时返回 CodeConfirmationTimeout。
type minedConfirmer struct {
	timeout time.Duration
}

// NewMinedConfirmer 构造默认的链上确认器。timeout 为非正数时退化为
// 不限时等待, 仅受调用方 ctx 控制。
func NewMinedConfirmer(timeout time.Duration) Confirmer {
	return &minedConfirmer{timeout: timeout}
}

func (c *minedConfirmer) Confirm(ctx context.Context, backend session.Backend, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "待确认交易为空")
	}
	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, xerrors.Wrap(CodeConfirmationTimeout, err,
				fmt.Sprintf("等待交易 %s 确认超时", tx.Hash().Hex()))
		}
		return nil, xerrors.Wrap(session.CodeProviderUnavailable, err,
			fmt.Sprintf("等待交易 %s 确认失败", tx.Hash().Hex()))
	}
	return receipt, nil
}

var _ Confirmer = (*minedConfirmer)(nil)
