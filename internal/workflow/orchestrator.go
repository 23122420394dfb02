package workflow

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"Vestify-Chain/internal/contracts"
	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/observability/alerting"
	"Vestify-Chain/internal/observability/metrics"
	"Vestify-Chain/internal/session"
	"Vestify-Chain/pkg/logger"
)

// defaultConfirmTimeout 是未配置时的链上确认等待窗口。
const defaultConfirmTimeout = 3 * time.Minute

// Orchestrator 串联会话、合约网关与运行记录，驱动铸币、建立归属计划、
// 白名单三个工作流。同一时刻只允许一个工作流在途：后到的提交会收到
// WORKFLOW_BUSY，而不是与在途流程交错执行。
type Orchestrator struct {
	sessions  *session.Manager
	gateway   contracts.Gateway
	store     RunStore
	bus       Publisher
	alerter   alerting.Dispatcher
	confirmer Confirmer

	// busy 由 TryLock 持有，覆盖单个工作流从提交到终态的全程。
	busy sync.Mutex

	mu     sync.RWMutex
	stage  Stage
	latest *Run
}

// Option 配置编排器的可选组件。
type Option func(*Orchestrator)

// WithRunStore 指定运行记录的持久化实现。
func WithRunStore(store RunStore) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// WithPublisher 指定状态变迁事件的发布通道。
func WithPublisher(bus Publisher) Option {
	return func(o *Orchestrator) {
		if bus != nil {
			o.bus = bus
		}
	}
}

// WithAlertDispatcher 指定告警分发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) Option {
	return func(o *Orchestrator) {
		if dispatcher != nil {
			o.alerter = dispatcher
		}
	}
}

// WithConfirmer 替换默认的链上确认器，测试时注入桩实现。
func WithConfirmer(confirmer Confirmer) Option {
	return func(o *Orchestrator) {
		if confirmer != nil {
			o.confirmer = confirmer
		}
	}
}

// NewOrchestrator 构造编排器。默认使用内存运行存储、内存事件总线与
// 基于回执轮询的确认器。
func NewOrchestrator(sessions *session.Manager, gateway contracts.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:  sessions,
		gateway:   gateway,
		store:     NewMemoryRunStore(),
		bus:       NewMemoryBus(0),
		alerter:   alerting.NewFanout(&alerting.LogNotifier{}),
		confirmer: NewMinedConfirmer(defaultConfirmTimeout),
		stage:     StageMinting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Stage 返回当前的应用阶段。
func (o *Orchestrator) Stage() Stage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stage
}

// LatestRun 返回最近一次运行的快照，没有任何运行时返回 nil。
func (o *Orchestrator) LatestRun() *Run {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneRun(o.latest)
}

// Runs 返回最近的运行记录。
func (o *Orchestrator) Runs(ctx context.Context, limit int) ([]*Run, error) {
	return o.store.List(ctx, limit)
}

// RunByID 按标识查询单条运行记录。
func (o *Orchestrator) RunByID(ctx context.Context, id string) (*Run, error) {
	return o.store.Get(ctx, id)
}

// RunStats 汇总运行记录的状态分布。
func (o *Orchestrator) RunStats(ctx context.Context) (RunStats, error) {
	return o.store.Stats(ctx)
}

// Close 释放运行存储与事件通道。
func (o *Orchestrator) Close() error {
	var first error
	if o.bus != nil {
		if err := o.bus.Close(); err != nil && first == nil {
			first = err
		}
	}
	if o.store != nil {
		if err := o.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Mint 铸造测试代币，单步工作流。成功后应用阶段推进到归属计划。
func (o *Orchestrator) Mint(ctx context.Context, req MintRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !o.busy.TryLock() {
		return nil, ErrWorkflowBusy
	}
	defer o.busy.Unlock()

	if err := o.sessions.RequireNetwork(ctx); err != nil {
		return nil, err
	}

	run := o.beginRun(ctx, KindMint, 1)

	signer, backend, err := o.acquireSigner(ctx)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	token, err := o.gateway.Token(backend)
	if err != nil {
		return o.fail(ctx, run, err)
	}

	tx, err := token.Mint(signer, req.Recipient, big.NewInt(req.Amount))
	if err != nil {
		return o.fail(ctx, run, stepError(CodeMintFailed, err, "铸币交易提交失败"))
	}
	o.transition(ctx, run, StatusAwaitingConfirmation, 1, tx.Hash().Hex())

	if err := o.awaitReceipt(ctx, backend, tx, CodeMintFailed); err != nil {
		return o.fail(ctx, run, err)
	}

	o.succeed(ctx, run, StageVesting)
	return cloneRun(run), nil
}

// CreateVestingSchedule 是两段式工作流：先把本次数量授权给归属合约，
// 等授权交易确认后再创建归属计划。第一步失败不会发起第二步，授权也
// 不做回滚，重新提交会再次授权。
func (o *Orchestrator) CreateVestingSchedule(ctx context.Context, req VestingScheduleRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !o.busy.TryLock() {
		return nil, ErrWorkflowBusy
	}
	defer o.busy.Unlock()

	if err := o.sessions.RequireNetwork(ctx); err != nil {
		return nil, err
	}

	run := o.beginRun(ctx, KindVestingSchedule, 2)

	// 第一步：授权。spender 固定为归属合约地址。
	signer, backend, err := o.acquireSigner(ctx)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	token, err := o.gateway.Token(backend)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	approveTx, err := token.Approve(signer, o.gateway.VestingAddress(), req.Amount)
	if err != nil {
		return o.fail(ctx, run, stepError(CodeApprovalFailed, err, "授权交易提交失败"))
	}
	o.transition(ctx, run, StatusAwaitingConfirmation, 1, approveTx.Hash().Hex())

	if err := o.awaitReceipt(ctx, backend, approveTx, CodeApprovalFailed); err != nil {
		return o.fail(ctx, run, err)
	}

	// 第二步：创建归属计划。网络与签名器在确认等待期间可能已失效，
	// 重新获取而不是沿用第一步的句柄。
	if err := o.sessions.RequireNetwork(ctx); err != nil {
		return o.fail(ctx, run, err)
	}
	signer, backend, err = o.acquireSigner(ctx)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	vesting, err := o.gateway.Vesting(backend)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	o.transition(ctx, run, StatusAwaitingSignature, 2, "")

	createTx, err := vesting.CreateVestingSchedule(signer,
		req.Amount, req.Beneficiary, uint8(req.StakeholderType),
		big.NewInt(req.ReleaseTime), req.OrganisationName, req.Description)
	if err != nil {
		return o.fail(ctx, run, stepError(CodeScheduleCreationFailed, err, "创建归属计划交易提交失败"))
	}
	o.transition(ctx, run, StatusAwaitingConfirmation, 2, createTx.Hash().Hex())

	if err := o.awaitReceipt(ctx, backend, createTx, CodeScheduleCreationFailed); err != nil {
		return o.fail(ctx, run, err)
	}

	o.succeed(ctx, run, StageWhitelisting)
	return cloneRun(run), nil
}

// Whitelist 把受益人加入归属合约白名单。目标地址已在名单上时运行按成功
// 收尾，同时返回 ALREADY_WHITELISTED 供调用方区分。
func (o *Orchestrator) Whitelist(ctx context.Context, req WhitelistRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !o.busy.TryLock() {
		return nil, ErrWorkflowBusy
	}
	defer o.busy.Unlock()

	if err := o.sessions.RequireNetwork(ctx); err != nil {
		return nil, err
	}

	run := o.beginRun(ctx, KindWhitelist, 1)

	signer, backend, err := o.acquireSigner(ctx)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	vesting, err := o.gateway.Vesting(backend)
	if err != nil {
		return o.fail(ctx, run, err)
	}

	tx, err := vesting.WhitelistAddress(signer, req.Address)
	if err != nil {
		if isUserRejection(err) {
			return o.fail(ctx, run, xerrors.Wrap(session.CodeUserRejected, err, "签名请求被拒绝"))
		}
		classified := classifyWhitelistError(err)
		if classified.Code() == CodeAlreadyWhitelisted {
			// 目标状态已经成立，按成功收尾并推进阶段。
			o.succeed(ctx, run, StageCompleted)
			return cloneRun(run), classified
		}
		return o.fail(ctx, run, classified)
	}
	o.transition(ctx, run, StatusAwaitingConfirmation, 1, tx.Hash().Hex())

	if err := o.awaitReceipt(ctx, backend, tx, CodeWhitelistFailed); err != nil {
		// 回执阶段才暴露的回滚原因同样要做已在名单上的判定。
		// 其余错误保持原有错误码（例如确认超时）。
		if classified := classifyWhitelistError(err); classified.Code() == CodeAlreadyWhitelisted {
			o.succeed(ctx, run, StageCompleted)
			return cloneRun(run), classified
		}
		return o.fail(ctx, run, err)
	}

	o.succeed(ctx, run, StageCompleted)
	return cloneRun(run), nil
}

// acquireSigner 获取绑定当前会话的签名器与链后端。
func (o *Orchestrator) acquireSigner(ctx context.Context) (*bind.TransactOpts, session.Backend, error) {
	signer, err := o.sessions.CurrentSigner(ctx)
	if err != nil {
		return nil, nil, err
	}
	backend, err := o.sessions.Backend()
	if err != nil {
		return nil, nil, err
	}
	return signer, backend, nil
}

// stepError 把交易提交失败归类：签名被拒优先，已带错误码的保持原样，
// 其余包装为所在步骤的失败码。
func stepError(code xerrors.Code, err error, message string) error {
	if isUserRejection(err) {
		return xerrors.Wrap(session.CodeUserRejected, err, "签名请求被拒绝")
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	return xerrors.Wrap(code, err, message)
}

// awaitReceipt 等待交易确认并检查执行结果。回执状态为失败时返回
// 所在步骤的失败码。
func (o *Orchestrator) awaitReceipt(ctx context.Context, backend session.Backend, tx *types.Transaction, failCode xerrors.Code) error {
	receipt, err := o.confirmer.Confirm(ctx, backend, tx)
	if err != nil {
		return err
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return xerrors.New(failCode, "交易已上链但执行被回滚",
			xerrors.WithMetadata("tx_hash", tx.Hash().Hex()))
	}
	return nil
}

// beginRun 建立运行记录并发布首个状态事件。
func (o *Orchestrator) beginRun(ctx context.Context, kind Kind, totalSteps int) *Run {
	now := time.Now().Unix()
	run := &Run{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      StatusAwaitingSignature,
		CurrentStep: 1,
		TotalSteps:  totalSteps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.Create(ctx, run); err != nil {
		logger.Named("workflow").Warn("保存运行记录失败",
			slog.String("run_id", run.ID), slog.Any("error", err))
	}
	o.setLatest(run)

	o.publish(ctx, run, "")
	return run
}

// setLatest 在锁内保存运行快照。工作流协程继续改写自己的 run，
// LatestRun 的并发读取只会看到这里存下的副本。
func (o *Orchestrator) setLatest(run *Run) {
	o.mu.Lock()
	o.latest = cloneRun(run)
	o.mu.Unlock()
}

// transition 推进运行状态并发布事件。txHash 非空时追加到交易哈希列表。
func (o *Orchestrator) transition(ctx context.Context, run *Run, status Status, step int, txHash string) {
	run.Status = status
	run.CurrentStep = step
	run.UpdatedAt = time.Now().Unix()
	if txHash != "" {
		run.TxHashes = append(run.TxHashes, txHash)
	}
	o.persist(ctx, run)
	o.setLatest(run)
	o.publish(ctx, run, txHash)
}

// succeed 将运行标记为成功并推进应用阶段。
func (o *Orchestrator) succeed(ctx context.Context, run *Run, next Stage) {
	run.Status = StatusSucceeded
	run.UpdatedAt = time.Now().Unix()
	o.persist(ctx, run)

	o.mu.Lock()
	o.stage = next
	o.latest = cloneRun(run)
	o.mu.Unlock()

	o.publish(ctx, run, "")
	metrics.ObserveWorkflowRun(string(run.Kind), string(run.Status))
	logger.Audit().Info("workflow_succeeded",
		slog.String("run_id", run.ID),
		slog.String("kind", string(run.Kind)),
		slog.String("stage", string(next)),
	)
}

// fail 将运行标记为失败，记录审计日志，必要时触发告警，并把错误原样
// 返回给调用方。
func (o *Orchestrator) fail(ctx context.Context, run *Run, err error) (*Run, error) {
	run.Status = StatusFailed
	run.LastError = err.Error()
	run.ErrorCode = string(xerrors.CodeOf(err))
	run.UpdatedAt = time.Now().Unix()
	o.persist(ctx, run)
	o.setLatest(run)
	o.publish(ctx, run, "")
	metrics.ObserveWorkflowRun(string(run.Kind), string(run.Status))

	logger.Audit().Warn("workflow_failed",
		slog.String("run_id", run.ID),
		slog.String("kind", string(run.Kind)),
		slog.String("error_code", run.ErrorCode),
		slog.String("error", run.LastError),
	)

	if o.alerter != nil && xerrors.ShouldAlertError(err) {
		event := alerting.Event{
			Code:       xerrors.CodeOf(err),
			Message:    err.Error(),
			Severity:   xerrors.SeverityOf(err),
			RunID:      run.ID,
			Workflow:   string(run.Kind),
			Step:       run.CurrentStep,
			OccurredAt: time.Now(),
		}
		if e, ok := xerrors.From(err); ok {
			event.Metadata = e.Metadata()
		}
		if notifyErr := o.alerter.Notify(ctx, event); notifyErr != nil {
			logger.Named("workflow").Warn("告警发送失败", slog.Any("error", notifyErr))
		}
	}
	return cloneRun(run), err
}

func (o *Orchestrator) persist(ctx context.Context, run *Run) {
	if err := o.store.Update(ctx, run); err != nil {
		logger.Named("workflow").Warn("更新运行记录失败",
			slog.String("run_id", run.ID), slog.Any("error", err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, run *Run, message string) {
	if o.bus == nil {
		return
	}
	event := Event{
		RunID:      run.ID,
		Kind:       run.Kind,
		Status:     run.Status,
		Step:       run.CurrentStep,
		TotalSteps: run.TotalSteps,
		ErrorCode:  run.ErrorCode,
		Message:    message,
		OccurredAt: run.UpdatedAt,
	}
	if err := o.bus.Publish(ctx, event); err != nil {
		logger.Named("workflow").Warn("发布状态事件失败",
			slog.String("run_id", run.ID), slog.Any("error", err))
	}
}
