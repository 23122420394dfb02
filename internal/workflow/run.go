package workflow

import (
	xerrors "Vestify-Chain/internal/errors"
)

// Status 表示一次工作流运行在生命周期中的状态。
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusAwaitingSignature    Status = "awaiting_signature"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusSucceeded            Status = "succeeded"
	StatusFailed               Status = "failed"
)

// Kind 标识工作流的种类。
type Kind string

const (
	KindMint            Kind = "mint"
	KindVestingSchedule Kind = "vesting_schedule"
	KindWhitelist       Kind = "whitelist"
)

// Stage 是外层的应用阶段机：铸币、建立归属计划、白名单、完成。
// 它取代了原始实现里兼作阶段指示的布尔 UI 标志。
type Stage string

const (
	StageMinting      Stage = "minting"
	StageVesting      Stage = "vesting"
	StageWhitelisting Stage = "whitelisting"
	StageCompleted    Stage = "completed"
)

// Run 描述一次进行中的多步操作。每个 Run 由创建它的编排调用独占，
// 终态之后只作为审计记录保留。
type Run struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	Status      Status   `json:"status"`
	CurrentStep int      `json:"current_step"`
	TotalSteps  int      `json:"total_steps"`
	TxHashes    []string `json:"tx_hashes,omitempty"`
	LastError   string   `json:"last_error,omitempty"`
	ErrorCode   string   `json:"error_code,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// Terminal 报告运行是否已经到达终态。
func (r *Run) Terminal() bool {
	if r == nil {
		return false
	}
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

const (
	CodeIncompleteRequest      xerrors.Code = "INCOMPLETE_REQUEST"
	CodeWorkflowBusy           xerrors.Code = "WORKFLOW_BUSY"
	CodeApprovalFailed         xerrors.Code = "APPROVAL_FAILED"
	CodeScheduleCreationFailed xerrors.Code = "SCHEDULE_CREATION_FAILED"
	CodeMintFailed             xerrors.Code = "MINT_FAILED"
	CodeAlreadyWhitelisted     xerrors.Code = "ALREADY_WHITELISTED"
	CodeWhitelistFailed        xerrors.Code = "WHITELIST_FAILED"
	CodeConfirmationTimeout    xerrors.Code = "CONFIRMATION_TIMEOUT"
)

var (
	// ErrWorkflowBusy 表示已有工作流在途，新的提交被拒绝而不是交错执行。
	ErrWorkflowBusy = xerrors.New(CodeWorkflowBusy, "another workflow is in flight")
	// ErrRunNotFound 表示指定的运行记录不存在。
	ErrRunNotFound = xerrors.New(xerrors.CodeNotFound, "workflow run not found")
	// ErrRunConflict 表示运行记录已存在。
	ErrRunConflict = xerrors.New(xerrors.CodeConflict, "workflow run already exists")
)

func init() {
	xerrors.Register(CodeIncompleteRequest, xerrors.Attributes{
		Message:   "request is missing required fields",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeWorkflowBusy, xerrors.Attributes{
		Message:   "another workflow is in flight",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeApprovalFailed, xerrors.Attributes{
		Message:   "token approval failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeScheduleCreationFailed, xerrors.Attributes{
		Message:   "vesting schedule creation failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeMintFailed, xerrors.Attributes{
		Message:   "token mint failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeAlreadyWhitelisted, xerrors.Attributes{
		Message:   "address is already whitelisted",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeWhitelistFailed, xerrors.Attributes{
		Message:   "whitelisting failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeConfirmationTimeout, xerrors.Attributes{
		Message:   "confirmation wait timed out",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
}

func cloneRun(run *Run) *Run {
	if run == nil {
		return nil
	}
	clone := *run
	if run.TxHashes != nil {
		clone.TxHashes = append([]string(nil), run.TxHashes...)
	}
	return &clone
}
