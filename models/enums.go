package models

// RunStatus is the lifecycle state of a shift run.
// opened -> in_progress -> ready_to_close -> closed, with returned reachable
// from any non-terminal state via manager override.
type RunStatus string

const (
	RunStatusOpened       RunStatus = "opened"
	RunStatusInProgress   RunStatus = "in_progress"
	RunStatusReadyToClose RunStatus = "ready_to_close"
	RunStatusClosed       RunStatus = "closed"
	RunStatusReturned     RunStatus = "returned"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusClosed || s == RunStatusReturned
}

func (s RunStatus) IsActive() bool {
	return s == RunStatusOpened || s == RunStatusInProgress || s == RunStatusReadyToClose
}

type RunRole string

const (
	RunRoleOpener RunRole = "opener"
	RunRoleCloser RunRole = "closer"
	RunRoleShared RunRole = "shared"
)

func IsAssignableRole(r RunRole) bool {
	return r == RunRoleOpener || r == RunRoleCloser
}

type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusOk      StepStatus = "ok"
	StepStatusError   StepStatus = "error"
	StepStatusSkipped StepStatus = "skipped"
)

// StepType is the tagged variant of a checklist item. Each type has its own
// validation function in workflow/stepValidator.go.
type StepType string

const (
	StepTypeNumber StepType = "number"
	StepTypeText   StepType = "text"
	StepTypeCheck  StepType = "check"
	StepTypePhoto  StepType = "photo"
)

type AttachmentKind string

const (
	AttachmentKindZReport AttachmentKind = "z_report"
	AttachmentKindPhoto   AttachmentKind = "photo"
	AttachmentKindReceipt AttachmentKind = "receipt"
)

type UserRole string

const (
	UserRoleEmployee UserRole = "employee"
	UserRoleManager  UserRole = "manager"
	UserRoleAdmin    UserRole = "admin"
)

// NotifyTarget selects the audience of an outbound notification.
type NotifyTarget string

const (
	NotifyTargetUser           NotifyTarget = "user"
	NotifyTargetStoreWhitelist NotifyTarget = "store_whitelist"
	NotifyTargetManagers       NotifyTarget = "managers"
)

// NotifyKind labels the payload so the delivery gateway can pick a renderer.
const (
	NotifyKindReminder   = "reminder"
	NotifyKindDeltaAlert = "delta_alert"
	NotifyKindLifecycle  = "lifecycle"
)
