package models

import "time"

// TaskStatus is the Conductor task lifecycle state.
type TaskStatus string

const (
	TaskQueued         TaskStatus = "queued"
	TaskRunning        TaskStatus = "running"
	TaskWaitingWorker  TaskStatus = "waiting_worker"
	TaskCompleted      TaskStatus = "completed"
	TaskFailed         TaskStatus = "failed"
)

// Terminal reports whether status is a final state that no transition may leave.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// OutputMode selects how a completed task's report is surfaced to the client.
type OutputMode string

const (
	OutputAuto                OutputMode = "Auto"
	OutputMarkdownReportWriter OutputMode = "MarkdownReportToWriter"
	OutputToastWithReportLink OutputMode = "ToastWithReportLink"
)

// WorkerType names the two worker kinds the Conductor can dispatch to.
type WorkerType string

const (
	WorkerResearcher WorkerType = "researcher"
	WorkerTerminal   WorkerType = "terminal"
)

// WorkerStep describes one step of a worker plan. At most one of the
// kind-specific fields (Objective vs TerminalCommand) is meaningful per step;
// unset numeric fields take component-specific defaults.
type WorkerStep struct {
	WorkerType      WorkerType `json:"worker_type"`
	Objective       string     `json:"objective,omitempty"`
	TerminalCommand string     `json:"terminal_command,omitempty"`
	TimeoutMS       int64      `json:"timeout_ms,omitempty"`
	MaxResults      int        `json:"max_results,omitempty"`
	MaxSteps        int        `json:"max_steps,omitempty"`
}

// Toast is the short notification payload used by ToastWithReportLink mode.
type Toast struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Tone       string `json:"tone"`
	ReportPath string `json:"report_path"`
}

// TaskError captures a terminal failure recorded on a ConductorTask.
type TaskError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// ConductorTask is the in-memory record of one ExecuteTask call. It is never
// persisted directly; the Event Store is the durable record of its lifecycle.
type ConductorTask struct {
	TaskID        string      `json:"task_id"`
	Status        TaskStatus  `json:"status"`
	Objective     string      `json:"objective"`
	DesktopID     string      `json:"desktop_id"`
	OutputMode    OutputMode  `json:"output_mode"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	WorkerPlan    []WorkerStep `json:"worker_plan,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     time.Time   `json:"started_at,omitempty"`
	CompletedAt   time.Time   `json:"completed_at,omitempty"`
	ReportPath    string      `json:"report_path,omitempty"`
	Toast         *Toast      `json:"toast,omitempty"`
	Error         *TaskError  `json:"error,omitempty"`
}

// Clone returns an independent copy safe for callers to read without racing
// the Conductor actor that owns the original.
func (t *ConductorTask) Clone() *ConductorTask {
	if t == nil {
		return nil
	}
	clone := *t
	if t.WorkerPlan != nil {
		clone.WorkerPlan = append([]WorkerStep(nil), t.WorkerPlan...)
	}
	if t.Toast != nil {
		toast := *t.Toast
		clone.Toast = &toast
	}
	if t.Error != nil {
		terr := *t.Error
		clone.Error = &terr
	}
	return &clone
}
