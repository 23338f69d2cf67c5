// Package api defines the request/response Go types for choir's external
// HTTP surface (spec §6.1). No handlers are implemented here (out of
// scope, per spec.md and SPEC_FULL.md §6): these types exist so the
// Conductor, RunWriter, and Event Store can be wired behind a real mux
// later, and so cmd/choir can drive the same shapes in-process.
package api

import (
	"github.com/choir-run/choir/internal/obs"
	"github.com/choir-run/choir/pkg/models"
)

// ExecuteTaskRequest is the body of POST /conductor/execute.
type ExecuteTaskRequest struct {
	Objective     string              `json:"objective"`
	DesktopID     string              `json:"desktop_id"`
	OutputMode    models.OutputMode   `json:"output_mode,omitempty"`
	WorkerPlan    []models.WorkerStep `json:"worker_plan,omitempty"`
	Hints         map[string]string   `json:"hints,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
}

// ExecuteTaskResponse wraps a ConductorTask. A handler returns 202 with
// Status Queued or Running; subsequent progress arrives via events.
type ExecuteTaskResponse struct {
	Task *models.ConductorTask `json:"task"`
}

// TimelineRequest is the query parameters of GET /runs/{run_id}/timeline.
type TimelineRequest struct {
	RunID              string       `json:"run_id"`
	Category           obs.Category `json:"category,omitempty"`
	RequiredMilestones []string     `json:"required_milestones,omitempty"`
}

// TimelineResponse is the 200 body of GET /runs/{run_id}/timeline.
type TimelineResponse struct {
	*obs.Timeline
}

// TimelineMissingMilestonesResponse is the 422 body returned when
// required_milestones names event types that never occurred.
type TimelineMissingMilestonesResponse struct {
	MissingMilestones []string      `json:"missing_milestones"`
	Timeline          *obs.Timeline `json:"timeline"`
}

// FileErrorCode enumerates the /files/... error codes (spec §6.1).
type FileErrorCode string

const (
	FileErrPathTraversal  FileErrorCode = "PATH_TRAVERSAL"
	FileErrNotFound       FileErrorCode = "NOT_FOUND"
	FileErrNotAFile       FileErrorCode = "NOT_A_FILE"
	FileErrNotADirectory  FileErrorCode = "NOT_A_DIRECTORY"
	FileErrAlreadyExists  FileErrorCode = "ALREADY_EXISTS"
	FileErrPermission     FileErrorCode = "PERMISSION_DENIED"
	FileErrInvalidContent FileErrorCode = "INVALID_CONTENT"
	FileErrInternal       FileErrorCode = "INTERNAL_ERROR"
)

// WriterOpenRequest is the body of POST /writer/open.
type WriterOpenRequest struct {
	Path string `json:"path"`
}

// WriterOpenResponse is the 200 body of POST /writer/open.
type WriterOpenResponse struct {
	Content  string `json:"content"`
	Mime     string `json:"mime"`
	Revision int    `json:"revision"`
	Readonly bool   `json:"readonly"`
}

// WriterSaveRequest is the body of POST /writer/save.
type WriterSaveRequest struct {
	Path    string `json:"path"`
	BaseRev int    `json:"base_rev"`
	Content string `json:"content"`
}

// WriterSaveResponse is the 200 body of POST /writer/save.
type WriterSaveResponse struct {
	Revision int  `json:"revision"`
	Saved    bool `json:"saved"`
}

// WriterSaveConflict is the 409 body when base_rev mismatches the current
// revision.
type WriterSaveConflict struct {
	Code     string `json:"code"`
	Revision int    `json:"revision"`
	Content  string `json:"content"`
}

// WriterPromptRequest is the body of POST /writer/prompt. Path must match
// "conductor/runs/{run_id}/draft.md".
type WriterPromptRequest struct {
	Path          string           `json:"path"`
	PromptDiff    []models.PatchOp `json:"prompt_diff"`
	BaseVersionID string           `json:"base_version_id"`
}
