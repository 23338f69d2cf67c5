// Package conductor implements the Conductor (spec §4.7): it routes an
// ExecuteTask request to a worker plan, runs the plan's steps sequentially
// against the Terminal and Researcher workers, accumulates a Markdown
// report, and resolves how the result is surfaced to the caller.
package conductor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/internal/harness"
	"github.com/choir-run/choir/internal/obs"
	"github.com/choir-run/choir/internal/terminal"
	"github.com/choir-run/choir/pkg/models"
)

// ResearcherWorker is the Researcher Worker surface the Conductor depends
// on; internal/researcher.Worker satisfies it.
type ResearcherWorker interface {
	Run(ctx context.Context, req models.ResearchRequest) (*models.ResearchResult, error)
}

// TerminalWorker is the Terminal Worker surface the Conductor depends on;
// internal/terminal.Worker satisfies it.
type TerminalWorker interface {
	Run(ctx context.Context, step terminal.Step) (*harness.Result, error)
}

// Conductor owns the in-memory task table and dispatches plan steps to
// whichever workers were configured at construction time.
type Conductor struct {
	mu          sync.Mutex
	tasks       map[string]*models.ConductorTask
	researcher  ResearcherWorker
	terminalW   TerminalWorker
	pub         obs.Publisher
	reportsRoot string
}

// New builds a Conductor. Either worker may be nil; the default plan then
// only routes to whichever is configured, and (nil, nil) rejects every
// request without an explicit worker_plan.
func New(researcherW ResearcherWorker, terminalW TerminalWorker, pub obs.Publisher, reportsRoot string) *Conductor {
	return &Conductor{
		tasks:       make(map[string]*models.ConductorTask),
		researcher:  researcherW,
		terminalW:   terminalW,
		pub:         pub,
		reportsRoot: reportsRoot,
	}
}

// ExecuteTaskRequest is ExecuteTask's input.
type ExecuteTaskRequest struct {
	TaskID        string
	Objective     string
	DesktopID     string
	CorrelationID string
	OutputMode    models.OutputMode
	WorkerPlan    []models.WorkerStep
}

func (c *Conductor) emit(ctx context.Context, eventType, taskID string, payload map[string]any) {
	if c.pub == nil {
		return
	}
	c.pub.Publish(ctx, eventType, "conductor", "", taskID, payload, true)
}

// ExecuteTask routes req through the Conductor's state machine (spec §4.7):
// Queued → Running → WaitingWorker → {Failed | Completed}, or straight to
// Failed on an invalid request. A duplicate task_id returns ErrDuplicateTask
// and leaves the existing task untouched.
func (c *Conductor) ExecuteTask(ctx context.Context, req ExecuteTaskRequest) (*models.ConductorTask, error) {
	if req.TaskID == "" || req.Objective == "" {
		task := &models.ConductorTask{
			TaskID:     req.TaskID,
			Status:     models.TaskQueued,
			Objective:  req.Objective,
			DesktopID:  req.DesktopID,
			OutputMode: req.OutputMode,
			CreatedAt:  time.Now().UTC(),
		}
		return c.fail(ctx, task, "InvalidRequest", "task_id and objective are required", errs.FailureValidation), errs.ErrInvalidRequest
	}

	c.mu.Lock()
	if _, exists := c.tasks[req.TaskID]; exists {
		c.mu.Unlock()
		return nil, errs.ErrDuplicateTask
	}

	task := &models.ConductorTask{
		TaskID:        req.TaskID,
		Status:        models.TaskQueued,
		Objective:     req.Objective,
		DesktopID:     req.DesktopID,
		OutputMode:    req.OutputMode,
		CorrelationID: req.CorrelationID,
		CreatedAt:     time.Now().UTC(),
	}
	c.tasks[req.TaskID] = task
	c.mu.Unlock()

	plan := req.WorkerPlan
	var err error
	if len(plan) == 0 {
		plan, err = derivePlan(c.terminalW != nil, c.researcher != nil)
		if err != nil {
			return c.fail(ctx, task, "InvalidRequest", "no worker plan could be derived", errs.FailureValidation), errs.ErrInvalidRequest
		}
	} else if err := validatePlan(plan, c.terminalW != nil, c.researcher != nil); err != nil {
		return c.fail(ctx, task, "InvalidRequest", "worker_plan references an unavailable worker_type", errs.FailureValidation), errs.ErrInvalidRequest
	}
	task.WorkerPlan = plan

	c.setStatus(ctx, task, models.TaskRunning)
	task.StartedAt = time.Now().UTC()

	sections, citationCount, stepErr := c.runPlan(ctx, task, plan)
	if stepErr != nil {
		return c.fail(ctx, task, "WorkerFailed", stepErr.Error(), errs.FailureWorker), stepErr
	}

	return c.complete(ctx, task, sections, citationCount)
}

func (c *Conductor) runPlan(ctx context.Context, task *models.ConductorTask, plan []models.WorkerStep) ([]reportSection, int, error) {
	c.setStatus(ctx, task, models.TaskWaitingWorker)

	var sections []reportSection
	citationCount := 0

	for i, step := range plan {
		c.emit(ctx, "conductor.task.progress", task.TaskID, map[string]any{
			"phase":       "worker_step",
			"step_index":  i,
			"step_total":  len(plan),
			"worker_type": step.WorkerType,
		})
		c.emit(ctx, "conductor.worker.call", task.TaskID, map[string]any{
			"worker_type":      step.WorkerType,
			"worker_objective": stepObjective(task.Objective, step),
		})

		summary, citations, err := c.dispatch(ctx, task, step)
		if err != nil {
			c.emit(ctx, "conductor.worker.result", task.TaskID, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return nil, 0, err
		}

		citationCount += citations
		sections = append(sections, reportSection{index: i + 1, workerType: step.WorkerType, summary: summary})
		c.emit(ctx, "conductor.worker.result", task.TaskID, map[string]any{
			"success": true,
			"summary": summary,
		})
	}

	return sections, citationCount, nil
}

func stepObjective(taskObjective string, step models.WorkerStep) string {
	if step.Objective != "" {
		return step.Objective
	}
	if step.TerminalCommand != "" {
		return step.TerminalCommand
	}
	return taskObjective
}

// dispatch runs one worker step and returns a report-section summary plus
// the number of citations it contributed (0 for Terminal steps).
func (c *Conductor) dispatch(ctx context.Context, task *models.ConductorTask, step models.WorkerStep) (string, int, error) {
	switch step.WorkerType {
	case models.WorkerTerminal:
		if c.terminalW == nil {
			return "", 0, fmt.Errorf("%w: terminal worker unavailable", errs.ErrWorkerFailed)
		}
		result, err := c.terminalW.Run(ctx, terminal.Step{
			TerminalCommand: step.TerminalCommand,
			Objective:       step.Objective,
			MaxSteps:        step.MaxSteps,
			TimeoutSeconds:  int(step.TimeoutMS / 1000),
		})
		if err != nil {
			return "", 0, fmt.Errorf("%w: %s", errs.ErrWorkerFailed, err.Error())
		}
		return result.FinalOutput, 0, nil

	case models.WorkerResearcher:
		if c.researcher == nil {
			return "", 0, fmt.Errorf("%w: researcher worker unavailable", errs.ErrWorkerFailed)
		}
		query := step.Objective
		if query == "" {
			query = task.Objective
		}
		result, err := c.researcher.Run(ctx, models.ResearchRequest{Query: query, MaxResults: step.MaxResults})
		if err != nil {
			return "", 0, fmt.Errorf("%w: %s", errs.ErrWorkerFailed, err.Error())
		}
		return researchSummary(result), len(result.Citations), nil

	default:
		return "", 0, fmt.Errorf("%w: unknown worker_type %q", errs.ErrWorkerFailed, step.WorkerType)
	}
}

func researchSummary(result *models.ResearchResult) string {
	summary := fmt.Sprintf("status: %s (coverage %.2f, avg score %.2f)\n", result.Status, result.CoverageRatio, result.AverageTopScore)
	for _, citation := range result.Citations {
		summary += fmt.Sprintf("- [%s](%s): %s\n", citation.Title, citation.URL, citation.Snippet)
	}
	return summary
}

func (c *Conductor) setStatus(ctx context.Context, task *models.ConductorTask, status models.TaskStatus) {
	c.mu.Lock()
	task.Status = status
	c.mu.Unlock()
	c.emit(ctx, "conductor.task.status", task.TaskID, map[string]any{"status": status})
}

func (c *Conductor) fail(ctx context.Context, task *models.ConductorTask, code, message string, kind errs.FailureKind) *models.ConductorTask {
	c.mu.Lock()
	task.Status = models.TaskFailed
	task.CompletedAt = time.Now().UTC()
	task.Error = &models.TaskError{Code: code, Message: message, FailureKind: string(kind)}
	c.mu.Unlock()
	c.emit(ctx, "conductor.task.failed", task.TaskID, map[string]any{
		"code": code, "message": message, "failure_kind": kind,
	})
	return task.Clone()
}

func (c *Conductor) complete(ctx context.Context, task *models.ConductorTask, sections []reportSection, citationCount int) (*models.ConductorTask, error) {
	body := renderReport(task.Objective, sections)
	reportPath, err := writeReport(c.reportsRoot, task.TaskID, body)
	if err != nil {
		return c.fail(ctx, task, "ReportWriteFailed", err.Error(), errs.FailureStorage), err
	}

	mode := resolveOutputMode(task.OutputMode, body, citationCount)

	c.mu.Lock()
	task.Status = models.TaskCompleted
	task.CompletedAt = time.Now().UTC()
	task.ReportPath = reportPath
	task.OutputMode = mode
	var toast *models.Toast
	if mode == models.OutputToastWithReportLink {
		toast = buildToast(body, reportPath)
		task.Toast = toast
	}
	c.mu.Unlock()

	payload := map[string]any{
		"output_mode": mode,
		"report_path": reportPath,
	}
	if mode == models.OutputMarkdownReportWriter {
		payload["writer_props"] = map[string]any{"section_count": len(sections)}
	}
	if toast != nil {
		payload["toast"] = toast
	}
	c.emit(ctx, "conductor.task.completed", task.TaskID, payload)

	return task.Clone(), nil
}

// GetTask returns a snapshot of a task's current state.
func (c *Conductor) GetTask(taskID string) (*models.ConductorTask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.tasks[taskID]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}
