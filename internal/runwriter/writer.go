package runwriter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/internal/obs"
	"github.com/choir-run/choir/pkg/models"
)

// Scope identifies the correlation fields every writer.run.* event carries.
type Scope struct {
	DesktopID string
	SessionID string
	ThreadID  string
	RunID     string
}

// Writer is the single mutation authority for one run's document (spec
// §4.6). Every operation is guarded by one mutex rather than modeled as a
// channel-fed actor: within a single process this gives the same
// single-writer guarantee with far less machinery, and every exported method
// already reads as "the one thing the actor is allowed to do right now."
type Writer struct {
	mu    sync.Mutex
	doc   *models.RunDocument
	path  string
	scope Scope
	pub   obs.Publisher
}

// ApplyPatchRequest is the ApplyPatch operation's parameters.
type ApplyPatchRequest struct {
	RunID     string
	Source    models.PatchSource
	SectionID models.SectionID
	Ops       []models.PatchOp
	Proposal  bool
}

// ApplyPatchResult is returned on a successful ApplyPatch.
type ApplyPatchResult struct {
	Revision      uint64
	LinesModified int
}

// Start performs read-on-start (parse the file at path if it exists,
// otherwise initialize a fresh document at revision 0), and emits
// writer.run.started. path's parent directory is created on the first
// persist, not by Start.
func Start(ctx context.Context, path, objective string, scope Scope, pub obs.Publisher) (*Writer, error) {
	var doc *models.RunDocument

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed, perr := Parse(string(raw))
		if perr != nil {
			doc = models.NewRunDocument(objective)
		} else {
			doc = parsed
		}
	default:
		doc = models.NewRunDocument(objective)
	}

	w := &Writer{doc: doc, path: path, scope: scope, pub: pub}

	if w.pub != nil {
		w.pub.Publish(ctx, "writer.run.started", "runwriter", "", scope.RunID, w.eventBase(map[string]any{
			"objective": doc.Objective,
		}), true)
	}

	return w, nil
}

func (w *Writer) eventBase(extra map[string]any) map[string]any {
	payload := map[string]any{
		"desktop_id":     w.scope.DesktopID,
		"session_id":     w.scope.SessionID,
		"thread_id":      w.scope.ThreadID,
		"run_id":         w.scope.RunID,
		"document_path":  w.path,
		"revision":       w.doc.Revision,
		"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func (w *Writer) persistLocked() error {
	serialized := Serialize(w.doc)

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.ErrPersistFailed
		}
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(serialized), 0o644); err != nil {
		return errs.ErrPersistFailed
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return errs.ErrPersistFailed
	}
	return nil
}

// mutateAndPersist bumps the revision, persists, and only emits the event on
// success - per spec §4.6, a persist failure leaves the revision bump
// visible in memory but the event is never emitted.
func (w *Writer) mutateAndPersist(ctx context.Context, eventType string, extra map[string]any) error {
	w.doc.Revision++
	if err := w.persistLocked(); err != nil {
		return err
	}
	if w.pub != nil {
		w.pub.Publish(ctx, eventType, "runwriter", "", w.scope.RunID, w.eventBase(extra), true)
	}
	return nil
}

func applyOps(lines []string, ops []models.PatchOp) ([]string, int) {
	modified := 0
	for _, op := range ops {
		switch op.Kind {
		case models.PatchAppend:
			add := strings.Split(op.Text, "\n")
			lines = append(lines, add...)
			modified += len(add)

		case models.PatchInsert:
			pos := clamp(op.Pos, 0, len(lines))
			add := strings.Split(op.Text, "\n")
			out := make([]string, 0, len(lines)+len(add))
			out = append(out, lines[:pos]...)
			out = append(out, add...)
			out = append(out, lines[pos:]...)
			lines = out
			modified += len(add)

		case models.PatchDelete:
			pos := clamp(op.Pos, 0, len(lines))
			n := op.Len
			if n <= 0 {
				n = len(lines) - pos
			}
			end := clamp(pos+n, pos, len(lines))
			modified += end - pos
			lines = append(lines[:pos], lines[end:]...)

		case models.PatchReplace:
			pos := clamp(op.Pos, 0, len(lines))
			n := op.Len
			if n <= 0 {
				n = len(lines) - pos
			}
			end := clamp(pos+n, pos, len(lines))
			add := strings.Split(op.Text, "\n")
			out := make([]string, 0, len(lines)-(end-pos)+len(add))
			out = append(out, lines[:pos]...)
			out = append(out, add...)
			out = append(out, lines[end:]...)
			lines = out
			modified += (end - pos) + len(add)
		}
	}
	return lines, modified
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func splitLines(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// ApplyPatch applies req.Ops in order to either the target section's
// proposal or canon body, persists, and emits writer.run.patch.
func (w *Writer) ApplyPatch(ctx context.Context, req ApplyPatchRequest) (*ApplyPatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if req.RunID != "" && req.RunID != w.scope.RunID {
		return nil, errs.ErrRunIDMismatch
	}
	section, ok := w.doc.Sections[req.SectionID]
	if !ok {
		return nil, errs.ErrSectionNotFound
	}

	target := &section.Content
	if req.Proposal {
		target = &section.Proposal
	}

	lines, modified := applyOps(splitLines(*target), req.Ops)
	*target = strings.Join(lines, "\n")

	if err := w.mutateAndPersist(ctx, "writer.run.patch", map[string]any{
		"patch_id":   ulid.Make().String(),
		"source":     req.Source,
		"section_id": req.SectionID,
		"ops":        wholeDocumentOps(w.doc),
		"proposal":   section.Proposal,
	}); err != nil {
		return nil, err
	}

	return &ApplyPatchResult{Revision: w.doc.Revision, LinesModified: modified}, nil
}

// wholeDocumentOps normalizes a mutation to "replace entire document" form
// for downstream simplicity, per spec §4.6.
func wholeDocumentOps(doc *models.RunDocument) []map[string]any {
	full := Serialize(doc)
	return []map[string]any{
		{
			"kind": "replace",
			"pos":  0,
			"len":  len(splitLines(full)),
			"text": full,
		},
	}
}

// AppendLogLineRequest is the AppendLogLine operation's parameters.
type AppendLogLineRequest struct {
	RunID     string
	Source    models.PatchSource
	SectionID models.SectionID
	Text      string
	Proposal  bool
}

// AppendLogLine appends "[HH:MM:SS] {text}" to the target body.
func (w *Writer) AppendLogLine(ctx context.Context, req AppendLogLineRequest) (*ApplyPatchResult, error) {
	stamp := time.Now().UTC().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", stamp, req.Text)
	return w.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     req.RunID,
		Source:    req.Source,
		SectionID: req.SectionID,
		Proposal:  req.Proposal,
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: line}},
	})
}

// ReportSectionProgress emits writer.run.progress without mutating the
// document.
func (w *Writer) ReportSectionProgress(ctx context.Context, phase, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pub != nil {
		w.pub.Publish(ctx, "writer.run.progress", "runwriter", "", w.scope.RunID, w.eventBase(map[string]any{
			"phase":   phase,
			"message": message,
		}), true)
	}
}

var sectionStateToStatus = map[models.SectionState]string{
	models.SectionPending:  "WaitingForWorker",
	models.SectionRunning:  "Running",
	models.SectionComplete: "Completed",
	models.SectionFailed:   "Failed",
}

// MarkSectionState sets a section's state, persists, and emits
// writer.run.status.
func (w *Writer) MarkSectionState(ctx context.Context, sectionID models.SectionID, state models.SectionState) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	section, ok := w.doc.Sections[sectionID]
	if !ok {
		return errs.ErrSectionNotFound
	}
	section.State = state

	return w.mutateAndPersist(ctx, "writer.run.status", map[string]any{
		"section_id": sectionID,
		"status":     sectionStateToStatus[state],
	})
}

// CommitProposal replaces a section's canon with its current proposal and
// clears the proposal.
func (w *Writer) CommitProposal(ctx context.Context, sectionID models.SectionID) (*ApplyPatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	section, ok := w.doc.Sections[sectionID]
	if !ok {
		return nil, errs.ErrSectionNotFound
	}
	section.Content = section.Proposal
	section.Proposal = ""

	if err := w.mutateAndPersist(ctx, "writer.run.patch", map[string]any{
		"patch_id":   ulid.Make().String(),
		"source":     models.PatchSourceSystem,
		"section_id": sectionID,
		"ops":        wholeDocumentOps(w.doc),
	}); err != nil {
		return nil, err
	}

	return &ApplyPatchResult{Revision: w.doc.Revision}, nil
}

// DiscardProposal clears a section's proposal, leaving canon unchanged.
func (w *Writer) DiscardProposal(ctx context.Context, sectionID models.SectionID) (*ApplyPatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	section, ok := w.doc.Sections[sectionID]
	if !ok {
		return nil, errs.ErrSectionNotFound
	}
	section.Proposal = ""

	if err := w.mutateAndPersist(ctx, "writer.run.patch", map[string]any{
		"patch_id":   ulid.Make().String(),
		"source":     models.PatchSourceSystem,
		"section_id": sectionID,
		"ops":        wholeDocumentOps(w.doc),
	}); err != nil {
		return nil, err
	}

	return &ApplyPatchResult{Revision: w.doc.Revision}, nil
}

// GetDocument returns a deep copy of the current document.
func (w *Writer) GetDocument() *models.RunDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.Clone()
}

// GetRevision returns the current revision.
func (w *Writer) GetRevision() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.Revision
}
