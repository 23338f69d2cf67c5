package runwriter

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

func TestStart_FreshDocumentEmitsStarted(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	path := filepath.Join(t.TempDir(), "run.md")

	w, err := Start(ctx, path, "investigate the outage", Scope{RunID: "run-1"}, pub)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), w.GetRevision())
	assert.Equal(t, 1, pub.count("writer.run.started"))
}

func TestApplyPatch_PersistsAndBumpsRevision(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	path := filepath.Join(t.TempDir(), "run.md")

	w, err := Start(ctx, path, "objective", Scope{RunID: "run-1"}, pub)
	require.NoError(t, err)

	result, err := w.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     "run-1",
		Source:    models.PatchSourceAgent,
		SectionID: models.SectionResearcher,
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: "found 3 citations"}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Revision)
	assert.Equal(t, 1, result.LinesModified)
	assert.Equal(t, 1, pub.count("writer.run.patch"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "found 3 citations")
	assert.Contains(t, string(raw), "<!-- revision:1 -->")
}

func TestApplyPatch_RunIDMismatch(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	path := filepath.Join(t.TempDir(), "run.md")

	w, err := Start(ctx, path, "objective", Scope{RunID: "run-1"}, pub)
	require.NoError(t, err)

	_, err = w.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     "run-2",
		SectionID: models.SectionResearcher,
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: "x"}},
	})
	assert.ErrorIs(t, err, errs.ErrRunIDMismatch)
}

func TestApplyPatch_UnknownSection(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	path := filepath.Join(t.TempDir(), "run.md")

	w, err := Start(ctx, path, "objective", Scope{RunID: "run-1"}, pub)
	require.NoError(t, err)

	_, err = w.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     "run-1",
		SectionID: models.SectionID("nonexistent"),
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: "x"}},
	})
	assert.ErrorIs(t, err, errs.ErrSectionNotFound)
}

func TestCommitAndDiscardProposal(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	path := filepath.Join(t.TempDir(), "run.md")

	w, err := Start(ctx, path, "objective", Scope{RunID: "run-1"}, pub)
	require.NoError(t, err)

	_, err = w.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     "run-1",
		SectionID: models.SectionResearcher,
		Proposal:  true,
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: "draft summary"}},
	})
	require.NoError(t, err)

	_, err = w.CommitProposal(ctx, models.SectionResearcher)
	require.NoError(t, err)

	doc := w.GetDocument()
	assert.Equal(t, "draft summary", doc.Sections[models.SectionResearcher].Content)
	assert.Empty(t, doc.Sections[models.SectionResearcher].Proposal)

	_, err = w.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     "run-1",
		SectionID: models.SectionTerminal,
		Proposal:  true,
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: "throwaway"}},
	})
	require.NoError(t, err)
	_, err = w.DiscardProposal(ctx, models.SectionTerminal)
	require.NoError(t, err)

	doc = w.GetDocument()
	assert.Empty(t, doc.Sections[models.SectionTerminal].Content)
	assert.Empty(t, doc.Sections[models.SectionTerminal].Proposal)
}

func TestMarkSectionState_EmitsStatus(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	path := filepath.Join(t.TempDir(), "run.md")

	w, err := Start(ctx, path, "objective", Scope{RunID: "run-1"}, pub)
	require.NoError(t, err)

	err = w.MarkSectionState(ctx, models.SectionTerminal, models.SectionRunning)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.count("writer.run.status"))

	doc := w.GetDocument()
	assert.Equal(t, models.SectionRunning, doc.Sections[models.SectionTerminal].State)
}

func TestReadOnStart_RecoversExistingDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "run.md")

	w1, err := Start(ctx, path, "objective", Scope{RunID: "run-1"}, nil)
	require.NoError(t, err)
	_, err = w1.ApplyPatch(ctx, ApplyPatchRequest{
		RunID:     "run-1",
		SectionID: models.SectionConductor,
		Ops:       []models.PatchOp{{Kind: models.PatchAppend, Text: "step one done"}},
	})
	require.NoError(t, err)

	w2, err := Start(ctx, path, "ignored on recovery", Scope{RunID: "run-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), w2.GetRevision())
	assert.Equal(t, "objective", w2.GetDocument().Objective)
	assert.Contains(t, w2.GetDocument().Sections[models.SectionConductor].Content, "step one done")
}

func TestRegistry_EnsureRunWriterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pub := &recordingPublisher{}
	reg := NewRegistry(func(runID string) string { return filepath.Join(dir, runID+".md") }, pub)

	w1, err := reg.EnsureRunWriter(ctx, "run-1", "objective", Scope{RunID: "run-1"})
	require.NoError(t, err)
	w2, err := reg.EnsureRunWriter(ctx, "run-1", "objective", Scope{RunID: "run-1"})
	require.NoError(t, err)

	assert.Same(t, w1, w2)
	assert.Equal(t, 1, pub.count("writer.run.started"))
}
