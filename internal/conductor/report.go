package conductor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/internal/sandbox"
	"github.com/choir-run/choir/pkg/models"
)

const autoToastMaxChars = 900
const autoToastMaxCitations = 2
const toastMessageMaxChars = 240

// reportSection is one worker step's contribution to the accumulating
// Markdown report.
type reportSection struct {
	index      int
	workerType models.WorkerType
	summary    string
}

func renderReport(objective string, sections []reportSection) string {
	var sb strings.Builder
	sb.WriteString("# Conductor Report\n\n")
	sb.WriteString(objective)
	sb.WriteString("\n\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, "## Step %d: %s\n\n%s\n\n", s.index, s.workerType, s.summary)
	}
	return sb.String()
}

// writeReport validates task_id (no /, \, or ..), resolves
// reports/{task_id}.md against root, creates the directory if absent, and
// writes body. Returns errs.ErrReportWriteFailed on any I/O failure.
func writeReport(root, taskID, body string) (string, error) {
	if err := sandbox.ValidateSegment(taskID); err != nil {
		return "", err
	}

	rel := filepath.Join("reports", taskID+".md")
	resolved, err := sandbox.Resolve(root, rel)
	if err != nil {
		return "", errs.ErrReportWriteFailed
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", errs.ErrReportWriteFailed
	}
	if err := os.WriteFile(resolved, []byte(body), 0o644); err != nil {
		return "", errs.ErrReportWriteFailed
	}
	return rel, nil
}

// resolveOutputMode implements spec §4.7's Auto heuristic: Toast when the
// report is short and cites few sources, Writer otherwise. Explicit modes
// pass through unchanged.
func resolveOutputMode(requested models.OutputMode, reportBody string, citationCount int) models.OutputMode {
	if requested != models.OutputAuto {
		return requested
	}
	if len(reportBody) <= autoToastMaxChars && citationCount <= autoToastMaxCitations {
		return models.OutputToastWithReportLink
	}
	return models.OutputMarkdownReportWriter
}

// buildToast constructs the ToastWithReportLink payload: the first
// non-blank, non-heading line of the report outside any ``` fenced block,
// truncated to 240 characters.
func buildToast(reportBody, reportPath string) *models.Toast {
	message := firstContentLine(reportBody)
	return &models.Toast{
		Title:      "Conductor Answer",
		Message:    truncateRunes(message, toastMessageMaxChars),
		Tone:       "Success",
		ReportPath: reportPath,
	}
}

func firstContentLine(body string) string {
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		return trimmed
	}
	return ""
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
