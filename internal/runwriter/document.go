// Package runwriter implements the single-mutation-authority actor that owns
// one live Markdown Run Document per run (spec §4.6).
package runwriter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

const proposalMarker = "<!-- proposal -->"

var revisionRe = regexp.MustCompile(`<!--\s*revision:(\d+)\s*-->`)

var sectionTitles = map[models.SectionID]string{
	models.SectionConductor:  "Conductor",
	models.SectionResearcher: "Researcher",
	models.SectionTerminal:   "Terminal",
	models.SectionUser:       "User",
}

var sectionOrder = []models.SectionID{
	models.SectionConductor,
	models.SectionResearcher,
	models.SectionTerminal,
	models.SectionUser,
}

var titleToSection = func() map[string]models.SectionID {
	m := make(map[string]models.SectionID, len(sectionTitles))
	for id, title := range sectionTitles {
		m[title] = id
	}
	return m
}()

// Serialize renders doc into the canonical on-disk form:
//
//	<!-- revision:N -->
//	# {objective}
//	## Conductor
//	{canon}
//	## Researcher
//	<!-- proposal -->
//	{proposal text when present}
//	## Terminal
//	…
//	## User
//	…
//
// Serialization is hand-written rather than goldmark-rendered because
// goldmark's renderer normalizes Markdown (list markers, emphasis markers,
// line wrapping) in ways that would make the document drift from what an
// agent or user actually wrote; a RunDocument's body text must survive a
// write/read round trip byte-for-byte.
func Serialize(doc *models.RunDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- revision:%d -->\n", doc.Revision)
	fmt.Fprintf(&b, "# %s\n", doc.Objective)

	for _, id := range sectionOrder {
		section := doc.Sections[id]
		if section == nil {
			section = &models.Section{}
		}
		fmt.Fprintf(&b, "## %s\n", sectionTitles[id])
		if section.Content != "" {
			b.WriteString(section.Content)
			if !strings.HasSuffix(section.Content, "\n") {
				b.WriteString("\n")
			}
		}
		if section.Proposal != "" {
			b.WriteString(proposalMarker + "\n")
			b.WriteString(section.Proposal)
			if !strings.HasSuffix(section.Proposal, "\n") {
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// Parse recovers a RunDocument from its serialized form. Section boundaries
// are found by scanning for "## {Title}" lines, since the format is fully
// controlled by Serialize and a line scan recovers canon/proposal text
// verbatim without goldmark's block renderer normalizing anything.
// Heading *text* is still run through goldmark's inline parser (via
// headingPlainText) so a heading written with incidental Markdown escapes
// (e.g. "## Conductor\\") still resolves to the right section. Returns
// errs.ErrValidation if the revision sentinel or the document structure
// can't be recognized - callers (per spec §4.6's read-on-start rule) treat
// that as "initialize a fresh document at revision 0" rather than
// propagating the error further.
func Parse(raw string) (*models.RunDocument, error) {
	match := revisionRe.FindStringSubmatch(raw)
	if match == nil {
		return nil, errs.ErrValidation
	}
	var revision uint64
	if _, err := fmt.Sscanf(match[1], "%d", &revision); err != nil {
		return nil, errs.ErrValidation
	}

	lines := strings.Split(raw, "\n")

	var objective string
	var haveObjective bool
	type span struct {
		id    models.SectionID
		start int // line index of first body line
		end   int // line index one past the last body line (exclusive)
	}
	var spans []span

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "# ") && !haveObjective:
			objective = headingPlainText(strings.TrimPrefix(line, "# "))
			haveObjective = true
		case strings.HasPrefix(line, "## "):
			title := headingPlainText(strings.TrimPrefix(line, "## "))
			if id, ok := titleToSection[title]; ok {
				if n := len(spans); n > 0 {
					spans[n-1].end = i
				}
				spans = append(spans, span{id: id, start: i + 1})
			}
		}
	}
	if n := len(spans); n > 0 {
		spans[n-1].end = len(lines)
	}

	if !haveObjective && len(spans) == 0 {
		return nil, errs.ErrValidation
	}

	doc := models.NewRunDocument(objective)
	doc.Revision = revision

	for _, s := range spans {
		body := strings.Join(lines[s.start:s.end], "\n")
		canon, proposal := splitProposal(body)
		doc.Sections[s.id] = &models.Section{
			Content:  strings.TrimRight(canon, "\n"),
			Proposal: strings.TrimRight(proposal, "\n"),
			State:    models.SectionPending,
		}
	}

	return doc, nil
}

// headingPlainText runs a single heading line's text through goldmark's
// inline parser so incidental Markdown syntax in a title (escapes, emphasis
// markers) resolves to the same plain text on every read, not just a raw
// string compare.
func headingPlainText(line string) string {
	source := []byte(line)
	root := goldmark.DefaultParser().Parse(text.NewReader(source))
	var b strings.Builder
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	out := strings.TrimSpace(b.String())
	if out == "" {
		return strings.TrimSpace(line)
	}
	return out
}

func splitProposal(body string) (canon, proposal string) {
	idx := strings.Index(body, proposalMarker)
	if idx < 0 {
		return body, ""
	}
	canon = body[:idx]
	proposal = strings.TrimPrefix(body[idx+len(proposalMarker):], "\n")
	return canon, proposal
}

