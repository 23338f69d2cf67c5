package runwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/pkg/models"
)

func TestSerializeParse_RoundTrip(t *testing.T) {
	doc := models.NewRunDocument("investigate the outage")
	doc.Revision = 3
	doc.Sections[models.SectionConductor].Content = "Dispatched terminal then researcher."
	doc.Sections[models.SectionResearcher].Content = "Found 3 citations."
	doc.Sections[models.SectionResearcher].Proposal = "Draft: the root cause was a bad deploy."
	doc.Sections[models.SectionTerminal].Content = "Ran diagnostics, all green."
	doc.Sections[models.SectionUser].Content = "Thanks, looks right."

	serialized := Serialize(doc)
	assert.Contains(t, serialized, "<!-- revision:3 -->")
	assert.Contains(t, serialized, "# investigate the outage")
	assert.Contains(t, serialized, "<!-- proposal -->")

	parsed, err := Parse(serialized)
	require.NoError(t, err)

	assert.Equal(t, doc.Objective, parsed.Objective)
	assert.Equal(t, doc.Revision, parsed.Revision)
	assert.Equal(t, doc.Sections[models.SectionConductor].Content, parsed.Sections[models.SectionConductor].Content)
	assert.Equal(t, doc.Sections[models.SectionResearcher].Content, parsed.Sections[models.SectionResearcher].Content)
	assert.Equal(t, doc.Sections[models.SectionResearcher].Proposal, parsed.Sections[models.SectionResearcher].Proposal)
	assert.Equal(t, doc.Sections[models.SectionTerminal].Content, parsed.Sections[models.SectionTerminal].Content)
	assert.Equal(t, doc.Sections[models.SectionUser].Content, parsed.Sections[models.SectionUser].Content)
}

func TestParse_EmptyProposal(t *testing.T) {
	doc := models.NewRunDocument("objective")
	doc.Sections[models.SectionConductor].Content = "canon only, no proposal"

	parsed, err := Parse(Serialize(doc))
	require.NoError(t, err)
	assert.Empty(t, parsed.Sections[models.SectionConductor].Proposal)
	assert.Equal(t, "canon only, no proposal", parsed.Sections[models.SectionConductor].Content)
}

func TestParse_MalformedReturnsValidationError(t *testing.T) {
	_, err := Parse("not a run document at all")
	assert.Error(t, err)
}

func TestParse_MultilineSectionBody(t *testing.T) {
	doc := models.NewRunDocument("objective")
	doc.Sections[models.SectionTerminal].Content = "line one\nline two\nline three"

	parsed, err := Parse(Serialize(doc))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three", parsed.Sections[models.SectionTerminal].Content)
}
