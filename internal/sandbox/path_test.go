package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSegment(t *testing.T) {
	assert.NoError(t, ValidateSegment("task-123"))
	assert.Error(t, ValidateSegment(""))
	assert.Error(t, ValidateSegment("a/b"))
	assert.Error(t, ValidateSegment(`a\b`))
	assert.Error(t, ValidateSegment("../etc"))
	assert.Error(t, ValidateSegment("a..b")) // contains ".." substring
}

func TestResolve_RejectsEscape(t *testing.T) {
	_, err := Resolve("/sandbox/root", "../../etc/passwd")
	assert.Error(t, err)

	_, err = Resolve("/sandbox/root", "/etc/passwd")
	assert.Error(t, err)

	full, err := Resolve("/sandbox/root", "reports/task-1.md")
	assert.NoError(t, err)
	assert.Equal(t, "/sandbox/root/reports/task-1.md", full)
}
