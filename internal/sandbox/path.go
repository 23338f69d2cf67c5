// Package sandbox provides the path-validation primitives shared by the
// Conductor's report writer and the Terminal Worker's file tools: every
// user- or agent-supplied relative path is resolved against a sandbox root
// and rejected if it would escape it.
package sandbox

import (
	"path/filepath"
	"strings"

	"github.com/choir-run/choir/internal/errs"
)

// ValidateSegment rejects a path segment (e.g. a task_id used to name a
// report file) that contains a path separator or a ".." traversal
// component, per spec §4.7 ("task_id must not contain /, \, or ..").
func ValidateSegment(segment string) error {
	if segment == "" || strings.ContainsAny(segment, `/\`) || strings.Contains(segment, "..") {
		return errs.ErrInvalidRequest
	}
	return nil
}

// Resolve joins rel onto root and verifies the resulting path is still
// inside root, rejecting any ".." or absolute-path escape attempt.
func Resolve(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", errs.ErrInvalidRequest
	}

	cleanRoot := filepath.Clean(root)
	full := filepath.Join(cleanRoot, rel)

	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", errs.ErrInvalidRequest
	}
	return full, nil
}
