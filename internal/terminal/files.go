package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/choir-run/choir/internal/sandbox"
)

const maxFileReadBytes = 256 * 1024

// readFile resolves path against root and returns its contents, bounded to
// maxFileReadBytes.
func readFile(root, path string) (string, error) {
	resolved, err := sandbox.Resolve(root, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	if len(data) > maxFileReadBytes {
		data = data[:maxFileReadBytes]
	}
	return string(data), nil
}

// writeFile resolves path against root, creates parent directories, and
// writes content, overwriting any existing file.
func writeFile(root, path, content string) error {
	resolved, err := sandbox.Resolve(root, path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// editOp is one find/replace edit applied by editFile.
type editOp struct {
	OldText    string
	NewText    string
	ReplaceAll bool
}

// editFile applies edits in order to the file at path, failing if any
// old_text is not found in the content as it stood at that point.
func editFile(root, path string, edits []editOp) (int, error) {
	resolved, err := sandbox.Resolve(root, path)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return 0, err
	}

	content := string(data)
	replacements := 0
	for _, edit := range edits {
		if edit.OldText == "" {
			return 0, fmt.Errorf("old_text is required")
		}
		if !strings.Contains(content, edit.OldText) {
			return 0, fmt.Errorf("old_text not found: %q", edit.OldText)
		}
		if edit.ReplaceAll {
			count := strings.Count(content, edit.OldText)
			content = strings.ReplaceAll(content, edit.OldText, edit.NewText)
			replacements += count
		} else {
			content = strings.Replace(content, edit.OldText, edit.NewText, 1)
			replacements++
		}
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return 0, err
	}
	return replacements, nil
}
