package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempFile creates a temporary file with the given content and returns its path.
// The file is removed when the test ends.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to create temp file %s: %v", name, err)
	}

	return path
}

// TempFileString creates a temporary file with string content.
func TempFileString(t *testing.T, name, content string) string {
	t.Helper()
	return TempFile(t, name, []byte(content))
}
