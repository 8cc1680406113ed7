package config

import (
	"os"
	"testing"
)

// unsetForTest removes key from the environment; t.Setenv must have been
// called for key first so the original value is restored on cleanup.
func unsetForTest(t *testing.T, key string) error {
	t.Helper()
	return os.Unsetenv(key)
}
