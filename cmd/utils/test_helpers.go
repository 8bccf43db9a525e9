package utils

import (
	"os"
	"strings"
	"testing"
)

// ClearTestEnvironment blanks every environment variable for the duration of
// the test, so flag-resolution tests cannot be influenced by whatever the
// host shell exports.
func ClearTestEnvironment(t *testing.T) {
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		t.Setenv(key, "")
	}
}
