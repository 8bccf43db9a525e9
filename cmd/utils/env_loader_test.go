package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_toAbsolutePath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string returns empty",
			input:    "",
			expected: "",
		},
		{
			name:     "absolute path unchanged",
			input:    "/etc/config/.env",
			expected: "/etc/config/.env",
		},
		{
			name:     "relative path converted to absolute",
			input:    "config/.env",
			expected: filepath.Join(cwd, "config/.env"),
		},
		{
			name:     "dot relative path converted",
			input:    "./config/.env",
			expected: filepath.Join(cwd, "config/.env"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := toAbsolutePath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func Test_parseEnvFileFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "no flag present",
			args:     []string{"app", "serve"},
			expected: "",
		},
		{
			name:     "flag with separate value",
			args:     []string{"app", "--env-file", "/path/.env", "serve"},
			expected: "/path/.env",
		},
		{
			name:     "flag with equals value",
			args:     []string{"app", "--env-file=/path/.env", "serve"},
			expected: "/path/.env",
		},
		{
			name:     "flag at end without value",
			args:     []string{"app", "serve", "--env-file"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalArgs := os.Args
			t.Cleanup(func() { os.Args = originalArgs })

			os.Args = tt.args
			result := parseEnvFileFlag()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func Test_envFilePath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     []string
		envVar   string
		expected string
	}{
		{
			name:     "nothing set returns empty",
			args:     []string{"app"},
			envVar:   "",
			expected: "",
		},
		{
			name:     "flag takes precedence over env var",
			args:     []string{"app", "--env-file", "/flag/path/.env"},
			envVar:   "/env/path/.env",
			expected: "/flag/path/.env",
		},
		{
			name:     "env var used when no flag",
			args:     []string{"app"},
			envVar:   "/env/path/.env",
			expected: "/env/path/.env",
		},
		{
			name:     "relative flag path converted to absolute",
			args:     []string{"app", "--env-file", "config/.env"},
			envVar:   "",
			expected: filepath.Join(cwd, "config/.env"),
		},
		{
			name:     "relative env var path converted to absolute",
			args:     []string{"app"},
			envVar:   "config/.env",
			expected: filepath.Join(cwd, "config/.env"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalArgs := os.Args
			t.Cleanup(func() { os.Args = originalArgs })
			os.Args = tt.args

			if tt.envVar != "" {
				t.Setenv(envFileEnvVar, tt.envVar)
			}

			result := envFilePath()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func Test_LoadEnvFile(t *testing.T) {
	t.Run("loads explicitly requested file", func(t *testing.T) {
		tmpDir := t.TempDir()
		envPath := filepath.Join(tmpDir, ".env")
		err := os.WriteFile(envPath, []byte("TEST_VAR=hello\n"), 0o644)
		require.NoError(t, err)

		t.Setenv(envFileEnvVar, envPath)
		t.Cleanup(func() {
			require.NoError(t, os.Unsetenv("TEST_VAR"))
		})

		err = LoadEnvFile()

		assert.NoError(t, err)
		assert.Equal(t, "hello", os.Getenv("TEST_VAR"))
	})

	t.Run("errors when the requested file does not exist", func(t *testing.T) {
		t.Setenv(envFileEnvVar, "/nonexistent/path/.env")

		err := LoadEnvFile()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading env file")
		assert.Contains(t, err.Error(), "/nonexistent/path/.env")
	})

	t.Run("missing default .env is not an error", func(t *testing.T) {
		tmpDir := t.TempDir()
		originalWd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(tmpDir))
		t.Cleanup(func() {
			require.NoError(t, os.Chdir(originalWd))
		})

		err = LoadEnvFile()

		assert.NoError(t, err)
	})

	t.Run("loads default .env when present", func(t *testing.T) {
		tmpDir := t.TempDir()
		envPath := filepath.Join(tmpDir, ".env")
		err := os.WriteFile(envPath, []byte("DEFAULT_VAR=world\n"), 0o644)
		require.NoError(t, err)

		originalWd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(tmpDir))
		t.Cleanup(func() {
			require.NoError(t, os.Chdir(originalWd))
			require.NoError(t, os.Unsetenv("DEFAULT_VAR"))
		})

		err = LoadEnvFile()

		assert.NoError(t, err)
		assert.Equal(t, "world", os.Getenv("DEFAULT_VAR"))
	})
}
