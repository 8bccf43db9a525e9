package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envFileFlag   = "--env-file"
	envFileEnvVar = "ENV_FILE"
)

// LoadEnvFile populates the process environment from a dotenv file before
// viper reads it. Resolution order: the --env-file flag, the ENV_FILE
// variable, then a .env in the working directory. A missing default .env is
// not an error; a missing explicitly requested file is.
func LoadEnvFile() error {
	if path := envFilePath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env file: %w", err)
	}
	return nil
}

// envFilePath resolves an explicitly requested env file, or "" when none was
// asked for. The flag is parsed by hand because this runs before cobra does.
func envFilePath() string {
	if path := parseEnvFileFlag(); path != "" {
		return toAbsolutePath(path)
	}
	if path := os.Getenv(envFileEnvVar); path != "" {
		return toAbsolutePath(path)
	}
	return ""
}

func parseEnvFileFlag() string {
	for i, arg := range os.Args {
		if arg == envFileFlag && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, envFileFlag+"=") {
			return strings.TrimPrefix(arg, envFileFlag+"=")
		}
	}
	return ""
}

func toAbsolutePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
