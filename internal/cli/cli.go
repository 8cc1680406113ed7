// Package cli implements the llmhost command line.
//
// Layout:
//   - cli.go        (Config, MainWithArgs, Main)
//   - cobra_root.go (command tree)
//   - wiring.go     (deployment loading, session and Deployer construction)
//   - serve.go      (HTTP server with graceful shutdown)
//   - logenv.go     (zerolog setup, env helpers)
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"llmhost/internal/serving"
)

// Config holds the persistent flags shared by every command.
type Config struct {
	ConfigPath   string
	EnvFile      string
	LogLevel     string
	LogFormat    string
	ArtifactsDir string

	// Generation admission per endpoint; zero values use the deploy defaults.
	MaxQueueDepth int
	MaxWait       time.Duration

	// Stderr receives logs. Defaults to os.Stderr.
	Stderr io.Writer
}

// DefaultConfig returns the flag defaults, honoring LLMHOST_* variables.
func DefaultConfig() *Config {
	return &Config{
		EnvFile:      envStr("LLMHOST_ENV_FILE", ".env"),
		LogLevel:     envStr("LLMHOST_LOG_LEVEL", "info"),
		LogFormat:    envStr("LLMHOST_LOG_FORMAT", "console"),
		ArtifactsDir: os.Getenv("LLMHOST_ARTIFACTS_DIR"),
		Stderr:       os.Stderr,
	}
}

// Exit codes.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitUsage   = 2
	ExitInvalid = 3
)

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code (0 for success, non-zero on error).
func MainWithArgs(args []string, stdout, stderr io.Writer) int {
	cfg := DefaultConfig()
	cfg.Stderr = stderr
	root := buildRootCmdWith(cfg)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if len(args) == 0 {
		_ = root.Usage()
		return ExitUsage
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		var ue usageError
		switch {
		case errors.As(err, &ue):
			return ExitUsage
		case serving.IsInvalidConfiguration(err):
			return ExitInvalid
		}
		return ExitError
	}
	return ExitOK
}

// Main returns an exit code for use by cmd/llmhost.
func Main() int { return MainWithArgs(os.Args[1:], os.Stdout, os.Stderr) }

// usageError marks errors caused by wrong command-line usage.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }
