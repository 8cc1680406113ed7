package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Session carries the credentials and account context used by every call to
// the hosting control plane. It is built once and passed explicitly; nothing
// in this module reads it from process-wide state afterwards.
type Session struct {
	Endpoint       string        `envconfig:"ENDPOINT" default:"http://localhost:8700"`
	Region         string        `envconfig:"REGION" default:"us-east-1"`
	Token          string        `envconfig:"TOKEN"`
	Role           string        `envconfig:"ROLE"`
	Bucket         string        `envconfig:"BUCKET"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"15s"`
}

// EnvPrefix is the prefix of every session environment variable, e.g. LLMHOST_REGION.
const EnvPrefix = "llmhost"

// LoadSession reads the session from LLMHOST_* environment variables. When
// envFile is non-empty it is loaded first; variables already set in the
// environment win over the file.
func LoadSession(envFile string) (Session, error) {
	var s Session
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return s, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return s, fmt.Errorf("session from environment: %w", err)
	}
	return s, s.Validate()
}

// Validate checks that the session can address a control plane.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("session endpoint is required")
	}
	if strings.TrimSpace(s.Region) == "" {
		return fmt.Errorf("session region is required")
	}
	if s.RequestTimeout < 0 || s.PollInterval < 0 {
		return fmt.Errorf("session timeouts must not be negative")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (s Session) Redacted() Session {
	if s.Token != "" {
		s.Token = "****"
	}
	return s
}
