// Package serving derives the serving limits of a hosted model from the two
// constants its compiled artifact was built with: batch size and sequence
// length. It performs no I/O.
package serving

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultInputMargin is the number of tokens reserved for generated output
// when the caller does not pick a max input length (2048 - 1512).
const DefaultInputMargin = 536

// ErrInvalidConfiguration is returned for inputs that can never produce a
// valid serving configuration. Callers must fix the inputs; it is not retried.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// IsInvalidConfiguration reports whether err (or anything it wraps) is an
// invalid configuration error.
func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// Params are the inputs to Derive.
type Params struct {
	ModelID        string
	BatchSize      int
	SequenceLength int
	// MaxInputLength of 0 means SequenceLength - InputMargin.
	MaxInputLength int
	// InputMargin of 0 means DefaultInputMargin. Ignored when MaxInputLength is set.
	InputMargin int
}

// Config is a validated serving configuration. It is a value type: copies are
// independent and two configs derived from the same Params compare equal.
type Config struct {
	modelID               string
	batchSize             int
	sequenceLength        int
	maxInputLength        int
	maxConcurrentRequests int
	maxBatchPrefillTokens int
	maxBatchTotalTokens   int
}

// Derive validates p and computes every derived limit.
func Derive(p Params) (Config, error) {
	id := strings.TrimSpace(p.ModelID)
	if id == "" {
		return Config{}, invalidf("model identifier is required")
	}
	if p.BatchSize <= 0 {
		return Config{}, invalidf("batch size must be positive, got %d", p.BatchSize)
	}
	if p.SequenceLength <= 0 {
		return Config{}, invalidf("sequence length must be positive, got %d", p.SequenceLength)
	}
	if p.MaxInputLength < 0 {
		return Config{}, invalidf("max input length must be positive, got %d", p.MaxInputLength)
	}
	if p.InputMargin < 0 {
		return Config{}, invalidf("input margin must not be negative, got %d", p.InputMargin)
	}
	maxInput := p.MaxInputLength
	if maxInput == 0 {
		margin := p.InputMargin
		if margin == 0 {
			margin = DefaultInputMargin
		}
		maxInput = p.SequenceLength - margin
		if maxInput <= 0 {
			return Config{}, invalidf("sequence length %d leaves no room for input after a margin of %d", p.SequenceLength, margin)
		}
	}
	if maxInput > p.SequenceLength {
		return Config{}, invalidf("max input length %d exceeds sequence length %d", maxInput, p.SequenceLength)
	}
	if p.BatchSize > math.MaxInt/p.SequenceLength {
		return Config{}, invalidf("batch size %d times sequence length %d overflows the token budget", p.BatchSize, p.SequenceLength)
	}
	total := p.BatchSize * p.SequenceLength
	return Config{
		modelID:               id,
		batchSize:             p.BatchSize,
		sequenceLength:        p.SequenceLength,
		maxInputLength:        maxInput,
		maxConcurrentRequests: p.BatchSize,
		maxBatchPrefillTokens: total / 2,
		maxBatchTotalTokens:   total,
	}, nil
}

// MustDerive is Derive for constants known to be valid; it panics otherwise.
func MustDerive(p Params) Config {
	c, err := Derive(p)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Config) ModelID() string            { return c.modelID }
func (c Config) BatchSize() int             { return c.batchSize }
func (c Config) SequenceLength() int        { return c.sequenceLength }
func (c Config) MaxInputLength() int        { return c.maxInputLength }
func (c Config) MaxConcurrentRequests() int { return c.maxConcurrentRequests }

// MaxTotalTokens is the per-request token budget, i.e. the sequence length.
func (c Config) MaxTotalTokens() int        { return c.sequenceLength }
func (c Config) MaxBatchPrefillTokens() int { return c.maxBatchPrefillTokens }
func (c Config) MaxBatchTotalTokens() int   { return c.maxBatchTotalTokens }

// IsZero reports whether c was never derived.
func (c Config) IsZero() bool { return c == Config{} }

// Params returns the inputs that reproduce c.
func (c Config) Params() Params {
	return Params{
		ModelID:        c.modelID,
		BatchSize:      c.batchSize,
		SequenceLength: c.sequenceLength,
		MaxInputLength: c.maxInputLength,
	}
}

// Validate re-checks every invariant of c.
func (c Config) Validate() error {
	if c.IsZero() {
		return invalidf("serving configuration is empty")
	}
	want, err := Derive(c.Params())
	if err != nil {
		return err
	}
	if want != c {
		return invalidf("derived limits are inconsistent with batch size %d and sequence length %d", c.batchSize, c.sequenceLength)
	}
	return nil
}

// WithBatchSize returns a new configuration for a recompiled artifact with
// batch size n. Every derived limit is regenerated.
func (c Config) WithBatchSize(n int) (Config, error) {
	p := c.Params()
	p.BatchSize = n
	return Derive(p)
}

// WithSequenceLength returns a new configuration for a recompiled artifact
// with sequence length n. The input margin of c is kept.
func (c Config) WithSequenceLength(n int) (Config, error) {
	p := c.Params()
	p.InputMargin = c.sequenceLength - c.maxInputLength
	p.MaxInputLength = 0
	p.SequenceLength = n
	if p.InputMargin == 0 {
		// c used the full sequence for input; keep doing so.
		p.MaxInputLength = n
	}
	return Derive(p)
}

// String renders c in a single log-friendly line.
func (c Config) String() string {
	return fmt.Sprintf("model=%s batch=%d seq=%d max_input=%d max_concurrent=%d prefill=%d batch_total=%d",
		c.modelID, c.batchSize, c.sequenceLength, c.maxInputLength,
		c.maxConcurrentRequests, c.maxBatchPrefillTokens, c.maxBatchTotalTokens)
}
