package hosting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"llmhost/internal/serving"
)

// Environment keys read by the hosted text-generation server.
const (
	EnvModelID               = "HF_MODEL_ID"
	EnvMaxConcurrentRequests = "MAX_CONCURRENT_REQUESTS"
	EnvMaxInputLength        = "MAX_INPUT_LENGTH"
	EnvMaxTotalTokens        = "MAX_TOTAL_TOKENS"
	EnvMaxBatchPrefillTokens = "MAX_BATCH_PREFILL_TOKENS"
	EnvMaxBatchTotalTokens   = "MAX_BATCH_TOTAL_TOKENS"
)

// DerivedKeys lists the keys owned by the serving configuration.
var DerivedKeys = []string{
	EnvModelID,
	EnvMaxConcurrentRequests,
	EnvMaxInputLength,
	EnvMaxTotalTokens,
	EnvMaxBatchPrefillTokens,
	EnvMaxBatchTotalTokens,
}

func isDerivedKey(k string) bool {
	for _, d := range DerivedKeys {
		if d == k {
			return true
		}
	}
	return false
}

// EnvFromConfig renders cfg as the container environment. Entries in extra
// are merged in; an extra entry may not set one of DerivedKeys.
func EnvFromConfig(cfg serving.Config, extra map[string]string) (map[string]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env := make(map[string]string, len(DerivedKeys)+len(extra))
	for k, v := range extra {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, fmt.Errorf("empty environment key")
		}
		if isDerivedKey(strings.ToUpper(key)) {
			return nil, fmt.Errorf("environment key %s is derived from the serving configuration and cannot be overridden", key)
		}
		env[key] = v
	}
	env[EnvModelID] = cfg.ModelID()
	env[EnvMaxConcurrentRequests] = strconv.Itoa(cfg.MaxConcurrentRequests())
	env[EnvMaxInputLength] = strconv.Itoa(cfg.MaxInputLength())
	env[EnvMaxTotalTokens] = strconv.Itoa(cfg.MaxTotalTokens())
	env[EnvMaxBatchPrefillTokens] = strconv.Itoa(cfg.MaxBatchPrefillTokens())
	env[EnvMaxBatchTotalTokens] = strconv.Itoa(cfg.MaxBatchTotalTokens())
	return env, nil
}

// ConfigFromEnv rebuilds the serving configuration from an environment block,
// e.g. one reported back by the control plane. Every derived value must agree
// with what batch size and sequence length imply.
func ConfigFromEnv(env map[string]string) (serving.Config, error) {
	ints := map[string]int{}
	for _, k := range DerivedKeys[1:] {
		v, ok := env[k]
		if !ok {
			return serving.Config{}, fmt.Errorf("%w: missing %s", serving.ErrInvalidConfiguration, k)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return serving.Config{}, fmt.Errorf("%w: %s=%q is not an integer", serving.ErrInvalidConfiguration, k, v)
		}
		ints[k] = n
	}
	cfg, err := serving.Derive(serving.Params{
		ModelID:        env[EnvModelID],
		BatchSize:      ints[EnvMaxConcurrentRequests],
		SequenceLength: ints[EnvMaxTotalTokens],
		MaxInputLength: ints[EnvMaxInputLength],
	})
	if err != nil {
		return serving.Config{}, err
	}
	if cfg.MaxBatchPrefillTokens() != ints[EnvMaxBatchPrefillTokens] || cfg.MaxBatchTotalTokens() != ints[EnvMaxBatchTotalTokens] {
		return serving.Config{}, fmt.Errorf("%w: batch token limits disagree with %s and %s",
			serving.ErrInvalidConfiguration, EnvMaxConcurrentRequests, EnvMaxTotalTokens)
	}
	return cfg, nil
}

// FormatEnv renders env as sorted KEY=VALUE lines.
func FormatEnv(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	return b.String()
}
