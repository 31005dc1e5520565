// Package providers holds transport configuration and construction.
// The environment is read exactly once, when FromEnv runs; later
// changes to the process environment have no effect on a built provider.
package providers

import (
	"fmt"
	"os"
	"time"
)

// Kind selects a transport implementation.
type Kind string

const (
	KindOpenRouter Kind = "openrouter"
	KindAnthropic  Kind = "anthropic"
)

// Config is the construction-time snapshot for one provider.
type Config struct {
	Kind    Kind          `json:"kind" yaml:"kind"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// FromEnv snapshots provider selection and credentials from the
// environment. VIRTUALAB_PROVIDER picks the transport, falling back to
// defaultKind and then to openrouter; the matching *_API_KEY must be
// present.
func FromEnv(defaultKind Kind) (Config, error) {
	kind := Kind(os.Getenv("VIRTUALAB_PROVIDER"))
	if kind == "" {
		kind = defaultKind
	}
	if kind == "" {
		kind = KindOpenRouter
	}

	cfg := Config{Kind: kind}
	switch kind {
	case KindOpenRouter:
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
		cfg.BaseURL = os.Getenv("OPENROUTER_BASE_URL")
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
	case KindAnthropic:
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		cfg.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
	default:
		return Config{}, fmt.Errorf("unknown provider %q", kind)
	}

	if m := os.Getenv("VIRTUALAB_MODEL"); m != "" {
		cfg.Model = m
	}
	return cfg, nil
}
