// Package config loads runtime configuration. Precedence is
// defaults -> YAML file -> environment, applied once at load time;
// later environment changes are invisible to a loaded Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`

	Agent  AgentConfig  `yaml:"agent"`
	Critic CriticConfig `yaml:"critic"`
	Team   TeamConfig   `yaml:"team"`
	Log    LogConfig    `yaml:"log"`
}

type AgentConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	ResultLimit   int     `yaml:"result_limit"`
}

type CriticConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type TeamConfig struct {
	Rounds  int `yaml:"rounds"`
	MaxSize int `yaml:"max_size"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the zero-config settings.
func Default() Config {
	return Config{
		Provider: "openrouter",
		Timeout:  120 * time.Second,
		Agent: AgentConfig{
			MaxIterations: 30,
			Temperature:   0.7,
			MaxTokens:     1500,
			ResultLimit:   5000,
		},
		Critic: CriticConfig{
			Temperature: 0.3,
		},
		Team: TeamConfig{
			Rounds:  1,
			MaxSize: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config. path may be empty; a missing file at a given
// path is an error, while the empty path just skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays VIRTUALAB_* variables. This is the single point
// where the environment is consulted.
func applyEnv(cfg *Config) {
	setString(&cfg.Provider, "VIRTUALAB_PROVIDER")
	setString(&cfg.Model, "VIRTUALAB_MODEL")
	setString(&cfg.Critic.Model, "VIRTUALAB_CRITIC_MODEL")
	setInt(&cfg.Agent.MaxIterations, "VIRTUALAB_MAX_ITERATIONS")
	setInt(&cfg.Agent.MaxTokens, "VIRTUALAB_MAX_TOKENS")
	setInt(&cfg.Team.Rounds, "VIRTUALAB_TEAM_ROUNDS")
	setString(&cfg.Log.Level, "VIRTUALAB_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c Config) validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.ResultLimit <= 0 {
		return fmt.Errorf("agent.result_limit must be positive, got %d", c.Agent.ResultLimit)
	}
	if c.Team.MaxSize <= 0 {
		return fmt.Errorf("team.max_size must be positive, got %d", c.Team.MaxSize)
	}
	return nil
}
