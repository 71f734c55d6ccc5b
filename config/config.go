// Package config loads CLI configuration from an optional YAML file, the
// environment, and a .env file, in ascending precedence: defaults, then the
// YAML file, then environment variables. Command-line flags are applied on
// top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pkarlsen/agentsh/agentloop"
)

// Environment variable names.
const (
	EnvAPIKey         = "ANTHROPIC_API_KEY"
	EnvModel          = "AGENTSH_MODEL"
	EnvCommandTimeout = "AGENTSH_COMMAND_TIMEOUT"
	EnvMaxToolRounds  = "AGENTSH_MAX_TOOL_ROUNDS"
	EnvMaxTokens      = "AGENTSH_MAX_TOKENS"
)

// Config holds everything the CLI needs to run a session.
type Config struct {
	APIKey                string `yaml:"api_key"`
	Model                 string `yaml:"model"`
	CommandTimeoutSeconds int    `yaml:"command_timeout"`
	MaxToolRounds         int    `yaml:"max_tool_rounds"`
	MaxTokens             int    `yaml:"max_tokens"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Model:                 agentloop.DefaultModel,
		CommandTimeoutSeconds: int(agentloop.DefaultCommandTimeout.Seconds()),
		MaxToolRounds:         0,
		MaxTokens:             agentloop.DefaultMaxTokens,
	}
}

// DefaultFileName is the config file looked up in the home directory when
// no path is given.
const DefaultFileName = ".agentsh.yaml"

// Load assembles configuration. envFile points at a dotenv file ("" tries
// ./.env); path points at a YAML config file ("" falls back to
// ~/.agentsh.yaml if present). A missing .env or missing fallback file is
// fine; a named-but-missing YAML file is an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Default()

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, DefaultFileName)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v, ok := envInt(EnvCommandTimeout); ok {
		cfg.CommandTimeoutSeconds = v
	}
	if v, ok := envInt(EnvMaxToolRounds); ok {
		cfg.MaxToolRounds = v
	}
	if v, ok := envInt(EnvMaxTokens); ok {
		cfg.MaxTokens = v
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks that the configuration is runnable. A missing API key is
// fatal; the CLI reports it and exits rather than starting a session that
// cannot complete a single exchange.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%s is not set; export it or add api_key to the config file", EnvAPIKey)
	}
	if c.CommandTimeoutSeconds <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %d", c.CommandTimeoutSeconds)
	}
	if c.MaxToolRounds < 0 {
		return fmt.Errorf("max_tool_rounds must be >= 0, got %d", c.MaxToolRounds)
	}
	return nil
}

// CommandTimeout returns the command timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}
