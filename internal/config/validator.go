package config

import (
	"fmt"
	"strings"
)

var validBackends = map[string]bool{
	"":       true, // defaults to memory
	"memory": true,
	"file":   true,
	"sqlite": true,
}

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
}

// Validate checks the configuration for values the runtime cannot work
// with. It is called on load and on every watched reload.
func (c *Config) Validate() error {
	if !validProviders[c.Provider.Name] {
		return fmt.Errorf("unsupported provider: %q", c.Provider.Name)
	}

	if c.Agent.Model == "" {
		return fmt.Errorf("agent model cannot be empty")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("agent temperature must be between 0 and 2")
	}
	if c.Agent.MaxRounds < 0 {
		return fmt.Errorf("agent max rounds cannot be negative")
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent max retries cannot be negative")
	}
	if c.Agent.ToolTimeoutSec < 0 {
		return fmt.Errorf("agent tool timeout cannot be negative")
	}
	if c.Agent.TurnTimeoutSec < 0 {
		return fmt.Errorf("agent turn timeout cannot be negative")
	}

	if !validBackends[c.History.Backend] {
		return fmt.Errorf("unsupported history backend: %q", c.History.Backend)
	}
	if (c.History.Backend == "file" || c.History.Backend == "sqlite") && c.History.Path == "" {
		return fmt.Errorf("history backend %q requires a path", c.History.Backend)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 0 and 65535")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unsupported log level: %q", c.Logging.Level)
	}

	return nil
}
