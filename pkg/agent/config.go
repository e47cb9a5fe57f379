package agent

import (
	"fmt"
	"time"
)

// Config holds per-agent execution settings.
type Config struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// MaxRounds bounds model calls per turn. Zero means DefaultMaxRounds.
	MaxRounds int

	// MaxRetries bounds attempts per model call. Zero means DefaultMaxRetries.
	MaxRetries int

	// RetryBackoff is the first retry delay, doubled each attempt.
	// Zero means DefaultRetryBackoff.
	RetryBackoff time.Duration

	// TurnTimeout caps a whole turn. Zero means no deadline.
	TurnTimeout time.Duration

	// Tools names the registry tools exposed to the model. Empty exposes
	// every registered tool.
	Tools []string
}

const (
	DefaultMaxRounds    = 10
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Validate checks the configuration and fails fast on nonsense values.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("max rounds cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn timeout cannot be negative")
	}
	return nil
}

func (c Config) maxRounds() int {
	if c.MaxRounds > 0 {
		return c.MaxRounds
	}
	return DefaultMaxRounds
}

func (c Config) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultMaxRetries
}

func (c Config) retryBackoff() time.Duration {
	if c.RetryBackoff > 0 {
		return c.RetryBackoff
	}
	return DefaultRetryBackoff
}
