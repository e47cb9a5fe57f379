package config

// Config is the main convo configuration.
type Config struct {
	// Provider selects and authenticates the model API.
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Agent tunes the execution loop.
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// History selects the persistence backend.
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Sessions tunes the session cache.
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Server configures the HTTP front.
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProviderConfig holds model provider settings.
type ProviderConfig struct {
	Name    string `json:"name" mapstructure:"name"` // anthropic, openai
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// AgentConfig holds execution loop settings.
type AgentConfig struct {
	Model          string   `json:"model" mapstructure:"model"`
	SystemPrompt   string   `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature    float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens      int      `json:"max_tokens" mapstructure:"max_tokens"`
	MaxRounds      int      `json:"max_rounds" mapstructure:"max_rounds"`
	MaxRetries     int      `json:"max_retries" mapstructure:"max_retries"`
	ToolTimeoutSec int      `json:"tool_timeout" mapstructure:"tool_timeout"` // seconds
	TurnTimeoutSec int      `json:"turn_timeout" mapstructure:"turn_timeout"` // seconds
	Tools          []string `json:"tools" mapstructure:"tools"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // memory, file, sqlite
	Path    string `json:"path" mapstructure:"path"`
}

// SessionsConfig tunes the session cache.
type SessionsConfig struct {
	IdleAfterMin  int `json:"idle_after" mapstructure:"idle_after"`   // minutes
	SweepEverySec int `json:"sweep_every" mapstructure:"sweep_every"` // seconds
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name: "anthropic",
		},
		Agent: AgentConfig{
			Model:          "claude-sonnet-4-20250514",
			Temperature:    0.7,
			MaxTokens:      4096,
			MaxRounds:      10,
			MaxRetries:     3,
			ToolTimeoutSec: 30,
		},
		History: HistoryConfig{
			Backend: "memory",
		},
		Sessions: SessionsConfig{
			IdleAfterMin:  30,
			SweepEverySec: 60,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8420,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
