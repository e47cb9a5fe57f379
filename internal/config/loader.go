package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path falls back to
// ~/.convo/convo.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Path resolves the effective config file path.
func (l *Loader) Path() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".convo", "convo.json"), nil
}

// Load reads the config file, layers CONVO_ environment overrides on top
// of the defaults, and validates the result. A missing file is not an
// error; defaults plus environment apply.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.Path()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("CONVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment overrides for the common knobs. AutomaticEnv only sees
	// keys viper already knows about, so bind the flat ones explicitly.
	if key := os.Getenv("CONVO_PROVIDER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if name := os.Getenv("CONVO_PROVIDER_NAME"); name != "" {
		cfg.Provider.Name = name
	}
	if model := os.Getenv("CONVO_AGENT_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if level := os.Getenv("CONVO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".convo")
	}

	if cfg.History.Path == "" {
		switch cfg.History.Backend {
		case "file":
			cfg.History.Path = filepath.Join(cfg.DataDir, "sessions")
		case "sqlite":
			cfg.History.Path = filepath.Join(cfg.DataDir, "convo.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration back to the config file.
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("provider", cfg.Provider)
	v.Set("agent", cfg.Agent)
	v.Set("history", cfg.History)
	v.Set("sessions", cfg.Sessions)
	v.Set("server", cfg.Server)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
