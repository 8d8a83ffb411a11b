package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment. A missing config
// file is not an error; defaults plus environment apply.
func (l *Loader) Load() (*Config, error) {
	// Pull in a local .env first so API keys can live outside the config
	// file. A missing .env is fine.
	_ = godotenv.Load()

	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".deskmate", "deskmate.json")
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		v := viper.New()
		v.SetConfigFile(configPath)
		v.SetConfigType("json")

		v.SetEnvPrefix("DESKMATE")
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	l.applyEnv(cfg)

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Logging.File = filepath.Join(home, ".deskmate", "deskmate.log")
		}
	}

	return cfg, nil
}

// applyEnv fills credentials from the environment when the config file
// leaves them empty.
func (l *Loader) applyEnv(cfg *Config) {
	if cfg.Model.APIKey == "" {
		switch cfg.Model.Provider {
		case "openai":
			cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if url := os.Getenv("DESKMATE_MCP_SERVER_URL"); url != "" {
		cfg.MCP.ServerURL = url
	}

	// Backend system credentials follow the <SYSTEM>_BASE_URL convention.
	for _, system := range []string{"sap", "snow", "hr"} {
		prefix := map[string]string{"sap": "SAP", "snow": "SNOW", "hr": "HR"}[system]
		baseURL := os.Getenv(prefix + "_BASE_URL")
		username := os.Getenv(prefix + "_USERNAME")
		password := os.Getenv(prefix + "_PASSWORD")
		if baseURL == "" && username == "" && password == "" {
			continue
		}
		if cfg.ToolServer.Systems == nil {
			cfg.ToolServer.Systems = map[string]SystemConfig{}
		}
		entry := cfg.ToolServer.Systems[system]
		if baseURL != "" {
			entry.BaseURL = baseURL
		}
		if username != "" {
			entry.Username = username
		}
		if password != "" {
			entry.Password = password
		}
		cfg.ToolServer.Systems[system] = entry
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".deskmate", "deskmate.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
