package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Deskmate configuration
type Config struct {
	// Model provider
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Agent loop behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// MCP tool server connection
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// Tool result cache
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// History compaction
	Compaction CompactionConfig `json:"compaction" mapstructure:"compaction"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Built-in helpdesk tool server
	ToolServer ToolServerConfig `json:"tool_server" mapstructure:"tool_server"`
}

// ModelConfig selects the completion provider
type ModelConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig controls the round loop
type AgentConfig struct {
	MaxRounds     int    `json:"max_rounds" mapstructure:"max_rounds"`
	HistoryWindow int    `json:"history_window" mapstructure:"history_window"`
	SystemPrompt  string `json:"system_prompt" mapstructure:"system_prompt"`
}

// MCPConfig holds the tool server connection settings
type MCPConfig struct {
	ServerURL      string `json:"server_url" mapstructure:"server_url"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// CacheConfig governs the shared tool result cache
type CacheConfig struct {
	Enabled      bool     `json:"enabled" mapstructure:"enabled"`
	TTLSeconds   int      `json:"ttl_seconds" mapstructure:"ttl_seconds"` // 0 = process lifetime
	ExcludeTools []string `json:"exclude_tools" mapstructure:"exclude_tools"`
}

// CompactionConfig sets the history compaction thresholds
type CompactionConfig struct {
	MaxChars    int `json:"max_chars" mapstructure:"max_chars"`
	TargetChars int `json:"target_chars" mapstructure:"target_chars"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// ToolServerConfig configures the built-in helpdesk MCP server
type ToolServerConfig struct {
	Addr    string                  `json:"addr" mapstructure:"addr"`
	Systems map[string]SystemConfig `json:"systems" mapstructure:"systems"`
}

// SystemConfig holds credentials for one backend system (SAP, ServiceNow).
type SystemConfig struct {
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.2,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxRounds:     6,
			HistoryWindow: 10,
		},
		MCP: MCPConfig{
			ServerURL:      "http://localhost:8000/mcp",
			TimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Compaction: CompactionConfig{
			MaxChars:    8000,
			TargetChars: 1000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		ToolServer: ToolServerConfig{
			Addr:    ":8000",
			Systems: map[string]SystemConfig{},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Provider != "openai" && c.Model.Provider != "anthropic" {
		return fmt.Errorf("invalid model provider %q (must be: openai, anthropic)", c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("no model credentials configured: set model.api_key or the provider's API key environment variable")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature must be between 0 and 2")
	}

	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent max_rounds must be positive")
	}
	if c.Agent.HistoryWindow <= 0 {
		return fmt.Errorf("agent history_window must be positive")
	}

	if c.MCP.ServerURL == "" {
		return fmt.Errorf("mcp server_url is required")
	}
	if c.MCP.TimeoutSeconds < 0 {
		return fmt.Errorf("mcp timeout_seconds cannot be negative")
	}

	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache ttl_seconds cannot be negative")
	}

	if c.Compaction.MaxChars <= 0 {
		return fmt.Errorf("compaction max_chars must be positive")
	}
	if c.Compaction.TargetChars <= 0 || c.Compaction.TargetChars >= c.Compaction.MaxChars {
		return fmt.Errorf("compaction target_chars must be positive and below max_chars")
	}

	return nil
}
