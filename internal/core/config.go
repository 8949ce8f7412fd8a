package core

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the entire LogSentinel configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bus       BusConfig       `yaml:"bus"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Syslog    SyslogConfig    `yaml:"syslog"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SyslogConfig holds live syslog ingestion settings.
type SyslogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"` // udp, tcp, or both
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	APIKeys     []string `yaml:"api_keys"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	URL       string `yaml:"url"`
	Embedded  bool   `yaml:"embedded"`
	DataDir   string `yaml:"data_dir"`
	Port      int    `yaml:"port"`
	ClusterID string `yaml:"cluster_id"`
}

// AnalysisConfig holds orchestration settings.
type AnalysisConfig struct {
	// MaxFollowups caps the follow-up descriptors a single stage may emit.
	MaxFollowups int `yaml:"max_followups"`
	// ExternalTimeoutSeconds bounds each retrieval or generation call.
	ExternalTimeoutSeconds int `yaml:"external_timeout_seconds"`
	// FollowupWindowMinutes is the default "events in the next N minutes"
	// window for follow-up queries.
	FollowupWindowMinutes int `yaml:"followup_window_minutes"`
}

// PatternsConfig holds attack pattern library settings.
type PatternsConfig struct {
	// Path optionally points at a YAML file of pattern definitions that
	// replaces the builtin library.
	Path string `yaml:"path"`
}

// RetrievalConfig holds retrieval collaborator settings.
type RetrievalConfig struct {
	DefaultK  int `yaml:"default_k"`
	CacheSize int `yaml:"cache_size"`
}

// GeminiConfig holds generation backend settings.
type GeminiConfig struct {
	Enabled bool     `yaml:"enabled"`
	Model   string   `yaml:"model"`
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out of the box.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 1860,
		},
		Bus: BusConfig{
			URL:       "nats://127.0.0.1:4222",
			Embedded:  true,
			DataDir:   "./data/nats",
			Port:      4222,
			ClusterID: "logsentinel-cluster",
		},
		Analysis: AnalysisConfig{
			MaxFollowups:           10,
			ExternalTimeoutSeconds: 30,
			FollowupWindowMinutes:  60,
		},
		Retrieval: RetrievalConfig{
			DefaultK:  8,
			CacheSize: 256,
		},
		Gemini: GeminiConfig{
			Enabled: true,
			Model:   "gemini-2.0-flash",
		},
		Syslog: SyslogConfig{
			Enabled:  false,
			Host:     "0.0.0.0",
			Port:     5514,
			Protocol: "udp",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Secrets may come from the environment instead of the file
	if len(cfg.Server.APIKeys) == 0 {
		if envKey := os.Getenv("LOGSENTINEL_API_KEY"); envKey != "" {
			cfg.Server.APIKeys = []string{envKey}
		}
	}
	if len(cfg.Gemini.APIKeys) == 0 {
		if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
			cfg.Gemini.APIKeys = []string{envKey}
		}
	}

	if cfg.Analysis.MaxFollowups <= 0 {
		cfg.Analysis.MaxFollowups = 10
	}
	if cfg.Analysis.ExternalTimeoutSeconds <= 0 {
		cfg.Analysis.ExternalTimeoutSeconds = 30
	}
	if cfg.Analysis.FollowupWindowMinutes <= 0 {
		cfg.Analysis.FollowupWindowMinutes = 60
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LogLevel returns the parsed log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}

// AuthEnabled returns true if API key authentication is configured.
func (c *Config) AuthEnabled() bool {
	return len(c.Server.APIKeys) > 0
}

// ValidateAPIKey checks if the provided key matches any configured API key.
// Uses constant-time comparison to prevent timing attacks.
func (c *Config) ValidateAPIKey(key string) bool {
	for _, valid := range c.Server.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
