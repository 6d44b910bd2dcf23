// ABOUTME: Configuration loading and parsing for shelfsync
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete shelfsync configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Network  NetworkConfig  `yaml:"network"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds local store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig holds the remote books API configuration
type RemoteConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`

	Timeout time.Duration `yaml:"-"`
	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// NetworkConfig holds reachability probing configuration
type NetworkConfig struct {
	// ProbeAddr is the TCP address dialed to test the real network path
	ProbeAddr string `yaml:"probe_addr"`
	// OfflineFlagPath is a file whose presence simulates being offline
	OfflineFlagPath string `yaml:"offline_flag_path"`

	ProbeInterval time.Duration `yaml:"-"`
	// Raw string value for YAML unmarshaling
	ProbeIntervalRaw string `yaml:"probe_interval"`
}

// SyncConfig holds engine tuning
type SyncConfig struct {
	// LogCapacity bounds the operation log (default 50)
	LogCapacity int `yaml:"log_capacity"`
	// SampleLimit is how many remote items seed imports fetch (default 10)
	SampleLimit int `yaml:"sample_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func (c *Config) applyDefaults() {
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 30 * time.Second
	}
	if c.Network.ProbeAddr == "" {
		c.Network.ProbeAddr = "1.1.1.1:443"
	}
	if c.Network.ProbeInterval == 0 {
		c.Network.ProbeInterval = 5 * time.Second
	}
	if c.Sync.LogCapacity == 0 {
		c.Sync.LogCapacity = 50
	}
	if c.Sync.SampleLimit == 0 {
		c.Sync.SampleLimit = 10
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Remote.TimeoutRaw != "" {
		cfg.Remote.Timeout, err = time.ParseDuration(cfg.Remote.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing remote.timeout %q: %w", cfg.Remote.TimeoutRaw, err)
		}
	}

	if cfg.Network.ProbeIntervalRaw != "" {
		cfg.Network.ProbeInterval, err = time.ParseDuration(cfg.Network.ProbeIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing network.probe_interval %q: %w", cfg.Network.ProbeIntervalRaw, err)
		}
	}

	return nil
}
