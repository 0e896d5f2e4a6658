// Package config loads the runtime configuration for a chain client
// instance: the committee it talks to, its storage backend, and its
// timeouts. Configuration is YAML with ${VAR_NAME} / ${VAR_NAME:-default}
// environment substitution, applied before parsing, the same way the rest
// of this stack loads its settings.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as "5s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ValidatorEndpoint names one validator's network address and voting
// weight, as read from the committee section of the config file.
type ValidatorEndpoint struct {
	Name      string `yaml:"name"`
	Address   string `yaml:"address"`
	PublicKey string `yaml:"public_key"`
	Weight    uint64 `yaml:"weight"`
}

// StorageSettings selects and configures the key-value backend.
type StorageSettings struct {
	// Backend is one of "memory", "goleveldb", "badgerdb" (anything
	// cometbft-db supports), or "postgres".
	Backend string `yaml:"backend"`
	Name    string `yaml:"name"`
	Dir     string `yaml:"dir"`

	PostgresDSN             string   `yaml:"postgres_dsn"`
	PostgresMaxOpenConns    int      `yaml:"postgres_max_open_conns"`
	PostgresMaxIdleConns    int      `yaml:"postgres_max_idle_conns"`
	PostgresConnMaxIdleTime Duration `yaml:"postgres_conn_max_idle_time"`
	PostgresConnMaxLifetime Duration `yaml:"postgres_conn_max_lifetime"`
}

// RetrySettings bounds the updater's per-validator retry behavior.
type RetrySettings struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// Config is the top-level chain client configuration.
type Config struct {
	Environment string `yaml:"environment"`

	// NetworkName seeds the genesis root-chain id derivation.
	NetworkName string `yaml:"network_name"`

	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	Committee []ValidatorEndpoint `yaml:"committee"`
	Storage   StorageSettings     `yaml:"storage"`
	Retry     RetrySettings       `yaml:"retry"`

	RoundTimeout      Duration `yaml:"round_timeout"`
	CrossChainTimeout Duration `yaml:"cross_chain_timeout"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[3]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return fallback
	})
}

// Load reads and parses a chain client config file, substituting
// environment variables first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = getEnv("LISTEN_ADDR", "0.0.0.0:8080")
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = getEnv("METRICS_ADDR", "0.0.0.0:9090")
	}
	if c.LogLevel == "" {
		c.LogLevel = getEnv("LOG_LEVEL", "info")
	}
	if c.NetworkName == "" {
		c.NetworkName = getEnv("NETWORK_NAME", "devnet")
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.Name == "" {
		c.Storage.Name = "chainclient"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = Duration(100 * time.Millisecond)
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = Duration(5 * time.Second)
	}
	if c.RoundTimeout == 0 {
		c.RoundTimeout = Duration(10 * time.Second)
	}
	if c.CrossChainTimeout == 0 {
		c.CrossChainTimeout = Duration(30 * time.Second)
	}
}

// Validate checks that the configuration is usable as-is: a non-empty
// committee with distinct validator names, and a positive total weight.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Committee) == 0 {
		problems = append(problems, "committee must name at least one validator")
	}
	seen := make(map[string]bool)
	var totalWeight uint64
	for _, v := range c.Committee {
		if v.Name == "" {
			problems = append(problems, "committee entry is missing a name")
		}
		if seen[v.Name] {
			problems = append(problems, fmt.Sprintf("duplicate committee entry %q", v.Name))
		}
		seen[v.Name] = true
		if v.Weight == 0 {
			problems = append(problems, fmt.Sprintf("validator %q has zero weight", v.Name))
		}
		totalWeight += v.Weight
	}
	if totalWeight == 0 {
		problems = append(problems, "committee has zero total weight")
	}

	switch c.Storage.Backend {
	case "memory", "goleveldb", "badgerdb", "rocksdb", "boltdb", "cleveldb":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			problems = append(problems, "storage.postgres_dsn is required for the postgres backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	if len(problems) > 0 {
		msg := "invalid configuration:"
		for _, p := range problems {
			msg += "\n  - " + p
		}
		return fmt.Errorf(msg)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

