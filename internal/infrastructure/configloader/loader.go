package configloader

import (
	"fmt"
	"os"
	"strings"
	"time"

	"vault_aggregator/internal/domain/entity"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config/config.yml"

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
	IdleTimeout  int    `yaml:"idleTimeout"`  // seconds
	EnablePprof  bool   `yaml:"enablePprof"`
}

// DBConfig holds vault store configuration. Driver is one of memory, sqlite
// or postgres.
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	SeedFile string `yaml:"seedFile"`
}

// PostgresDSN renders the connection string for pgx.
func (d DBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// CoinGeckoConfig holds CoinGecko API specific configurations.
type CoinGeckoConfig struct {
	APIKey               string `yaml:"apiKey"`
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLSeconds      int    `yaml:"cacheTTLSeconds"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	ChainFetchTimeoutMs      int64   `yaml:"chainFetchTimeoutMs"`
	RPCCallTimeoutSeconds    int     `yaml:"rpcCallTimeoutSeconds"`
	RPCConnectTimeoutSeconds int     `yaml:"rpcConnectTimeoutSeconds"`
	RateLimit                float64 `yaml:"rateLimit"` // requests per second per chain
	BurstLimit               int     `yaml:"burstLimit"`
	MaxAddressesPerBatchCall int     `yaml:"maxAddressesPerBatchCall"`
}

// TokensConfig points at the per-network token lists.
type TokensConfig struct {
	Dir string `yaml:"dir"`
}

// RolloutConfig holds the multichain feature gate inputs.
type RolloutConfig struct {
	UserToggle                  bool   `yaml:"userToggle"`
	RolloutPercent              int    `yaml:"rolloutPercent"`
	StabilityFlag               bool   `yaml:"stabilityFlag"`
	BuildKind                   string `yaml:"buildKind"`
	InternalBuildsBypassPercent bool   `yaml:"internalBuildsBypassPercent"`
	InstallationSeed            string `yaml:"installationSeed"`
}

// SchedulerConfig holds background job intervals. Zero disables a job.
type SchedulerConfig struct {
	ReconcileIntervalSeconds int    `yaml:"reconcileIntervalSeconds"`
	RefreshIntervalSeconds   int    `yaml:"refreshIntervalSeconds"`
	FiatCurrency             string `yaml:"fiatCurrency"`
}

// CacheConfig holds configuration for the last-good aggregation cache.
type CacheConfig struct {
	DefaultExpirationMinutes int `yaml:"defaultExpirationMinutes"`
	CleanupIntervalMinutes   int `yaml:"cleanupIntervalMinutes"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig               `yaml:"server"`
	Database    DBConfig                   `yaml:"database"`
	Logging     LoggingConfig              `yaml:"logging"`
	CoinGecko   CoinGeckoConfig            `yaml:"coingecko"`
	Performance PerformanceConfig          `yaml:"performance"`
	Networks    []entity.NetworkDefinition `yaml:"networks"`
	Tokens      TokensConfig               `yaml:"tokens"`
	Rollout     RolloutConfig              `yaml:"rollout"`
	Scheduler   SchedulerConfig            `yaml:"scheduler"`
	Cache       CacheConfig                `yaml:"cache"`
}

// ChainFetchTimeout is the per-chain bound of one aggregation run.
func (c *Config) ChainFetchTimeout() time.Duration {
	return time.Duration(c.Performance.ChainFetchTimeoutMs) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a fallback.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	logrus.Info("Configuration loaded successfully.")
	return cfg, nil
}

// Parse unmarshals YAML config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
		logrus.Infof("Database.Driver not set, defaulting to %s", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "data/vaults.db"
		logrus.Infof("Database.Path not set, defaulting to %s", cfg.Database.Path)
	}
	if cfg.Database.Driver == "postgres" {
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
		logrus.Infof("CoinGecko.BaseURL not set, defaulting to %s", cfg.CoinGecko.BaseURL)
	}
	if cfg.CoinGecko.RequestTimeoutMillis <= 0 {
		cfg.CoinGecko.RequestTimeoutMillis = 10000
		logrus.Infof("CoinGecko.RequestTimeoutMillis not set, defaulting to %d ms", cfg.CoinGecko.RequestTimeoutMillis)
	}
	if cfg.CoinGecko.CacheTTLSeconds <= 0 {
		cfg.CoinGecko.CacheTTLSeconds = 60
	}

	if cfg.Performance.ChainFetchTimeoutMs <= 0 {
		cfg.Performance.ChainFetchTimeoutMs = 15000
		logrus.Infof("Performance.ChainFetchTimeoutMs not set, defaulting to %d ms", cfg.Performance.ChainFetchTimeoutMs)
	}
	if cfg.Performance.RPCCallTimeoutSeconds <= 0 {
		cfg.Performance.RPCCallTimeoutSeconds = 10
	}
	if cfg.Performance.RPCConnectTimeoutSeconds <= 0 {
		cfg.Performance.RPCConnectTimeoutSeconds = 10
	}
	if cfg.Performance.RateLimit <= 0 {
		cfg.Performance.RateLimit = 10
	}
	if cfg.Performance.BurstLimit <= 0 {
		cfg.Performance.BurstLimit = 5
	}
	if cfg.Performance.MaxAddressesPerBatchCall <= 0 {
		cfg.Performance.MaxAddressesPerBatchCall = 100
	}

	if cfg.Tokens.Dir == "" {
		cfg.Tokens.Dir = "data/tokens"
	}

	if cfg.Rollout.RolloutPercent < 0 {
		cfg.Rollout.RolloutPercent = 0
	}
	if cfg.Rollout.RolloutPercent > 100 {
		logrus.Warnf("Rollout.RolloutPercent %d is above 100, clamping", cfg.Rollout.RolloutPercent)
		cfg.Rollout.RolloutPercent = 100
	}
	if cfg.Rollout.BuildKind == "" {
		cfg.Rollout.BuildKind = "release"
	}

	if cfg.Scheduler.FiatCurrency == "" {
		cfg.Scheduler.FiatCurrency = "USD"
	}

	if cfg.Cache.DefaultExpirationMinutes <= 0 {
		cfg.Cache.DefaultExpirationMinutes = 30
	}
	if cfg.Cache.CleanupIntervalMinutes <= 0 {
		cfg.Cache.CleanupIntervalMinutes = 60
	}

	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		if n.Decimals == 0 {
			n.Decimals = 18
		}
		if n.Identifier == "" {
			n.Identifier = strings.ToLower(strings.ReplaceAll(n.Name, " ", "-"))
			logrus.Warnf("Network '%s' (ChainID: %d) has no identifier, using '%s'", n.Name, n.ChainID, n.Identifier)
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	seen := make(map[uint64]struct{}, len(cfg.Networks))
	for _, n := range cfg.Networks {
		if n.ChainID == 0 {
			return fmt.Errorf("network %q is missing chainId", n.Name)
		}
		if _, dup := seen[n.ChainID]; dup {
			return fmt.Errorf("network chainId %d is configured twice", n.ChainID)
		}
		seen[n.ChainID] = struct{}{}
		if n.PrimaryRPCURL == "" {
			logrus.Warnf("Network '%s' (ChainID: %d) has no primaryRpcUrl, the built-in endpoint will be used if known", n.Name, n.ChainID)
		}
	}
	return nil
}
