package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the coordinator
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Web3      Web3Config      `toml:"web3"`
	Staking   StakingConfig   `toml:"staking"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Log       LogConfig       `toml:"log"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	JWT       JWTConfig       `toml:"jwt"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  int    `toml:"read_timeout"`
	WriteTimeout int    `toml:"write_timeout"`
	// AdminAPIKey guards the operator routes; empty disables them
	AdminAPIKey string `toml:"admin_api_key"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Database   string `toml:"database"`
	SSLMode    string `toml:"ssl_mode"`
	URL        string `toml:"url"`
	Migrations string `toml:"migrations"`
}

// Web3Config holds chain access and the attestation key
type Web3Config struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         int64  `toml:"chain_id"`
	ContractAddress string `toml:"contract_address"`
	PrivateKey      string `toml:"-"`
	RPCTimeout      int    `toml:"rpc_timeout"`
}

// StakingConfig holds commitment rules
type StakingConfig struct {
	RewardMultiplier   float64 `toml:"reward_multiplier"`
	AttestationTimeout int     `toml:"attestation_timeout"`
	ProofLimit         int     `toml:"proof_limit"`
	DefaultPodDuration int     `toml:"default_pod_duration_days"`
}

// SchedulerConfig holds cron specs and sweep tuning
type SchedulerConfig struct {
	Disabled       bool   `toml:"disabled"`
	SweepSpec      string `toml:"sweep_spec"`
	ExpireSpec     string `toml:"expire_spec"`
	ConfirmSpec    string `toml:"confirm_spec"`
	SweepWorkers   int    `toml:"sweep_workers"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBackoffMs int    `toml:"retry_backoff_ms"`
	ConfirmBatch   int    `toml:"confirm_batch"`
}

// LogConfig holds logger sinks
type LogConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	ErrorFile string `toml:"error_file"`
	JSON      bool   `toml:"json"`
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// JWTConfig holds token settings
type JWTConfig struct {
	Secret          string `toml:"-"`
	ExpirationHours int    `toml:"expiration_hours"`
}

// Load loads configuration from TOML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	config.SetDefaults()

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoadEnv reads secrets from the environment, after loading the given
// .env files when present. Missing files are ignored.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("WEB3_RPC_URL"); v != "" {
		c.Web3.RPCURL = v
	}
	if v := os.Getenv("ATTESTATION_PRIVATE_KEY"); v != "" {
		c.Web3.PrivateKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.Server.AdminAPIKey = v
	}
	if v := os.Getenv("WEB3_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid WEB3_CHAIN_ID: %w", err)
		}
		c.Web3.ChainID = id
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) DatabaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func (c *Web3Config) Timeout() time.Duration {
	return time.Duration(c.RPCTimeout) * time.Second
}

func (c *StakingConfig) Timeout() time.Duration {
	return time.Duration(c.AttestationTimeout) * time.Second
}

func (c *SchedulerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// SetDefaults sets default values for config
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "postgres"
	}
	if c.Database.Database == "" {
		c.Database.Database = "studystake"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Migrations == "" {
		c.Database.Migrations = "migrations"
	}
	if c.Web3.ChainID == 0 {
		c.Web3.ChainID = 84532 // Base Sepolia
	}
	if c.Web3.RPCTimeout == 0 {
		c.Web3.RPCTimeout = 10
	}
	if c.Staking.RewardMultiplier == 0 {
		c.Staking.RewardMultiplier = 1.10
	}
	if c.Staking.AttestationTimeout == 0 {
		c.Staking.AttestationTimeout = 30
	}
	if c.Staking.ProofLimit == 0 {
		c.Staking.ProofLimit = 100
	}
	if c.Staking.DefaultPodDuration == 0 {
		c.Staking.DefaultPodDuration = 30
	}
	if c.Scheduler.SweepSpec == "" {
		c.Scheduler.SweepSpec = "@every 1h"
	}
	if c.Scheduler.ExpireSpec == "" {
		c.Scheduler.ExpireSpec = "0 * * * *"
	}
	if c.Scheduler.ConfirmSpec == "" {
		c.Scheduler.ConfirmSpec = "@every 1m"
	}
	if c.Scheduler.SweepWorkers == 0 {
		c.Scheduler.SweepWorkers = 4
	}
	if c.Scheduler.MaxRetries == 0 {
		c.Scheduler.MaxRetries = 3
	}
	if c.Scheduler.RetryBackoffMs == 0 {
		c.Scheduler.RetryBackoffMs = 500
	}
	if c.Scheduler.ConfirmBatch == 0 {
		c.Scheduler.ConfirmBatch = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.JWT.ExpirationHours == 0 {
		c.JWT.ExpirationHours = 24
	}
}
