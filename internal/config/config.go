package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Transport TransportConfig `yaml:"transport"`
	Templates TemplatesConfig `yaml:"templates"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// on ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ShutdownTimeout is how long in-flight requests get on shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds the schedule registry connection. cmd/server refuses to
// start without a URL.
type RedisConfig struct {
	URL         string `yaml:"url"`
	RegistryKey string `yaml:"registry_key"`
}

// TransportConfig selects the outbound email transport
type TransportConfig struct {
	Provider  string          `yaml:"provider"` // ses, sparkpost or log
	FromName  string          `yaml:"from_name"`
	FromEmail string          `yaml:"from_email"`
	SES       SESConfig       `yaml:"ses"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
}

// SESConfig holds AWS SES settings
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// SparkPostConfig holds SparkPost API configuration
type SparkPostConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// TemplatesConfig selects where template bodies come from
type TemplatesConfig struct {
	Source          string `yaml:"source"` // postgres or s3
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// CacheTTL is how long a loaded template body is reused.
func (c TemplatesConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// DispatchConfig tunes recipient fan-out. LookupConcurrency bounds the
// parallel directory calls made while resolving recipients.
type DispatchConfig struct {
	Concurrency        int `yaml:"concurrency"`
	LookupConcurrency  int `yaml:"lookup_concurrency"`
	SendTimeoutSeconds int `yaml:"send_timeout_seconds"`
}

// SendTimeout bounds a single transport call; zero means no bound.
func (c DispatchConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// SchedulerConfig holds the embedded schedule runner settings
type SchedulerConfig struct {
	Enabled                  bool `yaml:"enabled"`
	ReconcileIntervalSeconds int  `yaml:"reconcile_interval_seconds"`
	LockTTLSeconds           int  `yaml:"lock_ttl_seconds"`
}

// ReconcileInterval is how often the runner re-reads the registry.
func (c SchedulerConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// LockTTL is how long a fire lock is held.
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// AuditConfig enables the DynamoDB delivery audit log when DynamoDBTable is set
type AuditConfig struct {
	DynamoDBTable string `yaml:"dynamodb_table"`
	Region        string `yaml:"region"`
}

// Enabled reports whether deliveries are audited.
func (c AuditConfig) Enabled() bool { return c.DynamoDBTable != "" }

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// ShouldRedact defaults to true when unset.
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.RegistryKey == "" {
		cfg.Redis.RegistryKey = "notify:schedules"
	}
	if cfg.Transport.Provider == "" {
		cfg.Transport.Provider = "log"
	}
	if cfg.Transport.SES.Region == "" {
		cfg.Transport.SES.Region = "us-east-1"
	}
	if cfg.Templates.Source == "" {
		cfg.Templates.Source = "postgres"
	}
	if cfg.Templates.CacheTTLSeconds == 0 {
		cfg.Templates.CacheTTLSeconds = 60
	}
	if cfg.Templates.Region == "" {
		cfg.Templates.Region = cfg.Transport.SES.Region
	}
	if cfg.Dispatch.Concurrency == 0 {
		cfg.Dispatch.Concurrency = 8
	}
	if cfg.Dispatch.LookupConcurrency == 0 {
		cfg.Dispatch.LookupConcurrency = 8
	}
	if cfg.Scheduler.ReconcileIntervalSeconds == 0 {
		cfg.Scheduler.ReconcileIntervalSeconds = 30
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 120
	}
	if cfg.Audit.Region == "" {
		cfg.Audit.Region = cfg.Transport.SES.Region
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRANSPORT_PROVIDER"); v != "" {
		cfg.Transport.Provider = v
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.Transport.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.Transport.SparkPost.BaseURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Transport.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Transport.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Transport.SES.Region = v
	}
	if v := os.Getenv("TEMPLATES_S3_BUCKET"); v != "" {
		cfg.Templates.Bucket = v
	}
	if v := os.Getenv("AUDIT_DYNAMODB_TABLE"); v != "" {
		cfg.Audit.DynamoDBTable = v
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Scheduler.Enabled = on
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
