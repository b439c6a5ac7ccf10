package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Engine    EngineConfig
	Webhook   WebhookConfig
	Secrets   SecretsConfig
	Archive   ArchiveConfig
	Swagger   SwaggerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SchedulerConfig holds the sync trigger loop configuration
type SchedulerConfig struct {
	Enabled bool
	// PollInterval is the tick period for due-configuration polling
	PollInterval time.Duration
	// Workers is the execution worker pool size
	Workers int
	// QueueSize bounds the pending job channel
	QueueSize int
	// HistorySize bounds the in-memory job history kept for operators
	HistorySize int
	// DueBatchLimit caps how many due configurations one tick picks up
	DueBatchLimit int
}

// EngineConfig holds sync execution engine policy
type EngineConfig struct {
	// DefaultTimeout is the wall-clock budget when neither the
	// configuration nor the connector definition sets one
	DefaultTimeout time.Duration
	// LockTTL is how long an execution lock may be held before another
	// process may steal it after a crash
	LockTTL time.Duration
	// FailureAbortRatio aborts a run early when, after
	// FailureAbortMinimum processed records, failed/processed exceeds it
	FailureAbortRatio   float64
	FailureAbortMinimum int
	// RateLimitBackoff is the connection backoff applied when a
	// connector reports throttling without a retry-after hint
	RateLimitBackoff time.Duration
}

// WebhookConfig holds outbound delivery dispatcher configuration
type WebhookConfig struct {
	Workers   int
	QueueSize int
	// DedupTTL is how long inbound event IDs are remembered
	DedupTTL time.Duration
}

// SecretsConfig holds the credential store settings
type SecretsConfig struct {
	// EncryptionKey is the hex-encoded 32-byte key used to encrypt
	// connection credentials at rest
	EncryptionKey string
}

// ArchiveConfig holds retention and archival settings for execution
// history and delivery logs
type ArchiveConfig struct {
	Enabled bool
	// RetentionDays is how long terminal executions and delivery logs
	// stay in the database before archival
	RetentionDays int
	// Schedule is the cron expression the retention job runs on
	Schedule string
	// S3-compatible object storage target for archived batches
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool
	AllowedIPs  []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
	ProfilerEnabled   bool
	ProfilerEndpoint  string
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNCHUB_ prefix (e.g., SYNCHUB_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNCHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			PollInterval:  v.GetDuration("scheduler.poll_interval"),
			Workers:       v.GetInt("scheduler.workers"),
			QueueSize:     v.GetInt("scheduler.queue_size"),
			HistorySize:   v.GetInt("scheduler.history_size"),
			DueBatchLimit: v.GetInt("scheduler.due_batch_limit"),
		},
		Engine: EngineConfig{
			DefaultTimeout:      v.GetDuration("engine.default_timeout"),
			LockTTL:             v.GetDuration("engine.lock_ttl"),
			FailureAbortRatio:   v.GetFloat64("engine.failure_abort_ratio"),
			FailureAbortMinimum: v.GetInt("engine.failure_abort_minimum"),
			RateLimitBackoff:    v.GetDuration("engine.rate_limit_backoff"),
		},
		Webhook: WebhookConfig{
			Workers:   v.GetInt("webhook.workers"),
			QueueSize: v.GetInt("webhook.queue_size"),
			DedupTTL:  v.GetDuration("webhook.dedup_ttl"),
		},
		Secrets: SecretsConfig{
			EncryptionKey: v.GetString("secrets.encryption_key"),
		},
		Archive: ArchiveConfig{
			Enabled:       v.GetBool("archive.enabled"),
			RetentionDays: v.GetInt("archive.retention_days"),
			Schedule:      v.GetString("archive.schedule"),
			Endpoint:      v.GetString("archive.endpoint"),
			Region:        v.GetString("archive.region"),
			Bucket:        v.GetString("archive.bucket"),
			AccessKey:     v.GetString("archive.access_key"),
			SecretKey:     v.GetString("archive.secret_key"),
			UsePathStyle:  v.GetBool("archive.use_path_style"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerEndpoint:  v.GetString("telemetry.profiler_endpoint"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultStr(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

func defaultInt(target *int, value int) {
	if *target == 0 {
		*target = value
	}
}

func defaultDur(target *time.Duration, value time.Duration) {
	if *target == 0 {
		*target = value
	}
}

// applyDefaults fills every zero-valued field with its built-in default.
func applyDefaults(cfg *Config) {
	defaultStr(&cfg.App.Name, "synchub-backend")
	defaultStr(&cfg.App.Env, "development")
	defaultStr(&cfg.App.Port, "8080")

	defaultStr(&cfg.Database.Host, "localhost")
	defaultInt(&cfg.Database.Port, 5432)
	defaultStr(&cfg.Database.User, "postgres")
	defaultStr(&cfg.Database.DBName, "synchub")
	defaultStr(&cfg.Database.SSLMode, "disable")
	defaultInt(&cfg.Database.MaxOpenConns, 25)
	defaultInt(&cfg.Database.MaxIdleConns, 5)
	defaultInt(&cfg.Database.ConnMaxLifetime, 60)
	defaultInt(&cfg.Database.ConnMaxIdleTime, 30)

	defaultStr(&cfg.Redis.Host, "localhost")
	defaultInt(&cfg.Redis.Port, 6379)

	defaultDur(&cfg.JWT.AccessTokenExpiration, 15*time.Minute)
	defaultStr(&cfg.JWT.Issuer, "synchub-backend")

	defaultStr(&cfg.Log.Level, "info")
	defaultStr(&cfg.Log.Format, "console")
	defaultStr(&cfg.Log.Output, "stdout")

	defaultDur(&cfg.HTTP.ReadTimeout, 15*time.Second)
	defaultDur(&cfg.HTTP.WriteTimeout, 15*time.Second)
	defaultDur(&cfg.HTTP.IdleTimeout, 60*time.Second)
	defaultInt(&cfg.HTTP.MaxHeaderBytes, 1<<20)
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	defaultInt(&cfg.HTTP.RateLimitRequests, 100)
	defaultDur(&cfg.HTTP.RateLimitWindow, time.Minute)
	// An empty CORS origin list means no cross-origin requests are
	// allowed until explicitly configured. No "*" fallback.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}

	defaultDur(&cfg.Scheduler.PollInterval, 15*time.Second)
	defaultInt(&cfg.Scheduler.Workers, 5)
	defaultInt(&cfg.Scheduler.QueueSize, 100)
	defaultInt(&cfg.Scheduler.HistorySize, 100)
	defaultInt(&cfg.Scheduler.DueBatchLimit, 50)

	defaultDur(&cfg.Engine.DefaultTimeout, time.Hour)
	defaultDur(&cfg.Engine.LockTTL, 2*time.Hour)
	if cfg.Engine.FailureAbortRatio == 0 {
		cfg.Engine.FailureAbortRatio = 0.9
	}
	defaultInt(&cfg.Engine.FailureAbortMinimum, 100)
	defaultDur(&cfg.Engine.RateLimitBackoff, 5*time.Minute)

	defaultInt(&cfg.Webhook.Workers, 3)
	defaultInt(&cfg.Webhook.QueueSize, 256)
	defaultDur(&cfg.Webhook.DedupTTL, 24*time.Hour)

	defaultInt(&cfg.Archive.RetentionDays, 90)
	defaultStr(&cfg.Archive.Schedule, "30 3 * * *")
	defaultStr(&cfg.Archive.Region, "us-east-1")

	defaultStr(&cfg.Telemetry.CollectorEndpoint, "localhost:4317")
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	defaultStr(&cfg.Telemetry.ServiceName, "synchub-backend")
	defaultDur(&cfg.Telemetry.DBSlowQueryThresh, 200*time.Millisecond)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Engine.FailureAbortRatio < 0 || c.Engine.FailureAbortRatio > 1 {
		return fmt.Errorf("engine.failure_abort_ratio must be between 0.0 and 1.0, got %f", c.Engine.FailureAbortRatio)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

// validateProduction enforces the settings that are dangerous to leave at
// development defaults once real credentials flow through the system.
func (c *Config) validateProduction() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 characters in production")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	}
	if c.Secrets.EncryptionKey == "" {
		return fmt.Errorf("secrets.encryption_key is required in production")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
		return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
