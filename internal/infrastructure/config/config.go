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
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Dedup     DedupConfig
	Engine    EngineConfig
	Worktime  WorktimeConfig
	Schedule  ScheduleConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    int           // in minutes
	SlowQueryThreshold time.Duration // slower statements log at Warn; negative disables
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendTiered = "tiered"
)

// CacheConfig holds rule result cache settings
type CacheConfig struct {
	Backend             string // memory, redis, tiered
	TTL                 time.Duration
	L1TTL               time.Duration
	CleanupInterval     time.Duration
	KeyPrefix           string
	InvalidationChannel string
}

// DedupConfig controls duplicate punch suppression. The backend follows
// the cache backend: redis and tiered share the Redis connection.
type DedupConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
}

// EngineConfig holds rule engine settings
type EngineConfig struct {
	Parallelism        int
	AttendanceCategory string // rule category evaluated after each calculation
}

// WorktimeConfig holds shift defaults applied when a shift leaves them unset
type WorktimeConfig struct {
	PunchWindowMinutes     int
	FlexStartWindowMinutes int
	DefaultWorkMinutes     int
	CoreMinutes            int
}

// ScheduleConfig holds conflict detection limits
type ScheduleConfig struct {
	MaxDailyMinutes  int
	MaxWeeklyMinutes int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to enable OpenTelemetry
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string        // Service name for traces and metrics
	ExportInterval    time.Duration // Metric export interval
	SamplingRatio     float64       // Trace sampling ratio in [0, 1]
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool          // Per-statement database spans (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ATTENDANCE_ prefix (e.g., ATTENDANCE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches the default locations
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/attendance")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("database.host"),
			Port:               v.GetInt("database.port"),
			User:               v.GetString("database.user"),
			Password:           v.GetString("database.password"),
			DBName:             v.GetString("database.dbname"),
			SSLMode:            v.GetString("database.sslmode"),
			MaxOpenConns:       v.GetInt("database.max_open_conns"),
			MaxIdleConns:       v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime:    v.GetInt("database.conn_max_lifetime"),
			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Backend:             v.GetString("cache.backend"),
			TTL:                 v.GetDuration("cache.ttl"),
			L1TTL:               v.GetDuration("cache.l1_ttl"),
			CleanupInterval:     v.GetDuration("cache.cleanup_interval"),
			KeyPrefix:           v.GetString("cache.key_prefix"),
			InvalidationChannel: v.GetString("cache.invalidation_channel"),
		},
		Dedup: DedupConfig{
			Enabled:   v.GetBool("dedup.enabled"),
			TTL:       v.GetDuration("dedup.ttl"),
			KeyPrefix: v.GetString("dedup.key_prefix"),
		},
		Engine: EngineConfig{
			Parallelism:        v.GetInt("engine.parallelism"),
			AttendanceCategory: v.GetString("engine.attendance_category"),
		},
		Worktime: WorktimeConfig{
			PunchWindowMinutes:     v.GetInt("worktime.punch_window_minutes"),
			FlexStartWindowMinutes: v.GetInt("worktime.flex_start_window_minutes"),
			DefaultWorkMinutes:     v.GetInt("worktime.default_work_minutes"),
			CoreMinutes:            v.GetInt("worktime.core_minutes"),
		},
		Schedule: ScheduleConfig{
			MaxDailyMinutes:  v.GetInt("schedule.max_daily_minutes"),
			MaxWeeklyMinutes: v.GetInt("schedule.max_weekly_minutes"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "attendance"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "attendance"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheBackendMemory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Cache.L1TTL == 0 {
		cfg.Cache.L1TTL = 30 * time.Second
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = 30 * time.Second
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "attendance:rule"
	}
	if cfg.Cache.InvalidationChannel == "" {
		cfg.Cache.InvalidationChannel = "attendance:rule-cache:invalidate"
	}
	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = 10 * time.Minute
	}
	if cfg.Dedup.KeyPrefix == "" {
		cfg.Dedup.KeyPrefix = "attendance:punch:"
	}
	if cfg.Engine.Parallelism == 0 {
		cfg.Engine.Parallelism = 8
	}
	if cfg.Engine.AttendanceCategory == "" {
		cfg.Engine.AttendanceCategory = "attendance"
	}
	if cfg.Worktime.PunchWindowMinutes == 0 {
		cfg.Worktime.PunchWindowMinutes = 120
	}
	if cfg.Worktime.FlexStartWindowMinutes == 0 {
		cfg.Worktime.FlexStartWindowMinutes = 180
	}
	if cfg.Worktime.DefaultWorkMinutes == 0 {
		cfg.Worktime.DefaultWorkMinutes = 480
	}
	if cfg.Worktime.CoreMinutes == 0 {
		cfg.Worktime.CoreMinutes = 360
	}
	if cfg.Schedule.MaxDailyMinutes == 0 {
		cfg.Schedule.MaxDailyMinutes = 12 * 60
	}
	if cfg.Schedule.MaxWeeklyMinutes == 0 {
		cfg.Schedule.MaxWeeklyMinutes = 60 * 60
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "attendance"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	// Zero means unset; disable telemetry to stop tracing entirely.
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendTiered:
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis, tiered, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 || c.Cache.L1TTL < 0 {
		return fmt.Errorf("cache ttl values cannot be negative")
	}

	if c.Dedup.TTL < 0 {
		return fmt.Errorf("dedup.ttl cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}

	if c.Engine.Parallelism <= 0 {
		return fmt.Errorf("engine.parallelism must be positive")
	}

	// Validate connection pool settings
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

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
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
