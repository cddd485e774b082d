package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "attendance", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "attendance", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 6379, cfg.Redis.Port)
		assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, 30*time.Second, cfg.Cache.L1TTL)
		assert.Equal(t, "attendance:rule", cfg.Cache.KeyPrefix)
		assert.False(t, cfg.Dedup.Enabled)
		assert.Equal(t, 10*time.Minute, cfg.Dedup.TTL)
		assert.Equal(t, "attendance:punch:", cfg.Dedup.KeyPrefix)
		assert.Equal(t, 8, cfg.Engine.Parallelism)
		assert.Equal(t, "attendance", cfg.Engine.AttendanceCategory)
		assert.Equal(t, 120, cfg.Worktime.PunchWindowMinutes)
		assert.Equal(t, 180, cfg.Worktime.FlexStartWindowMinutes)
		assert.Equal(t, 480, cfg.Worktime.DefaultWorkMinutes)
		assert.Equal(t, 360, cfg.Worktime.CoreMinutes)
		assert.Equal(t, 720, cfg.Schedule.MaxDailyMinutes)
		assert.Equal(t, 3600, cfg.Schedule.MaxWeeklyMinutes)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "localhost:4317", cfg.Telemetry.CollectorEndpoint)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
		assert.False(t, cfg.Telemetry.DBTraceEnabled)
	})

	t.Run("loads values from environment variables with ATTENDANCE prefix", func(t *testing.T) {
		t.Setenv("ATTENDANCE_APP_NAME", "test-app")
		t.Setenv("ATTENDANCE_DATABASE_HOST", "testdb.local")
		t.Setenv("ATTENDANCE_DATABASE_PORT", "5433")
		t.Setenv("ATTENDANCE_CACHE_BACKEND", "tiered")
		t.Setenv("ATTENDANCE_CACHE_TTL", "2m")
		t.Setenv("ATTENDANCE_ENGINE_PARALLELISM", "4")
		t.Setenv("ATTENDANCE_SCHEDULE_MAX_DAILY_MINUTES", "600")
		t.Setenv("ATTENDANCE_DEDUP_ENABLED", "true")
		t.Setenv("ATTENDANCE_DEDUP_TTL", "30s")
		t.Setenv("ATTENDANCE_DATABASE_SLOW_QUERY_THRESHOLD", "750ms")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, CacheBackendTiered, cfg.Cache.Backend)
		assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, 4, cfg.Engine.Parallelism)
		assert.Equal(t, 600, cfg.Schedule.MaxDailyMinutes)
		assert.True(t, cfg.Dedup.Enabled)
		assert.Equal(t, 30*time.Second, cfg.Dedup.TTL)
		assert.Equal(t, 750*time.Millisecond, cfg.Database.SlowQueryThreshold)
	})

	t.Run("rejects unknown cache backend", func(t *testing.T) {
		t.Setenv("ATTENDANCE_CACHE_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		t.Setenv("ATTENDANCE_LOG_LEVEL", "verbose")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.level")
	})

	t.Run("rejects negative parallelism", func(t *testing.T) {
		t.Setenv("ATTENDANCE_ENGINE_PARALLELISM", "-2")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine.parallelism must be positive")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("ATTENDANCE_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("ATTENDANCE_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		t.Setenv("ATTENDANCE_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("reads an explicit TOML file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "attendance.toml")
		content := `
[app]
name = "from-file"

[cache]
backend = "redis"
key_prefix = "att"

[worktime]
punch_window_minutes = 60
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.App.Name)
		assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
		assert.Equal(t, "att", cfg.Cache.KeyPrefix)
		assert.Equal(t, 60, cfg.Worktime.PunchWindowMinutes)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "attendance.toml")
		require.NoError(t, os.WriteFile(path, []byte("[app]\nname = \"from-file\"\n"), 0o600))
		t.Setenv("ATTENDANCE_APP_NAME", "from-env")

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.App.Name)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
		require.Error(t, err)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	t.Run("requires database.password in production", func(t *testing.T) {
		t.Setenv("ATTENDANCE_APP_ENV", "production")
		t.Setenv("ATTENDANCE_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		t.Setenv("ATTENDANCE_APP_ENV", "production")
		t.Setenv("ATTENDANCE_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ATTENDANCE_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		t.Setenv("ATTENDANCE_APP_ENV", "production")
		t.Setenv("ATTENDANCE_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ATTENDANCE_DATABASE_SSLMODE", "require")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
