package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"CORPELIMA_APP_NAME":                os.Getenv("CORPELIMA_APP_NAME"),
		"CORPELIMA_APP_ENV":                 os.Getenv("CORPELIMA_APP_ENV"),
		"CORPELIMA_APP_PORT":                os.Getenv("CORPELIMA_APP_PORT"),
		"CORPELIMA_DATABASE_HOST":           os.Getenv("CORPELIMA_DATABASE_HOST"),
		"CORPELIMA_DATABASE_PORT":           os.Getenv("CORPELIMA_DATABASE_PORT"),
		"CORPELIMA_DATABASE_USER":           os.Getenv("CORPELIMA_DATABASE_USER"),
		"CORPELIMA_DATABASE_PASSWORD":       os.Getenv("CORPELIMA_DATABASE_PASSWORD"),
		"CORPELIMA_DATABASE_DBNAME":         os.Getenv("CORPELIMA_DATABASE_DBNAME"),
		"CORPELIMA_DATABASE_SSLMODE":        os.Getenv("CORPELIMA_DATABASE_SSLMODE"),
		"CORPELIMA_DATABASE_MAX_OPEN_CONNS": os.Getenv("CORPELIMA_DATABASE_MAX_OPEN_CONNS"),
		"CORPELIMA_DATABASE_MAX_IDLE_CONNS": os.Getenv("CORPELIMA_DATABASE_MAX_IDLE_CONNS"),
		"CORPELIMA_REDIS_ENABLED":           os.Getenv("CORPELIMA_REDIS_ENABLED"),
		"CORPELIMA_REDIS_RATE_TTL":          os.Getenv("CORPELIMA_REDIS_RATE_TTL"),
		"CORPELIMA_EVENT_WORKERS":           os.Getenv("CORPELIMA_EVENT_WORKERS"),
		"CORPELIMA_EVENT_QUEUE_SIZE":        os.Getenv("CORPELIMA_EVENT_QUEUE_SIZE"),
		"CORPELIMA_STORAGE_BUCKET":          os.Getenv("CORPELIMA_STORAGE_BUCKET"),
		"CORPELIMA_STORAGE_ACCESS_KEY":      os.Getenv("CORPELIMA_STORAGE_ACCESS_KEY"),
		"CORPELIMA_STORAGE_SECRET_KEY":      os.Getenv("CORPELIMA_STORAGE_SECRET_KEY"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "procurement-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "procurement", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 15*time.Minute, cfg.Redis.RateTTL)
		assert.Equal(t, 4, cfg.Event.Workers)
		assert.Equal(t, 256, cfg.Event.QueueSize)
		assert.Equal(t, 30*time.Second, cfg.Event.ShutdownTimeout)
		assert.Equal(t, "purchase-orders", cfg.Storage.Bucket)
	})

	t.Run("loads values from environment variables with CORPELIMA prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("CORPELIMA_APP_NAME", "test-app")
		os.Setenv("CORPELIMA_APP_ENV", "testing")
		os.Setenv("CORPELIMA_APP_PORT", "9000")
		os.Setenv("CORPELIMA_DATABASE_HOST", "testdb.local")
		os.Setenv("CORPELIMA_DATABASE_PORT", "5433")
		os.Setenv("CORPELIMA_DATABASE_USER", "testuser")
		os.Setenv("CORPELIMA_DATABASE_PASSWORD", "testpass")
		os.Setenv("CORPELIMA_DATABASE_DBNAME", "testdb")
		os.Setenv("CORPELIMA_DATABASE_SSLMODE", "require")
		os.Setenv("CORPELIMA_DATABASE_MAX_OPEN_CONNS", "50")
		os.Setenv("CORPELIMA_DATABASE_MAX_IDLE_CONNS", "10")
		os.Setenv("CORPELIMA_REDIS_ENABLED", "true")
		os.Setenv("CORPELIMA_REDIS_RATE_TTL", "5m")
		os.Setenv("CORPELIMA_EVENT_WORKERS", "8")
		os.Setenv("CORPELIMA_EVENT_QUEUE_SIZE", "512")
		os.Setenv("CORPELIMA_STORAGE_BUCKET", "test-artifacts")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Redis.RateTTL)
		assert.Equal(t, 8, cfg.Event.Workers)
		assert.Equal(t, 512, cfg.Event.QueueSize)
		assert.Equal(t, "test-artifacts", cfg.Storage.Bucket)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("CORPELIMA_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("CORPELIMA_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("CORPELIMA_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv()
		os.Setenv("CORPELIMA_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"CORPELIMA_APP_ENV":            os.Getenv("CORPELIMA_APP_ENV"),
		"CORPELIMA_DATABASE_PASSWORD":  os.Getenv("CORPELIMA_DATABASE_PASSWORD"),
		"CORPELIMA_DATABASE_SSLMODE":   os.Getenv("CORPELIMA_DATABASE_SSLMODE"),
		"CORPELIMA_STORAGE_ACCESS_KEY": os.Getenv("CORPELIMA_STORAGE_ACCESS_KEY"),
		"CORPELIMA_STORAGE_SECRET_KEY": os.Getenv("CORPELIMA_STORAGE_SECRET_KEY"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	setValidProductionBase := func() {
		os.Setenv("CORPELIMA_APP_ENV", "production")
		os.Setenv("CORPELIMA_DATABASE_PASSWORD", "secure-password")
		os.Setenv("CORPELIMA_DATABASE_SSLMODE", "require")
		os.Setenv("CORPELIMA_STORAGE_ACCESS_KEY", "AKIAEXAMPLE")
		os.Setenv("CORPELIMA_STORAGE_SECRET_KEY", "secret")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("CORPELIMA_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("CORPELIMA_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires storage credentials in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("CORPELIMA_STORAGE_SECRET_KEY")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage credentials are required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

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
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
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

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
