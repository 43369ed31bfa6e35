package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Sessions
		Insights
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path     string
		LogLevel string // gorm logger level: silent, error, warn, info
	}
	Sessions struct {
		IdleTimeout           time.Duration // Open sessions without page reports for this long are closed
		SweepSchedule         string        // Cron format; empty disables the idle sweep
		OrphanCleanupSchedule string        // Cron format; empty disables scheduled orphan cleanup
	}
	Insights struct {
		Timezone string // IANA name used to assign sessions to calendar days
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.AllowEmptyEnv(true) // an empty schedule disables the job
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("db_log_level", "warn")
	v.SetDefault("timezone", "Local")

	// Session maintenance defaults
	v.SetDefault("session_idle_timeout", "30m")
	v.SetDefault("session_sweep_schedule", "*/5 * * * *")
	v.SetDefault("orphan_cleanup_schedule", "0 3 * * *") // Daily at 03:00

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	return v
}

// Load builds the configuration from defaults, an optional config file named
// by CONFIG_FILE (any format viper reads), and environment variables, in
// increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file, which takes the place of
// CONFIG_FILE when non-empty.
func LoadFrom(file string) (*Config, error) {
	v := newViper()

	if file == "" {
		file = v.GetString("CONFIG_FILE")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:     v.GetString("DATABASE_PATH"),
			LogLevel: v.GetString("DB_LOG_LEVEL"),
		},
		Sessions: Sessions{
			IdleTimeout:           v.GetDuration("SESSION_IDLE_TIMEOUT"),
			SweepSchedule:         strings.TrimSpace(v.GetString("SESSION_SWEEP_SCHEDULE")),
			OrphanCleanupSchedule: strings.TrimSpace(v.GetString("ORPHAN_CLEANUP_SCHEDULE")),
		},
		Insights: Insights{
			Timezone: v.GetString("TIMEZONE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}, nil
}

// Location resolves the insights timezone. Unknown names fall back to UTC.
func (i Insights) Location() *time.Location {
	if i.Timezone == "" || strings.EqualFold(i.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Address returns the host:port the HTTP server listens on.
func (h HTTP) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
