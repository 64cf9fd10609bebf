// Package config defines the configuration tree for the simulator control
// plane and loads it with viper, following the teacher's mapstructure-tag
// convention.
package config

import (
	"fmt"
	"time"

	"github.com/radiocontrol/simctrl/internal/logging"
)

// Config is the complete service configuration (spec §6).
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	State      StateConfig      `mapstructure:"state"`
	Connection ConnectionConfig `mapstructure:"connection"`
	Resource   ResourceConfig   `mapstructure:"resource"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Recording  RecordingConfig  `mapstructure:"recording"`
	HostDriver HostDriverConfig `mapstructure:"host_driver"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Security   SecurityConfig   `mapstructure:"security"`
}

// ServerConfig controls the network bind.
type ServerConfig struct {
	BindHost string `mapstructure:"bind_host"`
	BindPort int    `mapstructure:"bind_port"`
}

// StateConfig controls persistent state location.
type StateConfig struct {
	Dir string `mapstructure:"state_dir"`
}

// ConnectionConfig mirrors spec §6's connection-manager options.
type ConnectionConfig struct {
	MaxPerSession       int           `mapstructure:"max_connections_per_session"`
	MaxPerMinute        int           `mapstructure:"max_connections_per_minute"`
	RateLimitWindow     time.Duration `mapstructure:"rate_limit_window"`
	CleanupInterval     time.Duration `mapstructure:"connection_cleanup_interval"`
}

// ResourceConfig mirrors spec §6's memory/eviction options.
type ResourceConfig struct {
	MaxMemoryMB          int           `mapstructure:"max_memory_mb"`
	MemoryCheckInterval  time.Duration `mapstructure:"memory_check_interval"`
	ServiceIdleTimeout   time.Duration `mapstructure:"service_idle_timeout"`
	MaxEmergencyCleanup  int           `mapstructure:"max_emergency_cleanup"`
}

// CaptureConfig controls default streaming preset.
type CaptureConfig struct {
	DefaultQuality string `mapstructure:"default_quality"`
	DefaultFPS     int    `mapstructure:"default_fps"`
}

// RecordingConfig controls how long emergency-saved recordings are kept
// and how long a stopping recording is given to finalize.
type RecordingConfig struct {
	EmergencyRetention time.Duration `mapstructure:"emergency_retention"`
	StopGrace          time.Duration `mapstructure:"stop_grace"`
}

// HostDriverConfig controls host CLI timeouts and backup retention.
type HostDriverConfig struct {
	SimctlBin            string        `mapstructure:"simctl_bin"`
	AutomationBin        string        `mapstructure:"automation_bin"`
	CreateTimeout        time.Duration `mapstructure:"create_timeout"`
	ActionTimeout        time.Duration `mapstructure:"action_timeout"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	BackupRetentionCount int           `mapstructure:"backup_retention_count"`
}

// LoggingConfig is re-declared here (rather than imported from
// internal/logging) so viper can unmarshal the whole tree in one pass;
// config.ToLoggingConfig converts it.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSizeMB  int    `mapstructure:"max_file_size_mb"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// SecurityConfig controls the optional bearer-token gate.
type SecurityConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SigningKey string `mapstructure:"signing_key"`
}

// ToLoggingConfig converts the embedded LoggingConfig section into
// internal/logging's own Config type, since viper unmarshal needs the
// mapstructure tags declared locally but internal/logging.Setup expects
// its own type.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:          c.Logging.Level,
		Format:         c.Logging.Format,
		FileEnabled:    c.Logging.FileEnabled,
		FilePath:       c.Logging.FilePath,
		MaxFileSizeMB:  c.Logging.MaxFileSizeMB,
		BackupCount:    c.Logging.BackupCount,
		ConsoleEnabled: c.Logging.ConsoleEnabled,
	}
}

// String returns a short debug representation, matching the teacher's
// Config.String idiom.
func (c *Config) String() string {
	return fmt.Sprintf("Config{server=%s:%d state_dir=%s max_conn/session=%d max_conn/min=%d max_memory_mb=%d}",
		c.Server.BindHost, c.Server.BindPort, c.State.Dir,
		c.Connection.MaxPerSession, c.Connection.MaxPerMinute, c.Resource.MaxMemoryMB)
}
