package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Loader loads configuration with viper, following the teacher's
// ConfigLoader pattern: a YAML file overlaid on defaults, overridden by
// environment variables.
type Loader struct {
	viper  *viper.Viper
	logger *logrus.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SIMCTRL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v, logger: logrus.New()}
}

// Load loads configuration from configPath, falling back to defaults when
// the file is absent.
func (l *Loader) Load(configPath string) (*Config, error) {
	l.setDefaults()

	if configPath != "" {
		l.viper.SetConfigFile(configPath)
		if err := l.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				l.logger.Warn("configuration file not found, using defaults")
			} else {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (l *Loader) setDefaults() {
	v := l.viper

	v.SetDefault("server.bind_host", "0.0.0.0")
	v.SetDefault("server.bind_port", 8800)

	v.SetDefault("state.state_dir", "/var/lib/simctrl")

	v.SetDefault("connection.max_connections_per_session", 10)
	v.SetDefault("connection.max_connections_per_minute", 20)
	v.SetDefault("connection.rate_limit_window", "60s")
	v.SetDefault("connection.connection_cleanup_interval", "30s")

	v.SetDefault("resource.max_memory_mb", 2048)
	v.SetDefault("resource.memory_check_interval", "30s")
	v.SetDefault("resource.service_idle_timeout", "300s")
	v.SetDefault("resource.max_emergency_cleanup", 3)

	v.SetDefault("capture.default_quality", "medium")
	v.SetDefault("capture.default_fps", 60)

	v.SetDefault("recording.emergency_retention", "168h")
	v.SetDefault("recording.stop_grace", "10s")

	v.SetDefault("host_driver.simctl_bin", "xcrun")
	v.SetDefault("host_driver.automation_bin", "idb")
	v.SetDefault("host_driver.create_timeout", "120s")
	v.SetDefault("host_driver.action_timeout", "10s")
	v.SetDefault("host_driver.retry_attempts", 3)
	v.SetDefault("host_driver.backup_retention_count", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file_enabled", true)
	v.SetDefault("logging.file_path", "/var/log/simctrl/simctrl.log")
	v.SetDefault("logging.max_file_size_mb", 10)
	v.SetDefault("logging.backup_count", 5)
	v.SetDefault("logging.console_enabled", true)

	v.SetDefault("security.enabled", false)
	v.SetDefault("security.signing_key", "")
}

// Viper exposes the underlying viper instance. Manager watches the config
// file with its own fsnotify watcher and does not use it.
func (l *Loader) Viper() *viper.Viper { return l.viper }
