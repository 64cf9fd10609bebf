package config

import "fmt"

// Validate checks invariants across the configuration tree that viper's
// unmarshal step cannot enforce on its own.
func Validate(c *Config) error {
	if c.Server.BindPort <= 0 || c.Server.BindPort > 65535 {
		return fmt.Errorf("server.bind_port out of range: %d", c.Server.BindPort)
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.state_dir must not be empty")
	}
	if c.Connection.MaxPerSession <= 0 {
		return fmt.Errorf("connection.max_connections_per_session must be positive")
	}
	if c.Connection.MaxPerMinute <= 0 {
		return fmt.Errorf("connection.max_connections_per_minute must be positive")
	}
	if c.Resource.MaxMemoryMB <= 0 {
		return fmt.Errorf("resource.max_memory_mb must be positive")
	}
	switch c.Capture.DefaultQuality {
	case "low", "medium", "high", "ultra":
	default:
		return fmt.Errorf("capture.default_quality must be one of low|medium|high|ultra, got %q", c.Capture.DefaultQuality)
	}
	if c.HostDriver.BackupRetentionCount <= 0 {
		return fmt.Errorf("host_driver.backup_retention_count must be positive")
	}
	return nil
}
