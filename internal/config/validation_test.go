package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{BindHost: "127.0.0.1", BindPort: 8080},
		State:      StateConfig{Dir: "/tmp/simctrl"},
		Connection: ConnectionConfig{MaxPerSession: 4, MaxPerMinute: 60, RateLimitWindow: time.Minute},
		Resource:   ResourceConfig{MaxMemoryMB: 2048},
		Capture:    CaptureConfig{DefaultQuality: "medium", DefaultFPS: 30},
		HostDriver: HostDriverConfig{BackupRetentionCount: 3},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsBadBindPort(t *testing.T) {
	c := validConfig()
	c.Server.BindPort = 0
	assert.Error(t, Validate(c))

	c.Server.BindPort = 70000
	assert.Error(t, Validate(c))
}

func TestValidateRejectsEmptyStateDir(t *testing.T) {
	c := validConfig()
	c.State.Dir = ""
	assert.Error(t, Validate(c))
}

func TestValidateRejectsNonPositiveConnectionLimits(t *testing.T) {
	c := validConfig()
	c.Connection.MaxPerSession = 0
	assert.Error(t, Validate(c))

	c = validConfig()
	c.Connection.MaxPerMinute = -1
	assert.Error(t, Validate(c))
}

func TestValidateRejectsNonPositiveMaxMemory(t *testing.T) {
	c := validConfig()
	c.Resource.MaxMemoryMB = 0
	assert.Error(t, Validate(c))
}

func TestValidateRejectsUnknownQuality(t *testing.T) {
	c := validConfig()
	c.Capture.DefaultQuality = "extreme"
	assert.Error(t, Validate(c))
}

func TestValidateAcceptsAllKnownQualities(t *testing.T) {
	for _, q := range []string{"low", "medium", "high", "ultra"} {
		c := validConfig()
		c.Capture.DefaultQuality = q
		assert.NoError(t, Validate(c), "quality=%s", q)
	}
}

func TestValidateRejectsNonPositiveBackupRetention(t *testing.T) {
	c := validConfig()
	c.HostDriver.BackupRetentionCount = 0
	assert.Error(t, Validate(c))
}
