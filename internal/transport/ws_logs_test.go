package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radiocontrol/simctrl/internal/hostdriver"
)

func TestLogFilterMatchesEverythingWhenUnset(t *testing.T) {
	f := &logFilter{}
	assert.True(t, f.matches(hostdriver.LogEntry{Level: "error", Process: "SpringBoard"}))
}

func TestLogFilterMatchesLevelCaseInsensitively(t *testing.T) {
	f := &logFilter{}
	f.set("ERROR", "")
	assert.True(t, f.matches(hostdriver.LogEntry{Level: "error"}))
	assert.False(t, f.matches(hostdriver.LogEntry{Level: "debug"}))
}

func TestLogFilterMatchesProcessSubstringCaseInsensitively(t *testing.T) {
	f := &logFilter{}
	f.set("", "springboard")
	assert.True(t, f.matches(hostdriver.LogEntry{Process: "com.apple.SpringBoard"}))
	assert.False(t, f.matches(hostdriver.LogEntry{Process: "com.apple.backboardd"}))
}

func TestLogFilterCombinesLevelAndProcess(t *testing.T) {
	f := &logFilter{}
	f.set("warn", "backboardd")
	assert.True(t, f.matches(hostdriver.LogEntry{Level: "warn", Process: "backboardd"}))
	assert.False(t, f.matches(hostdriver.LogEntry{Level: "error", Process: "backboardd"}))
	assert.False(t, f.matches(hostdriver.LogEntry{Level: "warn", Process: "SpringBoard"}))
}

func TestLogFilterSetOverwritesPreviousFilter(t *testing.T) {
	f := &logFilter{}
	f.set("error", "foo")
	f.set("", "")
	assert.True(t, f.matches(hostdriver.LogEntry{Level: "debug", Process: "anything"}))
}
