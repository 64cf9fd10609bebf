package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiocontrol/simctrl/internal/logging"
)

func newTestStore(t *testing.T, backupCount int) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "sessions.json"), backupCount, logging.NewLogger("test"))
	require.NoError(t, err)
	return s
}

func sampleRecords() map[string]*Record {
	return map[string]*Record{
		"s1": {
			UDID:       "udid-1",
			SessionID:  "s1",
			DeviceType: "iPhone 15",
			OSVersion:  "17.0",
			State:      "ready",
			CreatedAt:  time.Now().UTC(),
		},
	}
}

func TestLoadOnFirstRunReturnsEmptySet(t *testing.T) {
	s := newTestStore(t, 3)
	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t, 3)
	want := sampleRecords()

	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, got, "s1")
	assert.Equal(t, want["s1"].UDID, got["s1"].UDID)
}

func TestSaveRotatesNumberedBackups(t *testing.T) {
	s := newTestStore(t, 2)

	require.NoError(t, s.Save(sampleRecords()))
	_, err := os.Stat(s.backupPath(1))
	assert.True(t, os.IsNotExist(err), "no backup should exist before a second save")

	second := sampleRecords()
	second["s2"] = &Record{UDID: "udid-2", SessionID: "s2"}
	require.NoError(t, s.Save(second))

	_, err = os.Stat(s.backupPath(1))
	assert.NoError(t, err, "saving over an existing primary should produce backup.1")
}

func TestLoadFallsBackToNewestValidBackupOnCorruption(t *testing.T) {
	s := newTestStore(t, 2)

	require.NoError(t, s.Save(sampleRecords()))
	// A second save rotates the good file into backup.1.
	second := sampleRecords()
	second["s2"] = &Record{UDID: "udid-2", SessionID: "s2"}
	require.NoError(t, s.Save(second))

	// Corrupt the primary in place.
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0644))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, got, "s1")
}

func TestLoadReturnsEmptySetWhenEveryBackupIsCorrupted(t *testing.T) {
	s := newTestStore(t, 1)

	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(s.backupPath(1), []byte("{also not json"), 0644))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}
