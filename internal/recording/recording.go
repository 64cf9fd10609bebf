// Package recording implements per-session MP4 capture: start/stop, status,
// and emergency persistence on abnormal process shutdown (spec §4.8).
package recording

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/logging"
)

// State is a recording's lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateRecording      State = "recording"
	StateStopping       State = "stopping"
	StateEmergencySaved State = "emergency-saved"
)

type activeRecording struct {
	udid      string
	video     *hostdriver.VideoRecording
	scratch   string
	startedAt time.Time
	state     State
}

// Manager tracks one active (or emergency-saved) recording per session.
type Manager struct {
	driver    *hostdriver.Driver
	logger    *logging.Logger
	stateDir  string
	stopGrace time.Duration

	mu      sync.Mutex
	active  map[string]*activeRecording
}

// New constructs a Manager. stateDir is the root state directory; scratch
// directories live under stateDir/recordings/<session>, and the emergency
// directory is stateDir/recordings/_emergency.
func New(driver *hostdriver.Driver, logger *logging.Logger, stateDir string, stopGrace time.Duration) *Manager {
	return &Manager{
		driver:    driver,
		logger:    logger,
		stateDir:  stateDir,
		stopGrace: stopGrace,
		active:    map[string]*activeRecording{},
	}
}

func (m *Manager) scratchDir(sessionID string) string {
	return filepath.Join(m.stateDir, "recordings", sessionID)
}

func (m *Manager) emergencyDir() string {
	return filepath.Join(m.stateDir, "recordings", "_emergency")
}

// Start begins recording udid for sessionID into a scratch temp file.
func (m *Manager) Start(sessionID, udid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[sessionID]; ok {
		return apperrors.New(apperrors.KindBadState, "recording-start", "already-recording")
	}

	scratch := m.scratchDir(sessionID)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "recording-start", "failed to create scratch directory", err)
	}
	outputPath := filepath.Join(scratch, "capture.mp4")

	rec, err := m.driver.StartVideoRecording(context.Background(), udid, outputPath)
	if err != nil {
		os.RemoveAll(scratch)
		return err
	}

	m.active[sessionID] = &activeRecording{
		udid: udid, video: rec, scratch: scratch,
		startedAt: time.Now(), state: StateRecording,
	}
	return nil
}

// Stop gracefully finalizes the recording, reads the resulting file, and
// removes the scratch directory. If no recording is active it returns a
// KindBadState("not-recording") error.
func (m *Manager) Stop(sessionID string) ([]byte, error) {
	m.mu.Lock()
	rec, ok := m.active[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, apperrors.New(apperrors.KindBadState, "recording-stop", "not-recording")
	}
	rec.state = StateStopping
	m.mu.Unlock()

	if err := rec.video.Stop(m.stopGrace); err != nil {
		m.logger.WithError(err).WithField("session_id", sessionID).
			Warn("recording finalize reported an error, returning whatever was written")
	}

	data, err := os.ReadFile(rec.video.Path())
	if err != nil {
		m.mu.Lock()
		delete(m.active, sessionID)
		m.mu.Unlock()
		os.RemoveAll(rec.scratch)
		return nil, apperrors.Wrap(apperrors.KindIO, "recording-stop", "failed to read finalized recording", err)
	}

	m.mu.Lock()
	delete(m.active, sessionID)
	m.mu.Unlock()
	os.RemoveAll(rec.scratch)
	return data, nil
}

// Status reports a session's current recording state.
func (m *Manager) Status(sessionID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.active[sessionID]
	if !ok {
		return StateIdle
	}
	return rec.state
}

// EmergencySaveAll stops every active recording with the configured grace
// and moves each resulting file — even if truncated — into the durable
// emergency directory, named by session and timestamp. Called from the
// process's SIGTERM/SIGINT handler.
func (m *Manager) EmergencySaveAll() {
	m.mu.Lock()
	sessions := make([]string, 0, len(m.active))
	for id := range m.active {
		sessions = append(sessions, id)
	}
	m.mu.Unlock()

	if err := os.MkdirAll(m.emergencyDir(), 0755); err != nil {
		m.logger.WithError(err).Error("failed to create emergency recording directory")
		return
	}

	for _, sessionID := range sessions {
		m.mu.Lock()
		rec, ok := m.active[sessionID]
		m.mu.Unlock()
		if !ok {
			continue
		}

		if err := rec.video.Stop(m.stopGrace); err != nil {
			m.logger.WithError(err).WithField("session_id", sessionID).
				Warn("emergency stop reported an error, saving file as-is")
		}

		dest := filepath.Join(m.emergencyDir(),
			sessionID+"-"+time.Now().UTC().Format("20060102T150405Z")+".mp4")
		if err := os.Rename(rec.video.Path(), dest); err != nil {
			m.logger.WithError(err).WithField("session_id", sessionID).
				Error("failed to move recording into emergency directory")
			continue
		}

		m.mu.Lock()
		rec.state = StateEmergencySaved
		delete(m.active, sessionID)
		m.mu.Unlock()
		m.logger.WithField("session_id", sessionID).WithField("path", dest).
			Warn("recording emergency-saved on shutdown")
	}
}

// CleanupAll removes emergency-saved files older than maxAge.
func (m *Manager) CleanupAll(maxAge time.Duration) {
	entries, err := os.ReadDir(m.emergencyDir())
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(m.emergencyDir(), e.Name())
			if err := os.Remove(path); err != nil {
				m.logger.WithError(err).WithField("path", path).Warn("failed to remove aged emergency recording")
			}
		}
	}
}
