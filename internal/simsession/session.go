// Package simsession owns the lifecycle of simulator sessions: the mapping
// from a caller-facing session id to a booted device UDID, reconciled
// against host state on startup and persisted through internal/store.
package simsession

import (
	"time"
)

// State is a session's lifecycle state.
type State string

const (
	StateCreating State = "creating"
	StateReady    State = "ready"
	StateBusy     State = "busy"
	StateError    State = "error"
	StateClosing  State = "closing"
)

// Session is a simulator handle: the unit every capture, connection, and
// recording operation is scoped to. PointWidth/PointHeight are the
// device-independent coordinates control input is expressed in;
// PixelWidth/PixelHeight are frame-local and derive from Scale (spec §3).
type Session struct {
	ID           string
	UDID         string
	DeviceType   string
	OSVersion    string
	State        State
	PointWidth   int
	PointHeight  int
	PixelWidth   int
	PixelHeight  int
	Scale        int
	CreatedAt    time.Time
	LastAccessed time.Time
}

func (s *Session) touch() {
	s.LastAccessed = time.Now()
}
