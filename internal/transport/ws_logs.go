package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/radiocontrol/simctrl/internal/connmgr"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
)

// logFilter is the per-connection predicate applied server-side to the
// lazy, infinite log stream (spec §4.7.6).
type logFilter struct {
	mu      sync.RWMutex
	level   string
	process string
}

func (f *logFilter) set(level, process string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level, f.process = level, process
}

func (f *logFilter) matches(e hostdriver.LogEntry) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.level != "" && !strings.EqualFold(f.level, e.Level) {
		return false
	}
	if f.process != "" && !strings.Contains(strings.ToLower(e.Process), strings.ToLower(f.process)) {
		return false
	}
	return true
}

// handleLogsWS streams the device's unified log as NDJSON-decoded entries,
// filterable mid-stream via an inbound {type:"filter", level?, filter?}
// message (spec §4.7.6). Clearing logs is out-of-band via REST.
func (s *Server) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	sessionID := muxVar(r, "session")
	udid, _, conn, release, ok := s.openSession(w, r, sessionID, connmgr.KindLogs)
	if !ok {
		return
	}
	defer release()
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := s.driver.StreamLogs(ctx, udid, "")
	if err != nil {
		_ = conn.WriteJSON(controlError{Error: true, Reason: err.Error()})
		return
	}
	defer stream.Stop()

	filter := &logFilter{}

	readErrs := make(chan error, 1)
	go func() {
		for {
			var msg struct {
				Type    string `json:"type"`
				Level   string `json:"level"`
				Filter  string `json:"filter"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				readErrs <- err
				return
			}
			if msg.Type == "filter" {
				filter.set(msg.Level, msg.Filter)
			}
		}
	}()

	for {
		select {
		case err := <-readErrs:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).WithField("session_id", sessionID).Warn("logs socket read error")
			}
			return
		case entry, chOpen := <-stream.Entries():
			if !chOpen {
				return
			}
			if !filter.matches(entry) {
				continue
			}
			msg := logLineMessage{
				Timestamp: entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
				Process:   entry.Process,
				PID:       entry.PID,
				Level:     entry.Level,
				Message:   entry.Message,
			}
			if err := conn.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.WithError(err).WithField("session_id", sessionID).Warn("logs socket write error")
				}
				return
			}
		}
	}
}
