package transport

import "net/http"

func (s *Server) handleLogProcesses(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	procs, err := s.driver.ListProcesses(r.Context(), udid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, procs)
}

func (s *Server) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	if err := s.driver.ClearLogs(r.Context(), udid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	id := muxVar(r, "id")
	if err := s.recordings.Start(id, udid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	data, err := s.recordings.Stop(id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.recordings.Status(id))})
}

func (s *Server) handleCleanupRecordings(w http.ResponseWriter, r *http.Request) {
	s.recordings.CleanupAll(s.cfg.Recording.EmergencyRetention)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Summary(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Detailed(r.Context()))
}
