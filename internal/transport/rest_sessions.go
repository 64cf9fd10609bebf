package transport

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

func (s *Server) handleConfigurations(w http.ResponseWriter, r *http.Request) {
	deviceTypes, osVersions, err := s.driver.ListConfigurations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device_types": deviceTypes,
		"os_versions":  osVersions,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceType string `json:"device_type"`
		OSVersion  string `json:"os_version"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "create-session", "invalid request body", err))
		return
	}
	sess, err := s.sessions.Create(r.Context(), body.DeviceType, body.OSVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List(r.Context()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.resources.ReleaseVideo(id, id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List(r.Context())
	for _, sess := range sessions {
		_ = s.sessions.Delete(r.Context(), sess.ID)
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(sessions)})
}

func (s *Server) handleRecoverOrphaned(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Reconcile(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.List(r.Context()))
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.sessions.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, remaining)
}

// resolveUDID looks up the session named by the {id} path variable and
// returns its device UDID, or writes an error and returns ok=false.
func (s *Server) resolveUDID(w http.ResponseWriter, r *http.Request) (udid string, ok bool) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return sess.UDID, true
}
