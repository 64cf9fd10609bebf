package transport

import (
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

const maxUploadMemoryBytes = 32 << 20

func (s *Server) handleInstallApp(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	file, _, err := readMultipartFile(r, "archive", maxUploadMemoryBytes)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "install-app", "missing archive upload", err))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "simctrl-upload-*.zip")
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindIO, "install-app", "failed to buffer upload", err))
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindIO, "install-app", "failed to buffer upload", err))
		return
	}

	bundleID, err := s.driver.InstallApp(r.Context(), udid, tmp.Name())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bundle_id": bundleID})
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	apps, err := s.driver.ListInstalledApps(r.Context(), udid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	pid, err := s.driver.LaunchApp(r.Context(), udid, mux.Vars(r)["bundle"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pid": pid})
}

func (s *Server) handleTerminateApp(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	if err := s.driver.TerminateApp(r.Context(), udid, mux.Vars(r)["bundle"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUninstallApp(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	if err := s.driver.UninstallApp(r.Context(), udid, mux.Vars(r)["bundle"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
