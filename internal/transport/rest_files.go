package transport

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

func (s *Server) handlePushFile(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemoryBytes); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "push-file", "invalid multipart upload", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "push-file", "missing file upload", err))
		return
	}
	defer file.Close()

	devicePath := r.FormValue("device_path")
	bundleID := r.FormValue("bundle_id")

	tmp, err := os.CreateTemp("", "simctrl-push-*")
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindIO, "push-file", "failed to buffer upload", err))
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindIO, "push-file", "failed to buffer upload", err))
		return
	}

	if err := s.driver.PushFile(r.Context(), udid, bundleID, tmp.Name(), devicePath); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": header.Filename})
}

func (s *Server) handlePullFile(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	var body struct {
		DevicePath string `json:"device_path"`
		BundleID   string `json:"bundle_id"`
		Filename   string `json:"filename"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "pull-file", "invalid request body", err))
		return
	}

	tmp, err := os.CreateTemp("", "simctrl-pull-*")
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindIO, "pull-file", "failed to allocate destination", err))
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := s.driver.PullFile(r.Context(), udid, body.BundleID, body.DevicePath, tmp.Name()); err != nil {
		writeError(w, err)
		return
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindIO, "pull-file", "failed to read pulled file", err))
		return
	}

	name := body.Filename
	if name == "" {
		name = filepath.Base(body.DevicePath)
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
