package transport

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
)

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	data, err := s.driver.Screenshot(r.Context(), udid, "png")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleOrientation(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	var body struct {
		Orientation string `json:"orientation"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "orientation", "invalid request body", err))
		return
	}
	if err := s.driver.Orientation(r.Context(), udid, body.Orientation); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleOpenURL(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "open-url", "invalid request body", err))
		return
	}
	if err := s.driver.OpenURL(r.Context(), udid, body.URL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "set-location", "invalid request body", err))
		return
	}
	if err := s.driver.SetLocation(r.Context(), udid, body.Latitude, body.Longitude); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleClearLocation(w http.ResponseWriter, r *http.Request) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	if err := s.driver.ClearLocation(r.Context(), udid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLocationPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hostdriver.LocationPresets())
}

func (s *Server) handleAddPhotos(w http.ResponseWriter, r *http.Request) {
	s.handleAddMedia(w, r, s.driver.AddPhoto)
}

func (s *Server) handleAddVideos(w http.ResponseWriter, r *http.Request) {
	s.handleAddMedia(w, r, s.driver.AddVideo)
}

func (s *Server) handleAddMedia(w http.ResponseWriter, r *http.Request, add func(ctx context.Context, udid, path string) error) {
	udid, ok := s.resolveUDID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemoryBytes); err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindProtocol, "add-media", "invalid multipart upload", err))
		return
	}
	files := r.MultipartForm.File["assets"]
	if len(files) == 0 {
		writeError(w, apperrors.New(apperrors.KindProtocol, "add-media", "no assets in upload"))
		return
	}

	count := 0
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			continue
		}
		tmp, err := os.CreateTemp("", "simctrl-media-*-"+fh.Filename)
		if err != nil {
			f.Close()
			continue
		}
		_, copyErr := io.Copy(tmp, f)
		f.Close()
		tmp.Close()
		if copyErr == nil {
			if err := add(r.Context(), udid, tmp.Name()); err == nil {
				count++
			}
		}
		os.Remove(tmp.Name())
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
