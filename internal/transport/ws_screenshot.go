package transport

import (
	"encoding/base64"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/connmgr"
)

// handleScreenshotWS implements the pull-model screenshot endpoint of
// spec §4.7.5: an inbound "refresh" (or an implicit refresh after a tap)
// triggers one driver screenshot, sent back as a single response frame.
func (s *Server) handleScreenshotWS(w http.ResponseWriter, r *http.Request) {
	sessionID := muxVar(r, "session")
	udid, _, conn, release, ok := s.openSession(w, r, sessionID, connmgr.KindScreen)
	if !ok {
		return
	}
	defer release()
	defer conn.Close()

	for {
		var raw map[string]interface{}
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).WithField("session_id", sessionID).Warn("screenshot socket read error")
			}
			return
		}

		t, _ := raw["t"].(string)
		switch t {
		case "refresh":
			s.sendScreenshot(r, conn, sessionID, udid)
		case "tap":
			x, _ := raw["x"].(float64)
			y, _ := raw["y"].(float64)
			if err := s.driver.Tap(r.Context(), udid, x, y); err != nil {
				_ = conn.WriteJSON(controlError{Error: true, Reason: err.Error()})
				continue
			}
			s.sendScreenshot(r, conn, sessionID, udid)
		default:
			_ = conn.WriteJSON(controlError{Error: true, Reason: "unrecognized message type: " + t})
		}
	}
}

func (s *Server) sendScreenshot(r *http.Request, conn *websocket.Conn, sessionID, udid string) {
	data, err := s.driver.Screenshot(r.Context(), udid, "jpeg")
	if err != nil {
		_ = conn.WriteJSON(controlError{Error: true, Reason: err.Error()})
		return
	}
	dim, dimErr := s.sessionDimensions(sessionID)
	if dimErr != nil {
		_ = conn.WriteJSON(controlError{Error: true, Reason: apperrors.New(apperrors.KindNotFound, "screenshot", "session not found").Error()})
		return
	}
	_ = conn.WriteJSON(screenshotResponse{
		Type:   "screenshot",
		Data:   base64.StdEncoding.EncodeToString(data),
		Width:  dim.PixelWidth,
		Height: dim.PixelHeight,
	})
}
