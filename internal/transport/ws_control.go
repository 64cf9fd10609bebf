package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/connmgr"
)

const controlBusyTimeout = 2 * time.Second

func (s *Server) handleControlWS(w http.ResponseWriter, r *http.Request) {
	sessionID := muxVar(r, "session")
	udid, sess, conn, release, ok := s.openSession(w, r, sessionID, connmgr.KindControl)
	if !ok {
		return
	}
	defer release()
	defer conn.Close()
	_ = sess

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).WithField("session_id", sessionID).Warn("control socket read error")
			}
			return
		}

		if err := s.dispatchControl(r, udid, msg); err != nil {
			_ = conn.WriteJSON(controlError{Error: true, Reason: err.Error()})
			continue
		}
	}
}

func (s *Server) dispatchControl(r *http.Request, udid string, msg controlMessage) error {
	release, ok := s.deviceLock.Acquire(udid, controlBusyTimeout)
	if !ok {
		return apperrors.New(apperrors.KindBusy, "control", "device busy")
	}
	defer release()

	ctx := r.Context()
	switch msg.T {
	case "tap":
		return s.driver.Tap(ctx, udid, msg.X, msg.Y)
	case "swipe":
		return s.driver.Swipe(ctx, udid, msg.StartX, msg.StartY, msg.EndX, msg.EndY,
			time.Duration(msg.Duration*float64(time.Second)))
	case "button":
		return s.driver.Button(ctx, udid, toHardwareButton(msg.Button))
	case "key":
		return s.driver.Key(ctx, udid, msg.Key, time.Duration(msg.Duration*float64(time.Second)))
	case "text":
		return s.driver.Text(ctx, udid, msg.Text)
	default:
		return apperrors.New(apperrors.KindProtocol, "control", "unrecognized message type: "+msg.T)
	}
}
