package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/connmgr"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/simsession"
)

// openSession implements the common WebSocket endpoint prologue (spec
// §4.7): verify the session exists, upgrade the HTTP connection, and
// reserve a connection slot in the registry. The returned release func
// must be deferred immediately so the connection is always unregistered,
// including on panic.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request, sessionID string, kind connmgr.Kind) (udid string, sess *simsession.Session, conn *websocket.Conn, release func(), ok bool) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return "", nil, nil, nil, false
	}

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to upgrade websocket connection")
		return "", nil, nil, nil, false
	}

	_, rel, regErr := s.conns.ScopedRegister(sessionID, kind, r.RemoteAddr)
	if regErr != nil {
		code := websocket.CloseNormalClosure
		if apperrors.KindOf(regErr) == apperrors.KindSessionInvalid {
			code = apperrors.CloseCodeSessionInvalid
		}
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, regErr.Error()), time.Now().Add(time.Second))
		c.Close()
		return "", nil, nil, nil, false
	}

	return sess.UDID, sess, c, rel, true
}

func toHardwareButton(b string) hostdriver.HardwareButton {
	return hostdriver.HardwareButton(b)
}
