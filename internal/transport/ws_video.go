package transport

import (
	"encoding/base64"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/radiocontrol/simctrl/internal/connmgr"
)

// handleVideoWS returns the frame-push handler shared by the standard
// (spec §4.7.2) and ultra-low-latency (spec §4.7.3) endpoints; they differ
// in queue size, frame-retrieval timeout, connection kind, and the ultra
// endpoint's integer-rounded fps.
func (s *Server) handleVideoWS(queueSize int, frameTimeout time.Duration) http.HandlerFunc {
	kind := connmgr.KindVideo
	if queueSize == queueSizeUltra {
		kind = connmgr.KindUltra
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := muxVar(r, "session")
		udid, _, conn, release, ok := s.openSession(w, r, sessionID, kind)
		if !ok {
			return
		}
		defer release()
		defer conn.Close()

		clientID := uuid.New().String()
		_, frames := s.resources.GetVideo(udid, clientID, queueSize)
		defer s.resources.ReleaseVideo(udid, clientID)
		ultra := queueSize == queueSizeUltra

		dim, _ := s.sessionDimensions(sessionID)

		windowStart := time.Now()
		var sentInWindow uint64
		timer := time.NewTimer(frameTimeout)
		defer timer.Stop()

		for {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(frameTimeout)

			select {
			case <-timer.C:
				continue
			case f, chOpen := <-frames:
				if !chOpen {
					return
				}
				if elapsed := time.Since(windowStart); elapsed > time.Second {
					windowStart = time.Now()
					sentInWindow = 0
				}
				sentInWindow++
				fps := float64(sentInWindow) / time.Since(windowStart).Seconds()
				if ultra {
					fps = math.Round(fps)
				}

				msg := videoFrameMessage{
					Type:        "video_frame",
					Data:        base64.StdEncoding.EncodeToString(f.Data),
					PixelWidth:  dim.PixelWidth,
					PixelHeight: dim.PixelHeight,
					PointWidth:  dim.PointWidth,
					PointHeight: dim.PointHeight,
					Frame:       f.Seq,
					Timestamp:   f.Timestamp.UnixMilli(),
					FPS:         fps,
					Format:      "jpeg",
				}
				if err := conn.WriteJSON(msg); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						s.logger.WithError(err).WithField("session_id", sessionID).Warn("video socket write error")
					}
					return
				}
			}
		}
	}
}

// dims is the point/pixel geometry needed to populate outbound frame
// metadata; it is read once per connection since a session's geometry
// never changes after creation.
type dims struct {
	PointWidth, PointHeight, PixelWidth, PixelHeight int
}

func (s *Server) sessionDimensions(sessionID string) (dims, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return dims{}, err
	}
	return dims{
		PointWidth:  sess.PointWidth,
		PointHeight: sess.PointHeight,
		PixelWidth:  sess.PixelWidth,
		PixelHeight: sess.PixelHeight,
	}, nil
}
