package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/connmgr"
	"github.com/radiocontrol/simctrl/internal/webrtcstream"
)

// handleWebRTCWS implements the signaling protocol of spec §4.7.4:
// start-stream acquires the per-UDID WebRTCService and begins feeding it
// frames from the shared capture pipeline; offer/answer/ice-candidate
// exchange the SDP; quality-change/fps-change record the requested preset
// and frame rate on the WebRTC service, which does not pass them on to the
// capture feed.
func (s *Server) handleWebRTCWS(w http.ResponseWriter, r *http.Request) {
	sessionID := muxVar(r, "session")
	udid, _, conn, release, ok := s.openSession(w, r, sessionID, connmgr.KindWebRTC)
	if !ok {
		return
	}
	defer release()
	defer conn.Close()

	clientID := uuid.New().String()
	var streaming bool
	var stopFeed func()
	defer func() {
		if stopFeed != nil {
			stopFeed()
		}
		if streaming {
			s.resources.ReleaseWebRTC(udid, clientID)
		}
	}()

	for {
		var msg webrtcMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).WithField("session_id", sessionID).Warn("webrtc socket read error")
			}
			return
		}

		switch msg.Type {
		case "start-stream":
			svc, err := s.resources.GetWebRTC(udid, clientID)
			if err != nil {
				s.writeWebRTCError(conn, err)
				continue
			}
			streaming = true
			if msg.Quality != "" {
				svc.SetQuality(msg.Quality)
			}
			if msg.FPS > 0 {
				svc.SetFPS(msg.FPS)
			}
			stopFeed = s.feedWebRTCTrack(udid, clientID, svc)
			_ = conn.WriteJSON(webrtcMessage{Type: "stream-ready"})

		case "offer":
			svc, err := s.resources.GetWebRTC(udid, clientID)
			if err != nil {
				s.writeWebRTCError(conn, err)
				continue
			}
			answer, err := svc.HandleOffer(clientID, msg.SDP)
			if err != nil {
				s.writeWebRTCError(conn, err)
				continue
			}
			_ = conn.WriteJSON(webrtcMessage{Type: "answer", SDP: answer})

		case "answer":
			// The server only ever generates answers for client offers; an
			// inbound answer here would be out of protocol for this
			// implementation's offer/answer direction and is ignored.

		case "ice-candidate":
			svc, err := s.resources.GetWebRTC(udid, clientID)
			if err != nil {
				s.writeWebRTCError(conn, err)
				continue
			}
			cand, err := decodeICECandidate(msg.Candidate)
			if err != nil {
				s.writeWebRTCError(conn, apperrors.Wrap(apperrors.KindProtocol, "webrtc-ice", "invalid ICE candidate payload", err))
				continue
			}
			if err := svc.AddICECandidate(clientID, cand); err != nil {
				s.writeWebRTCError(conn, err)
			}

		case "quality-change":
			if svc, err := s.resources.GetWebRTC(udid, clientID); err == nil {
				svc.SetQuality(msg.Quality)
			}

		case "fps-change":
			if svc, err := s.resources.GetWebRTC(udid, clientID); err == nil {
				svc.SetFPS(msg.FPS)
			}

		default:
			s.writeWebRTCError(conn, apperrors.New(apperrors.KindProtocol, "webrtc", "unrecognized message type: "+msg.Type))
		}
	}
}

func (s *Server) writeWebRTCError(conn *websocket.Conn, err error) {
	_ = conn.WriteJSON(webrtcMessage{Type: "error", Message: err.Error()})
}

func decodeICECandidate(raw interface{}) (webrtc.ICECandidateInit, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(b, &cand); err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	return cand, nil
}

// feedWebRTCTrack subscribes clientID to the device's capture pipeline and
// forwards every JPEG frame into the WebRTC track's sample writer. The
// capture pipeline produces JPEG, not H264; this stands in for the
// transcode step a production deployment would insert between them, same
// as every other consumer of the capture fan-out. It returns a stop func
// that unsubscribes the feed goroutine.
func (s *Server) feedWebRTCTrack(udid, clientID string, svc *webrtcstream.Service) func() {
	videoClientID := "webrtc-" + clientID
	_, frames := s.resources.GetVideo(udid, videoClientID, queueSizeWebRTC)
	done := make(chan struct{})

	go func() {
		var last time.Time
		for {
			select {
			case <-done:
				return
			case f, chOpen := <-frames:
				if !chOpen {
					return
				}
				dur := defaultFrameDuration
				if !last.IsZero() {
					dur = f.Timestamp.Sub(last)
				}
				last = f.Timestamp
				if err := svc.PushFrame(f.Data, dur); err != nil {
					s.logger.WithError(err).WithField("udid", udid).Warn("failed to write webrtc sample")
				}
			}
		}
	}()

	return func() {
		close(done)
		s.resources.ReleaseVideo(udid, videoClientID)
	}
}

const (
	queueSizeWebRTC      = 2
	defaultFrameDuration = 16 * time.Millisecond
)
