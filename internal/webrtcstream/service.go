// Package webrtcstream implements the per-device WebRTC signaling and
// media-track service behind the `/ws/<session>/webrtc` endpoint (spec
// §4.7.4).
package webrtcstream

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/logging"
)

// Service is the per-UDID WebRTC singleton. It owns one video track fed
// by whatever frame source is attached via PushFrame, and one
// PeerConnection per client.
type Service struct {
	udid   string
	logger *logging.Logger

	mu      sync.Mutex
	clients map[string]*peer
	track   *webrtc.TrackLocalStaticSample

	quality string
	fps     int
}

type peer struct {
	pc        *webrtc.PeerConnection
	sender    *webrtc.RTPSender
	connected bool
}

// NewService constructs a WebRTC Service for udid with a fresh video
// track that every client's PeerConnection shares as a sender source.
func NewService(udid string, logger *logging.Logger) (*Service, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "simctrl-"+udid,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "webrtc-new-track", "failed to create local video track", err)
	}
	return &Service{
		udid:    udid,
		logger:  logger.WithField("udid", udid),
		clients: map[string]*peer{},
		track:   track,
		quality: "medium",
		fps:     60,
	}, nil
}

// AddClient registers clientID without yet creating a PeerConnection;
// HandleOffer does that once the client's SDP offer arrives.
func (s *Service) AddClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		s.clients[clientID] = &peer{}
	}
}

// RemoveClient tears down and forgets clientID's PeerConnection.
func (s *Service) RemoveClient(clientID string) {
	s.mu.Lock()
	p, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()
	if ok && p.pc != nil {
		_ = p.pc.Close()
	}
}

// ClientCount reports how many clients are attached.
func (s *Service) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// HandleOffer creates clientID's PeerConnection (if needed), sets the
// remote description from offerSDP, attaches the shared video track, and
// returns the local SDP answer.
func (s *Service) HandleOffer(clientID, offerSDP string) (string, error) {
	s.mu.Lock()
	p, ok := s.clients[clientID]
	if !ok {
		p = &peer{}
		s.clients[clientID] = p
	}
	s.mu.Unlock()

	if p.pc == nil {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		})
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindInternal, "webrtc-new-pc", "failed to create peer connection", err)
		}
		sender, err := pc.AddTrack(s.track)
		if err != nil {
			pc.Close()
			return "", apperrors.Wrap(apperrors.KindInternal, "webrtc-add-track", "failed to attach video track", err)
		}
		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			s.mu.Lock()
			p.connected = state == webrtc.PeerConnectionStateConnected
			s.mu.Unlock()
		})
		p.pc = pc
		p.sender = sender
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", apperrors.Wrap(apperrors.KindProtocol, "webrtc-set-remote", "invalid SDP offer", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "webrtc-create-answer", "failed to create SDP answer", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "webrtc-set-local", "failed to set local description", err)
	}
	return answer.SDP, nil
}

// AddICECandidate applies a trickled ICE candidate from clientID.
func (s *Service) AddICECandidate(clientID string, candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	p, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok || p.pc == nil {
		return apperrors.New(apperrors.KindBadState, "webrtc-ice", "no active peer connection for client")
	}
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return apperrors.Wrap(apperrors.KindProtocol, "webrtc-ice", "invalid ICE candidate", err)
	}
	return nil
}

// SetQuality records the requested preset name. The value is only stored:
// it is not forwarded to the capture pipeline that produces the frames.
func (s *Service) SetQuality(quality string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = quality
}

// SetFPS records the requested target frame rate. Like SetQuality, the
// value is only stored and does not change the frame feed.
func (s *Service) SetFPS(fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = fps
}

// PushFrame writes one already-H264-encoded sample of the given duration
// to the shared track, fanning out to every connected client's RTP sender
// transparently (pion tracks are inherently multi-subscriber). Transcoding
// the capture pipeline's JPEG frames to H264 is the caller's concern.
func (s *Service) PushFrame(data []byte, duration time.Duration) error {
	return s.track.WriteSample(media.Sample{Data: data, Duration: duration})
}

// Close tears down every client's PeerConnection.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.clients {
		if p.pc != nil {
			_ = p.pc.Close()
		}
		delete(s.clients, id)
	}
}
