package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/logging"
)

// Service is the per-device singleton that produces a stream of JPEG
// frames at a target FPS and quality, with bounded memory, falling back
// through methodOrder as methods disqualify themselves (spec §4.4).
type Service struct {
	udid   string
	driver *hostdriver.Driver
	logger *logging.Logger

	mu      sync.Mutex
	clients map[string]*subscriber
	chain   *methodChain
	cancel  context.CancelFunc
	started bool

	quality   atomic.Value // Quality
	seq       atomic.Uint64
	idleSince atomic.Value // time.Time; zero value means "not idle"
}

// NewService constructs a capture Service for udid. It does not start
// capturing until the first client calls Acquire.
func NewService(udid string, driver *hostdriver.Driver, logger *logging.Logger) *Service {
	s := &Service{
		udid:    udid,
		driver:  driver,
		logger:  logger.WithField("udid", udid),
		clients: map[string]*subscriber{},
		chain:   newMethodChain(),
	}
	s.quality.Store(QualityMedium)
	s.idleSince.Store(time.Time{})
	return s
}

// Acquire registers clientID as a consumer with a ring of queueSize frames
// and starts the capture worker if this is the first client.
func (s *Service) Acquire(clientID string, queueSize int) <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := newSubscriber(queueSize)
	s.clients[clientID] = sub
	s.idleSince.Store(time.Time{})

	if !s.started {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.started = true
		go s.run(ctx)
	}
	return sub.ch
}

// Release removes clientID. When the client set becomes empty the service
// is marked idle starting now; it keeps running until an eviction sweep
// (internal/resource) decides it has been idle long enough to stop it.
func (s *Service) Release(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
	if len(s.clients) == 0 {
		s.idleSince.Store(time.Now())
	}
}

// SetQuality changes the active preset; the worker picks it up between
// frames, never mid-frame.
func (s *Service) SetQuality(q Quality) {
	if Valid(q) {
		s.quality.Store(q)
	}
}

// Quality returns the currently active preset.
func (s *Service) Quality() Quality {
	return s.quality.Load().(Quality)
}

// ClientCount returns the number of currently registered clients.
func (s *Service) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// DroppedCount returns the total number of frames dropped across every
// current subscriber, so memory-pressure and quality decisions can be
// cross-checked against back-pressure actually observed (spec §4.4/§4.9).
func (s *Service) DroppedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, sub := range s.clients {
		total += sub.droppedCount()
	}
	return total
}

// IdleFor returns how long the service has had zero clients, or zero if
// it currently has clients.
func (s *Service) IdleFor() time.Duration {
	since := s.idleSince.Load().(time.Time)
	if since.IsZero() {
		return 0
	}
	return time.Since(since)
}

// Stop halts the capture worker. Safe to call even if never started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	for id := range s.clients {
		delete(s.clients, id)
	}
}

func (s *Service) run(ctx context.Context) {
	s.logger.Info("capture worker starting")
	defer s.logger.Info("capture worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		method, err := s.chain.next()
		if err != nil {
			s.logger.WithError(err).Error("capture worker exiting: no method available")
			return
		}

		preset := PresetFor(s.Quality())
		interval := time.Second / time.Duration(preset.FPS)

		data, err := s.captureFrame(ctx, method)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).WithField("method", string(method)).
				Warn("capture method failed, disqualifying and falling back")
			s.chain.disqualify(method)
			continue
		}

		f := Frame{Data: data, Seq: s.seq.Add(1), Timestamp: time.Now(), Quality: s.Quality()}
		s.publish(f)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (s *Service) publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.clients {
		sub.publish(f)
	}
}

// captureFrame dispatches to the strategy for method. Stream, hardware-
// encode, and software-encode all require an on-device encoder the host
// driver's simctl surface does not expose; they fail fast so the chain
// falls through to the always-available screenshot loop. Only
// MethodScreenshot is backed by a real host call.
func (s *Service) captureFrame(ctx context.Context, method Method) ([]byte, error) {
	switch method {
	case MethodStream, MethodHWEncode, MethodSWEncode:
		return nil, apperrors.New(apperrors.KindHostDriver, "capture-"+string(method),
			fmt.Sprintf("%s capture is not available on this host driver", method))
	case MethodScreenshot:
		return s.driver.Screenshot(ctx, s.udid, "jpeg")
	default:
		return nil, apperrors.New(apperrors.KindInternal, "capture", "unknown capture method")
	}
}
