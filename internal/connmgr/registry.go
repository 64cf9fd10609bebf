package connmgr

import (
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/logging"
)

// Kind names a transport endpoint kind (spec §4.7). Per-kind counts are
// tracked for diagnostics only; the enforced cap is the session total
// (Open Question (a), resolved in SPEC_FULL.md §12).
type Kind string

const (
	KindControl  Kind = "control"
	KindVideo    Kind = "video"
	KindUltra    Kind = "ultra-low-latency"
	KindWebRTC   Kind = "webrtc"
	KindScreen   Kind = "screenshot"
	KindLogs     Kind = "logs"
)

// marker is the heap object a Handle's weak reference points at. It carries
// no data of its own; its only purpose is to be something the registry can
// observe the collection of. The unused pointer field gives it a non-zero
// size and keeps it out of the tiny allocator, so every NewHandle gets its
// own object that the collector can free; zero-size and small pointer-free
// allocations share memory and their weak pointers never clear.
type marker struct{ _ *byte }

// Handle is an opaque per-connection marker. A transport endpoint allocates
// one with NewHandle and holds onto it for the connection's lifetime. The
// registry indexes entries by id, not by the handle's pointer, so the
// registry's own bookkeeping never keeps the handle reachable: it stores
// only a weak.Pointer to marker, so a leaked connection that forgets to
// call Unregister still becomes collectible once the caller drops its
// Handle, and is swept by the reaper rather than pinned forever.
type Handle struct {
	id     uint64
	marker *marker
}

var handleSeq atomic.Uint64

// NewHandle allocates a fresh connection handle.
func NewHandle() Handle {
	return Handle{id: handleSeq.Add(1), marker: new(marker)}
}

type entry struct {
	sessionID  string
	kind       Kind
	sourceAddr string
	weakHandle weak.Pointer[marker]
	registered time.Time
}

// SessionValidator reports whether sessionID currently refers to a live
// session. Registry consults it on every TryRegister.
type SessionValidator func(sessionID string) bool

// Registry authorizes and tracks every transport connection for its full
// lifetime (spec §4.6).
type Registry struct {
	logger        *logging.Logger
	validator     SessionValidator
	limiter       *slidingWindowLimiter
	maxPerSession int

	mu        sync.Mutex
	entries   map[uint64]*entry
	bySession map[string]int
}

// New constructs a Registry. ratePerMinute and window configure the
// sliding-window limiter keyed by (session, source-address);
// maxPerSession caps total live connections per session.
func New(logger *logging.Logger, validator SessionValidator, ratePerMinute int, window time.Duration, maxPerSession int) *Registry {
	return &Registry{
		logger:        logger,
		validator:     validator,
		limiter:       newSlidingWindowLimiter(window, ratePerMinute),
		maxPerSession: maxPerSession,
		entries:       map[uint64]*entry{},
		bySession:     map[string]int{},
	}
}

// TryRegister authorizes and tracks a new connection, or returns a
// distinct apperrors.Kind describing why it was refused.
func (r *Registry) TryRegister(sessionID string, kind Kind, sourceAddr string, h Handle) error {
	if r.validator != nil && !r.validator(sessionID) {
		return apperrors.New(apperrors.KindSessionInvalid, "try-register", "session does not exist")
	}

	rlKey := sessionID + "|" + sourceAddr
	if !r.limiter.allow(rlKey) {
		return apperrors.New(apperrors.KindRateLimited, "try-register", "connection rate limit exceeded")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bySession[sessionID] >= r.maxPerSession {
		return apperrors.New(apperrors.KindCapExceeded, "try-register", "per-session connection cap exceeded")
	}

	r.entries[h.id] = &entry{
		sessionID:  sessionID,
		kind:       kind,
		sourceAddr: sourceAddr,
		weakHandle: weak.Make(h.marker),
		registered: time.Now(),
	}
	r.bySession[sessionID]++
	return nil
}

// Unregister removes h's entry, if present.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h.id]
	if !ok {
		return
	}
	delete(r.entries, h.id)
	r.bySession[e.sessionID]--
	if r.bySession[e.sessionID] <= 0 {
		delete(r.bySession, e.sessionID)
	}
}

// ScopedRegister registers a connection and returns a release func that
// must be deferred immediately, guaranteeing unregistration on every exit
// path including panics.
func (r *Registry) ScopedRegister(sessionID string, kind Kind, sourceAddr string) (h Handle, release func(), err error) {
	h = NewHandle()
	if err := r.TryRegister(sessionID, kind, sourceAddr, h); err != nil {
		return Handle{}, func() {}, err
	}
	return h, func() { r.Unregister(h) }, nil
}

// Stats is the live connection-registry snapshot for the health surface.
type Stats struct {
	TotalConnections int           `json:"total_connections"`
	BySession        map[string]int `json:"by_session"`
	ByKind           map[Kind]int   `json:"by_kind"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	bySession := make(map[string]int, len(r.bySession))
	for k, v := range r.bySession {
		bySession[k] = v
	}
	byKind := map[Kind]int{}
	for _, e := range r.entries {
		byKind[e.kind]++
	}
	return Stats{TotalConnections: len(r.entries), BySession: bySession, ByKind: byKind}
}

// Reap walks the registry and drops any entry whose weak handle can no
// longer be resolved, i.e. a connection that leaked without calling
// Unregister. Intended to run on a periodic ticker.
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.entries {
		if e.weakHandle.Value() == nil {
			delete(r.entries, id)
			r.bySession[e.sessionID]--
			if r.bySession[e.sessionID] <= 0 {
				delete(r.bySession, e.sessionID)
			}
			removed++
		}
	}
	if removed > 0 {
		r.logger.WithField("count", removed).Warn("reaped leaked connection handles")
	}
	return removed
}

// StartReaper runs Reap on interval until stop is closed.
func (r *Registry) StartReaper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.Reap()
			}
		}
	}()
}
