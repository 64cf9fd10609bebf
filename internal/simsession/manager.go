package simsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/logging"
	"github.com/radiocontrol/simctrl/internal/store"
)

// Manager owns the authoritative in-memory session table. All mutation
// goes through a single write lock; reads take a snapshot under a brief
// read lock and then proceed lock-free, so a slow caller holding a Session
// value never blocks session creation or deletion elsewhere.
type Manager struct {
	driver *hostdriver.Driver
	store  *store.Store
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs a Manager. Call Reconcile once at startup before
// serving any requests.
func NewManager(driver *hostdriver.Driver, st *store.Store, logger *logging.Logger) *Manager {
	return &Manager{
		driver:   driver,
		store:    st,
		sessions: map[string]*Session{},
		logger:   logger,
	}
}

// Reconcile loads persisted session records, validates each against live
// host state in parallel, and recovers orphaned devices (booted simulators
// with no matching record) into new sessions. It must run to completion
// before the manager is considered ready.
func (m *Manager) Reconcile(ctx context.Context) error {
	records, err := m.store.Load()
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "reconcile", "failed to load session store", err)
	}

	sessions := make([]*Session, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, &Session{
			ID: r.SessionID, UDID: r.UDID, DeviceType: r.DeviceType,
			OSVersion: r.OSVersion, State: State(r.State),
			PointWidth: r.PointWidth, PointHeight: r.PointHeight,
			PixelWidth: r.PixelWidth, PixelHeight: r.PixelHeight, Scale: r.Scale,
			CreatedAt: r.CreatedAt, LastAccessed: r.LastAccessed,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	valid := map[string]*Session{}
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			ok := m.validate(gctx, s)
			if ok {
				mu.Lock()
				valid[s.ID] = s
				mu.Unlock()
			} else {
				m.logger.WithField("session_id", s.ID).WithField("udid", s.UDID).
					Warn("dropping session record: device no longer resolvable on host")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "reconcile", "validation fan-out failed", err)
	}

	orphans, err := m.recoverOrphaned(ctx, valid)
	if err != nil {
		m.logger.WithError(err).Warn("orphan recovery failed, continuing with validated sessions only")
	}
	for id, s := range orphans {
		valid[id] = s
	}

	m.mu.Lock()
	m.sessions = valid
	m.mu.Unlock()

	return m.persist()
}

// validate confirms a recorded session's device still exists on the host.
func (m *Manager) validate(ctx context.Context, s *Session) bool {
	devices, err := m.driver.ListDevices(ctx)
	if err != nil {
		return false
	}
	for _, d := range devices {
		if d.UDID == s.UDID {
			return true
		}
	}
	return false
}

// recoverOrphaned finds booted devices with no corresponding session
// record and adopts them as new sessions, so a prior process crash never
// strands a live simulator outside the control plane's view.
func (m *Manager) recoverOrphaned(ctx context.Context, known map[string]*Session) (map[string]*Session, error) {
	devices, err := m.driver.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	knownUDIDs := map[string]bool{}
	for _, s := range known {
		knownUDIDs[s.UDID] = true
	}

	orphans := map[string]*Session{}
	for _, d := range devices {
		if d.State != hostdriver.StateBooted || knownUDIDs[d.UDID] {
			continue
		}
		id := uuid.New().String()
		now := time.Now()
		s := &Session{
			ID: id, UDID: d.UDID, DeviceType: d.Name, State: StateReady,
			CreatedAt: now, LastAccessed: now,
		}
		if dim, err := hostdriver.Dimensions(d.Name); err == nil {
			s.PointWidth, s.PointHeight = dim.PointWidth, dim.PointHeight
			s.PixelWidth, s.PixelHeight, s.Scale = dim.PixelWidth, dim.PixelHeight, dim.Scale
		}
		orphans[id] = s
		m.logger.WithField("udid", d.UDID).WithField("session_id", id).
			Info("recovered orphaned booted simulator into a new session")
	}
	return orphans, nil
}

// Create boots a new device of the given type/OS version and registers a
// session for it.
func (m *Manager) Create(ctx context.Context, deviceType, osVersion string) (*Session, error) {
	udid, err := m.driver.CreateDevice(ctx, deviceType, osVersion)
	if err != nil {
		return nil, err
	}
	if err := m.driver.Boot(ctx, udid); err != nil {
		return nil, err
	}

	dim, err := hostdriver.Dimensions(deviceType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.New().String(),
		UDID:         udid,
		DeviceType:   deviceType,
		OSVersion:    osVersion,
		State:        StateReady,
		PointWidth:   dim.PointWidth,
		PointHeight:  dim.PointHeight,
		PixelWidth:   dim.PixelWidth,
		PixelHeight:  dim.PixelHeight,
		Scale:        dim.Scale,
		CreatedAt:    now,
		LastAccessed: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		m.logger.WithError(err).Warn("failed to persist session store after create")
	}
	return s, nil
}

// Get returns a snapshot copy of the session, or a KindNotFound error.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "get-session", "no such session")
	}
	cp := *s
	return &cp, nil
}

// List returns a snapshot of all current sessions, filtering out any whose
// underlying device no longer exists on the host (spec §4.1, invariant 1).
// If the live device list cannot be queried, List fails open and returns
// the unfiltered in-memory snapshot rather than hiding every session.
func (m *Manager) List(ctx context.Context) []*Session {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		snapshot = append(snapshot, &cp)
	}
	m.mu.RUnlock()

	live, err := m.liveUDIDs(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("list: failed to query live devices, returning unfiltered snapshot")
		return snapshot
	}

	out := make([]*Session, 0, len(snapshot))
	for _, s := range snapshot {
		if live[s.UDID] {
			out = append(out, s)
		}
	}
	return out
}

// liveUDIDs returns the set of UDIDs currently known to the host driver.
func (m *Manager) liveUDIDs(ctx context.Context) (map[string]bool, error) {
	devices, err := m.driver.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(devices))
	for _, d := range devices {
		live[d.UDID] = true
	}
	return live, nil
}

// Refresh runs validation over every in-memory session record, removes
// those whose device no longer exists, touches last-accessed on the rest,
// and persists the pruned table (spec §4.1's refresh() operation). It
// returns the surviving sessions.
func (m *Manager) Refresh(ctx context.Context) ([]*Session, error) {
	live, err := m.liveUDIDs(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindHostDriver, "refresh", "failed to query live devices", err)
	}

	m.mu.Lock()
	remaining := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		if !live[s.UDID] {
			delete(m.sessions, id)
			m.logger.WithField("session_id", id).WithField("udid", s.UDID).
				Warn("refresh: dropping session, device no longer resolvable on host")
			continue
		}
		s.touch()
		cp := *s
		remaining = append(remaining, &cp)
	}
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		m.logger.WithError(err).Warn("failed to persist session store after refresh")
	}
	return remaining, nil
}

// Delete shuts down and deletes the session's device, then removes the
// session record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return apperrors.New(apperrors.KindNotFound, "delete-session", "no such session")
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.driver.Shutdown(ctx, s.UDID); err != nil {
		m.logger.WithError(err).WithField("udid", s.UDID).Warn("shutdown failed during session delete, continuing")
	}
	if err := m.driver.Delete(ctx, s.UDID); err != nil {
		m.logger.WithError(err).WithField("udid", s.UDID).Warn("delete failed during session delete")
	}

	if err := m.persist(); err != nil {
		m.logger.WithError(err).Warn("failed to persist session store after delete")
	}
	return nil
}

// SetState transitions a session's lifecycle state.
func (m *Manager) SetState(id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return apperrors.New(apperrors.KindNotFound, "set-state", "no such session")
	}
	s.State = state
	return nil
}

func (m *Manager) persist() error {
	m.mu.RLock()
	records := make(map[string]*store.Record, len(m.sessions))
	for id, s := range m.sessions {
		records[id] = &store.Record{
			UDID: s.UDID, SessionID: s.ID, DeviceType: s.DeviceType,
			OSVersion: s.OSVersion, State: string(s.State),
			PointWidth: s.PointWidth, PointHeight: s.PointHeight,
			PixelWidth: s.PixelWidth, PixelHeight: s.PixelHeight, Scale: s.Scale,
			CreatedAt: s.CreatedAt, LastAccessed: s.LastAccessed,
		}
	}
	m.mu.RUnlock()
	return m.store.Save(records)
}
