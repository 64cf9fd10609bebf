// Package resource owns every per-device capture and WebRTC service
// singleton and enforces process-wide memory limits against them: service
// exists iff it is reachable from this pool (spec §4.5).
package resource

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/radiocontrol/simctrl/internal/capture"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/logging"
	"github.com/radiocontrol/simctrl/internal/webrtcstream"
)

// idleSweepInterval is the cadence of the unconditional idle-service sweep
// (spec §4.4/§4.5: "a background sweep evicts services whose idle-for > 5
// min"), independent of memory pressure.
const idleSweepInterval = 30 * time.Second

// Config controls the memory sampler's cadence and thresholds.
type Config struct {
	MaxMemoryMB         int
	CheckInterval       time.Duration
	ServiceIdleTimeout  time.Duration
	MaxEmergencyCleanup int
}

// Manager is the process-wide pool of capture.Service and
// webrtcstream.Service singletons, keyed by device UDID.
type Manager struct {
	driver *hostdriver.Driver
	logger *logging.Logger
	cfg    Config

	mu      sync.Mutex
	capture map[string]*capture.Service
	webrtc  map[string]*webrtcstream.Service

	cancel context.CancelFunc
}

// New constructs a Manager. Call Start to begin the idle sweep and memory
// sampler background tasks.
func New(driver *hostdriver.Driver, logger *logging.Logger, cfg Config) *Manager {
	return &Manager{
		driver:  driver,
		logger:  logger,
		cfg:     cfg,
		capture: map[string]*capture.Service{},
		webrtc:  map[string]*webrtcstream.Service{},
	}
}

// GetVideo returns (creating if necessary) the capture Service for udid
// and registers clientID against it.
func (m *Manager) GetVideo(udid, clientID string, queueSize int) (*capture.Service, <-chan capture.Frame) {
	m.mu.Lock()
	svc, ok := m.capture[udid]
	if !ok {
		svc = capture.NewService(udid, m.driver, m.logger)
		m.capture[udid] = svc
	}
	m.mu.Unlock()

	frames := svc.Acquire(clientID, queueSize)
	return svc, frames
}

// ReleaseVideo removes clientID from udid's capture service. The service
// itself is left in the pool (spec §4.5's idle grace window) for the
// background sweep to evict.
func (m *Manager) ReleaseVideo(udid, clientID string) {
	m.mu.Lock()
	svc, ok := m.capture[udid]
	m.mu.Unlock()
	if ok {
		svc.Release(clientID)
	}
}

// GetWebRTC returns (creating if necessary) the WebRTC Service for udid.
func (m *Manager) GetWebRTC(udid, clientID string) (*webrtcstream.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.webrtc[udid]
	if !ok {
		var err error
		svc, err = webrtcstream.NewService(udid, m.logger)
		if err != nil {
			return nil, err
		}
		m.webrtc[udid] = svc
	}
	svc.AddClient(clientID)
	return svc, nil
}

// ReleaseWebRTC removes clientID from udid's WebRTC service.
func (m *Manager) ReleaseWebRTC(udid, clientID string) {
	m.mu.Lock()
	svc, ok := m.webrtc[udid]
	m.mu.Unlock()
	if ok {
		svc.RemoveClient(clientID)
	}
}

// Start launches the idle sweep and memory sampler background loops.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.memoryLoop(ctx)
	go m.idleSweepLoop(ctx)
}

// Stop halts background tasks and closes every pooled service,
// irrespective of client count (used during process shutdown only).
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.CleanupAll()
}

// CleanupAll forcibly stops every pooled service and empties the pool.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for udid, svc := range m.capture {
		svc.Stop()
		delete(m.capture, udid)
	}
	for udid, svc := range m.webrtc {
		svc.Close()
		delete(m.webrtc, udid)
	}
}

// Stats summarizes pool occupancy for the health/stats surface.
type Stats struct {
	CaptureServices int    `json:"capture_services"`
	WebRTCServices  int    `json:"webrtc_services"`
	DroppedFrames   uint64 `json:"dropped_frames"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped uint64
	for _, svc := range m.capture {
		dropped += svc.DroppedCount()
	}
	return Stats{CaptureServices: len(m.capture), WebRTCServices: len(m.webrtc), DroppedFrames: dropped}
}

func (m *Manager) memoryLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkMemory()
		}
	}
}

// idleSweepLoop evicts idle capture services on a fixed cadence regardless
// of memory pressure, so a quiet process under its memory cap still
// reclaims services whose idle grace window has expired (spec §4.4).
func (m *Manager) idleSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.idleEviction()
		}
	}
}

// residentMemoryBytes reports this process's resident set size (spec §4.5:
// "resident memory"), not system-wide used memory, so the cap is compared
// against what this process actually holds rather than host-wide pressure.
func residentMemoryBytes() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

func (m *Manager) checkMemory() {
	rss, err := residentMemoryBytes()
	if err != nil {
		m.logger.WithError(err).Warn("failed to sample process memory usage")
		return
	}

	usedMB := float64(rss) / (1024 * 1024)
	capMB := float64(m.cfg.MaxMemoryMB)
	if capMB <= 0 {
		return
	}
	usage := usedMB / capMB

	switch {
	case usage >= 1.0:
		m.emergencyCleanup()
	case usage >= 0.8:
		m.idleEviction()
	}
}

// idleEviction stops every capture service that currently has zero
// clients and has sat idle past the configured timeout. Called both on a
// fixed sweep cadence and opportunistically under memory pressure.
func (m *Manager) idleEviction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for udid, svc := range m.capture {
		if svc.ClientCount() == 0 && svc.IdleFor() > m.cfg.ServiceIdleTimeout {
			svc.Stop()
			delete(m.capture, udid)
			m.logger.WithField("udid", udid).Info("evicted idle capture service past its idle grace window")
		}
	}
}

// emergencyCleanup closes up to MaxEmergencyCleanup zero-client services,
// ordered by ascending client count, never touching a service with active
// clients (spec §4.5).
func (m *Manager) emergencyCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		udid    string
		clients int
	}
	var candidates []entry
	for udid, svc := range m.capture {
		candidates = append(candidates, entry{udid: udid, clients: svc.ClientCount()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].clients < candidates[j].clients })

	closed := 0
	for _, c := range candidates {
		if closed >= m.cfg.MaxEmergencyCleanup {
			break
		}
		if c.clients > 0 {
			continue
		}
		m.capture[c.udid].Stop()
		delete(m.capture, c.udid)
		closed++
		m.logger.WithField("udid", c.udid).Warn("emergency-closed idle capture service: memory at capacity")
	}
}

