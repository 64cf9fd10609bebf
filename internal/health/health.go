// Package health implements the read-only monitoring surface of spec
// §4.9: connection, resource, memory, and session counts, with zero
// side effects.
package health

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/radiocontrol/simctrl/internal/connmgr"
	"github.com/radiocontrol/simctrl/internal/resource"
	"github.com/radiocontrol/simctrl/internal/simsession"
)

// Summary is the terse `/health` response.
type Summary struct {
	Status         string `json:"status"`
	SessionCount   int    `json:"session_count"`
	ConnectionCount int   `json:"connection_count"`
}

// Detailed is the full `/stats` response.
type Detailed struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Sessions    int             `json:"session_count"`
	Connections connmgr.Stats   `json:"connections"`
	Resources   resource.Stats  `json:"resources"`
	Memory      MemoryStats     `json:"memory"`
}

// MemoryStats mirrors spec §4.9's "resident, virtual, percent, limit".
type MemoryStats struct {
	ResidentBytes uint64  `json:"resident_bytes"`
	VirtualBytes  uint64  `json:"virtual_bytes"`
	UsedPercent   float64 `json:"used_percent"`
	LimitMB       int     `json:"limit_mb"`
}

// Aggregator reads from every manager to build health responses. It never
// mutates any of them.
type Aggregator struct {
	sessions  *simsession.Manager
	conns     *connmgr.Registry
	resources *resource.Manager
	limitMB   int
}

// New constructs an Aggregator.
func New(sessions *simsession.Manager, conns *connmgr.Registry, resources *resource.Manager, limitMB int) *Aggregator {
	return &Aggregator{sessions: sessions, conns: conns, resources: resources, limitMB: limitMB}
}

// Summary returns the terse health payload.
func (a *Aggregator) Summary(ctx context.Context) Summary {
	connStats := a.conns.Stats()
	return Summary{
		Status:          "ok",
		SessionCount:    len(a.sessions.List(ctx)),
		ConnectionCount: connStats.TotalConnections,
	}
}

// Detailed returns the full stats payload.
func (a *Aggregator) Detailed(ctx context.Context) Detailed {
	memStats := MemoryStats{LimitMB: a.limitMB}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			memStats.ResidentBytes = info.RSS
			memStats.VirtualBytes = info.VMS
		}
		if pct, err := proc.MemoryPercent(); err == nil {
			memStats.UsedPercent = float64(pct)
		}
	}

	return Detailed{
		Status:      "ok",
		Timestamp:   time.Now(),
		Sessions:    len(a.sessions.List(ctx)),
		Connections: a.conns.Stats(),
		Resources:   a.resources.Stats(),
		Memory:      memStats,
	}
}
