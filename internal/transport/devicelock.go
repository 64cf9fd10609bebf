package transport

import (
	"sync"
	"time"
)

// deviceLocks serializes control operations per device UDID: at most one
// host-driver control call in flight per device at a time (spec §5).
// Acquire fails fast with ok=false rather than queuing if the device is
// still busy after timeout, matching the control channel's no-queue
// back-pressure policy (spec §4.7.1).
type deviceLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: map[string]chan struct{}{}}
}

func (d *deviceLocks) semaphore(udid string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	sem, ok := d.locks[udid]
	if !ok {
		sem = make(chan struct{}, 1)
		d.locks[udid] = sem
	}
	return sem
}

func (d *deviceLocks) Acquire(udid string, timeout time.Duration) (release func(), ok bool) {
	sem := d.semaphore(udid)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, true
	case <-time.After(timeout):
		return nil, false
	}
}
