// Package monitor implements the liveness watchdog of §4.6: one slot per
// worker, bumped on every message start/stop, polled periodically for a
// version that hasn't moved since the last poll. Grounded on the periodic
// polling goroutine shape of the teacher's health/aggregator.go, with the
// teacher's boolean status fields narrowed to the single "endless" flag
// the design calls for.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handle is the opaque service identifier a slot records; kept as a plain
// uint32 here so this package has no dependency on the root package.
type Handle uint32

// slot is one worker's liveness record.
type slot struct {
	version      atomic.Uint32
	checkVersion uint32
	source       atomic.Uint32
	dest         atomic.Uint32
	flagged      Handle // dest this slot last reported stuck, 0 if none
}

// EndlessFunc is invoked when a slot's version hasn't advanced across a
// poll period and its dest is non-zero — the service at dest is apparently
// stuck in its current handler.
type EndlessFunc func(source, dest Handle)

// Monitor is an array of per-worker slots plus a background goroutine that
// polls them every PollInterval.
type Monitor struct {
	slots []slot

	// endless tracks, per dest handle, whether the last poll already
	// reported it stuck — so a still-stuck service isn't re-logged every
	// poll, and a warning is cleared once the handler returns.
	mu      sync.Mutex
	endless map[Handle]bool

	onEndless EndlessFunc

	stop chan struct{}
	wg   sync.WaitGroup
}

// PollInterval is how often the monitor goroutine checks every slot.
const PollInterval = 5 * time.Second

// New builds a Monitor with one slot per worker.
func New(workerCount int, onEndless EndlessFunc) *Monitor {
	return &Monitor{
		slots:     make([]slot, workerCount),
		endless:   make(map[Handle]bool),
		onEndless: onEndless,
		stop:      make(chan struct{}),
	}
}

// Trigger records source/dest on worker's slot and bumps its version. A
// worker calls this with (source, dest) right before invoking a callback
// and with (0, 0) right after, matching §4.4 step 4.
func (m *Monitor) Trigger(worker int, source, dest Handle) {
	s := &m.slots[worker]
	s.source.Store(uint32(source))
	s.dest.Store(uint32(dest))
	s.version.Add(1)
}

// IsEndless reports whether dest is currently flagged as stuck.
func (m *Monitor) IsEndless(dest Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endless[dest]
}

// Run starts the polling goroutine. Call Stop to halt it.
func (m *Monitor) Run() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.pollOnce()
			}
		}
	}()
}

func (m *Monitor) pollOnce() {
	for i := range m.slots {
		s := &m.slots[i]
		version := s.version.Load()
		dest := Handle(s.dest.Load())

		stuck := version == s.checkVersion && dest != 0
		m.mu.Lock()
		if stuck {
			if !m.endless[dest] {
				m.endless[dest] = true
				s.flagged = dest
				if m.onEndless != nil {
					m.onEndless(Handle(s.source.Load()), dest)
				}
			}
		} else {
			delete(m.endless, dest)
			if s.flagged != 0 {
				delete(m.endless, s.flagged)
				s.flagged = 0
			}
		}
		m.mu.Unlock()

		s.checkVersion = version
	}
}

// Stop halts the polling goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}
