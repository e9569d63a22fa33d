package daemon

import (
	"sync"
	"time"
)

// IdleMonitor tracks the two liveness counters of spec.md §4.4 —
// active_requests and active_sse — and fires onIdle once both have
// been zero for IdleTimeout, unless Persist disables the timer
// entirely. Each Begin/End pair guards one in-flight request or SSE
// stream, matching the teacher's "scoped acquisition with guaranteed
// release" discipline for subscriber handles.
type IdleMonitor struct {
	mu      sync.Mutex
	timeout time.Duration
	persist bool
	onIdle  func()

	activeRequests int
	activeSSE      int
	timer          *time.Timer
}

// NewIdleMonitor creates a monitor that calls onIdle once the idle
// window elapses with both counters at zero.
func NewIdleMonitor(timeout time.Duration, persist bool, onIdle func()) *IdleMonitor {
	return &IdleMonitor{timeout: timeout, persist: persist, onIdle: onIdle}
}

// BeginRequest marks one HTTP request as in-flight; call the returned
// func when it completes.
func (m *IdleMonitor) BeginRequest() func() {
	m.mu.Lock()
	m.activeRequests++
	m.stopTimerLocked()
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.activeRequests--
		m.maybeArmLocked()
		m.mu.Unlock()
	}
}

// BeginSSE marks one live event stream; call the returned func on
// disconnect.
func (m *IdleMonitor) BeginSSE() func() {
	m.mu.Lock()
	m.activeSSE++
	m.stopTimerLocked()
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.activeSSE--
		m.maybeArmLocked()
		m.mu.Unlock()
	}
}

// Counts returns the current (active_requests, active_sse) pair.
func (m *IdleMonitor) Counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRequests, m.activeSSE
}

func (m *IdleMonitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *IdleMonitor) maybeArmLocked() {
	if m.persist || m.activeRequests > 0 || m.activeSSE > 0 {
		return
	}
	m.stopTimerLocked()
	m.timer = time.AfterFunc(m.timeout, m.onIdle)
}

// Arm starts the idle timer immediately, for a freshly started server
// with no requests yet in flight.
func (m *IdleMonitor) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeArmLocked()
}

// Stop cancels any pending idle timer, e.g. during shutdown.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}
