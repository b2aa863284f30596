package render

import (
	"golang.org/x/sync/semaphore"

	"github.com/phoenixlabs/renderd/internal/metrics"
)

// Gate admits at most one batch at a time. Admission is non-blocking:
// a batch arriving while another is in flight is rejected immediately
// so the caller can surface a retry signal instead of queueing work
// against the single shared browser.
//
// A disabled gate admits everything; concurrency inside a batch is
// still bounded by the scheduler's wave size.
type Gate struct {
	enabled bool
	sem     *semaphore.Weighted
}

// NewGate creates a gate. When enabled is false the gate is a no-op.
func NewGate(enabled bool) *Gate {
	return &Gate{
		enabled: enabled,
		sem:     semaphore.NewWeighted(1),
	}
}

// TryAcquire attempts to admit a batch. It never blocks. The caller
// must call Release exactly once after a successful acquire.
func (g *Gate) TryAcquire() bool {
	if !g.enabled {
		return true
	}
	if !g.sem.TryAcquire(1) {
		metrics.GateRejections.Inc()
		return false
	}
	return true
}

// Release returns the slot taken by TryAcquire.
func (g *Gate) Release() {
	if !g.enabled {
		return
	}
	g.sem.Release(1)
}
