// Package pipeline implements the indexing pipeline of spec.md §4.2:
// incremental directory scan + hash/mtime reconciliation, token-aware
// chunking, batched embedding, and the cooperative cancellation/yield
// protocol that every streaming operation rides on.
package pipeline

import (
	"context"
	"runtime"
	"sync/atomic"

	spallerrors "github.com/spall/spall/internal/errors"
)

// RequestContext carries the cooperative cancellation token and yield
// counter of spec.md §5/§9: in a target with task-locals this would
// ride implicitly, so here it is threaded explicitly through every
// pipeline function that checkpoints.
type RequestContext struct {
	Aborted *atomic.Bool
	Iter    int
	Every   int
}

// NewRequestContext creates a fresh, non-aborted request context with
// the given yield cadence (checkpoint every N iterations).
func NewRequestContext(every int) *RequestContext {
	if every <= 0 {
		every = 1
	}
	return &RequestContext{Aborted: new(atomic.Bool), Every: every}
}

// Abort flags the request context as cancelled. Safe to call from any
// goroutine; observed at the next checkpoint.
func (r *RequestContext) Abort() {
	r.Aborted.Store(true)
}

// checkpoint is called at each chunk processed and at each batch
// boundary. It raises storage.cancelled if aborted, otherwise yields
// to the scheduler every Every iterations.
func (r *RequestContext) checkpoint(ctx context.Context) error {
	if r.Aborted.Load() || ctx.Err() != nil {
		return spallerrors.Cancelled()
	}
	r.Iter++
	if r.Iter%r.Every == 0 {
		runtime.Gosched()
	}
	return nil
}
