package rxengine

import (
	"github.com/rubyfpv/radio-link/internal/thread"
)

// SetWorkerPriority requests that the Rx worker's OS thread switch to
// realtime round-robin scheduling (spec.md §4.4 step 4, "apply a
// pending thread-priority change"); the request is applied at the next
// loop checkpoint rather than immediately, matching the step's own
// "pending" framing.
func (e *Engine) SetWorkerPriority(realtime bool) {
	if realtime {
		e.pendingPriority.Store(1)
	} else {
		e.pendingPriority.Store(0)
	}
}

// applyPendingPriority checks and clears a pending priority
// request, applying it to the worker's own OS thread.
func (e *Engine) applyPendingPriority() {
	if !e.pendingPriority.CompareAndSwap(1, 0) {
		return
	}
	if err := thread.Realtime(); err != nil {
		e.log.Warnf("rxengine: failed to raise worker thread priority: %v", err)
	}
}
