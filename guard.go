package gputrack

import "sync"

// Guard ties a resource's destruction to the set of outstanding
// submissions that reference it. Every submitted batch attaches itself to
// the guard of each resource it touched; completion (successful or not)
// releases the attachment. Destroy is only permitted once no attachments
// remain.
//
// The guard stores only submission ids, never a pointer back to the
// future: the future owns a strong reference to the resource, the
// resource holds a count-based back-reference and nothing more, so no
// ownership cycle can form.
//
// Guard is safe for concurrent use.
type Guard struct {
	mu      sync.Mutex
	pending map[uint64]struct{}
}

// Attach records a pending submission referencing the resource.
// Attaching the same submission twice is a no-op.
func (g *Guard) Attach(submission uint64) {
	g.mu.Lock()
	if g.pending == nil {
		g.pending = make(map[uint64]struct{}, 4)
	}
	g.pending[submission] = struct{}{}
	g.mu.Unlock()
}

// Release removes a submission's attachment. Releasing an unknown
// submission is a no-op; releasing the same submission twice has no
// further effect.
func (g *Guard) Release(submission uint64) {
	g.mu.Lock()
	delete(g.pending, submission)
	g.mu.Unlock()
}

// Pending returns the number of submissions still referencing the
// resource.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// CanDestroy reports whether no pending submission references the
// resource.
func (g *Guard) CanDestroy() bool {
	return g.Pending() == 0
}
