// Package track implements the resource state table and dependency
// resolver: the engine that observes every declared access and derives
// the minimal synchronization a command stream needs to stay race-free.
package track

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputrack"
)

// SyncKind classifies the synchronization an access requires against
// previously recorded work.
type SyncKind uint8

const (
	// SyncNone means the access can proceed without ordering. Reads after
	// reads and accesses to disjoint sub-ranges resolve to SyncNone.
	SyncNone SyncKind = iota

	// SyncExecutionBarrier orders execution only: the destination stages
	// wait for the source stages. Sufficient for write-after-read hazards,
	// where no data must be made visible.
	SyncExecutionBarrier

	// SyncMemoryBarrier orders execution and makes a prior write's data
	// visible. Required for read-after-write and write-after-write hazards
	// and for layout transitions.
	SyncMemoryBarrier

	// SyncQueueTransfer hands ownership of the sub-range from one queue to
	// another. Derived when the conflicting accesses were recorded for
	// different queues; translates to a semaphore pair plus release and
	// acquire barriers at the native boundary.
	SyncQueueTransfer
)

// syncKindNames maps SyncKind values to their string representation.
var syncKindNames = [...]string{
	SyncNone:             "None",
	SyncExecutionBarrier: "ExecutionBarrier",
	SyncMemoryBarrier:    "MemoryBarrier",
	SyncQueueTransfer:    "QueueTransfer",
}

// String returns the string representation of a SyncKind.
func (k SyncKind) String() string {
	if int(k) < len(syncKindNames) {
		return syncKindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// stronger ranks kinds by strength so conflicting requirements merge to
// the strongest one.
func (k SyncKind) stronger(o SyncKind) SyncKind {
	if o > k {
		return o
	}
	return k
}

// SyncRequirement is the resolver's verdict for one access: the kind of
// synchronization needed, the stages it spans, the minimal conflicting
// sub-range, and an optional image layout transition.
//
// When multiple prior accesses conflict, their stage masks are unioned
// into one requirement rather than one barrier per conflict; minimizing
// barrier count is a policy choice the ordering invariants permit.
type SyncRequirement struct {
	// Kind is the synchronization class. SyncNone means nothing to do.
	Kind SyncKind

	// SrcStages is the union of the stages of every conflicting prior
	// access. Zero means the barrier waits on nothing (top of pipe), which
	// happens for pure layout transitions with no data hazard.
	SrcStages gputrack.StageMask

	// DstStages is the stage set of the incoming access.
	DstStages gputrack.StageMask

	// Buffer is the minimal byte range covering every conflict, for
	// buffer resources.
	Buffer gputrack.BufferRange

	// Image is the minimal subresource selection covering every conflict,
	// for image resources.
	Image gputrack.ImageRange

	// HasTransition marks an image layout transition, ordered after the
	// data-hazard barrier described by the fields above.
	HasTransition bool

	// OldLayout and NewLayout describe the transition when HasTransition
	// is set.
	OldLayout, NewLayout gputrack.ImageLayout

	// SrcQueue and DstQueue carry the ownership transfer endpoints when
	// Kind is SyncQueueTransfer.
	SrcQueue, DstQueue gputrack.QueueID
}

// None reports whether the requirement demands nothing at all.
func (r SyncRequirement) None() bool {
	return r.Kind == SyncNone && !r.HasTransition
}

// String returns a compact description for logs.
func (r SyncRequirement) String() string {
	if r.None() {
		return "none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s -> %s", r.Kind, r.SrcStages, r.DstStages)
	if r.HasTransition {
		fmt.Fprintf(&b, " transition %s -> %s", r.OldLayout, r.NewLayout)
	}
	if r.Kind == SyncQueueTransfer {
		fmt.Fprintf(&b, " queue %d -> %d", r.SrcQueue, r.DstQueue)
	}
	return b.String()
}
