package track

import "github.com/gogpu/gputrack"

// resolve derives the synchronization an incoming access needs against
// the entry's recorded history. It does not mutate the entry; the caller
// commits the access afterwards.
//
// The rules, in order:
//
//   - No overlapping prior access: SyncNone.
//   - Read after reads only: SyncNone. Reads never synchronize against
//     each other regardless of overlap.
//   - Read overlapping a prior write: memory barrier (the write's data
//     must become visible).
//   - Write overlapping a prior write: memory barrier.
//   - Write overlapping prior reads only: execution barrier (nothing to
//     flush, only ordering).
//   - Any conflict across queues: queue-ownership transfer.
//   - Image layout mismatch: a transition is appended even without a data
//     hazard, ordered after the hazard barrier.
//
// Conflicting stage masks aggregate into one requirement (union), never
// one barrier per conflict.
func resolve(e *stateEntry, in gputrack.AccessDescriptor, isImage bool) SyncRequirement {
	req := SyncRequirement{Kind: SyncNone, DstStages: in.Stages, DstQueue: in.Queue}

	conflict := func(rec accessRecord, priorWrites bool) {
		if !rec.desc.Overlaps(in) {
			return
		}
		kind := SyncExecutionBarrier
		if priorWrites {
			kind = SyncMemoryBarrier
		}
		if rec.desc.Queue != in.Queue {
			kind = SyncQueueTransfer
			req.SrcQueue = rec.desc.Queue
		}
		req.Kind = req.Kind.stronger(kind)
		req.SrcStages |= rec.desc.Stages

		if isImage {
			if sect, ok := rec.desc.Image.Intersect(in.Image); ok {
				if req.Image == (gputrack.ImageRange{}) {
					req.Image = sect
				} else {
					req.Image = req.Image.Cover(sect)
				}
			}
		} else {
			if sect, ok := rec.desc.Buffer.Intersect(in.Buffer); ok {
				if req.Buffer == (gputrack.BufferRange{}) {
					req.Buffer = sect
				} else {
					req.Buffer = req.Buffer.Cover(sect)
				}
			}
		}
	}

	// Prior writes conflict with every overlapping access, read or write.
	for _, w := range e.writes {
		conflict(w, true)
	}
	// Prior reads conflict only with an incoming write.
	if in.Mode.Writes() {
		for _, r := range e.reads {
			conflict(r, false)
		}
	}

	if isImage && in.Layout != gputrack.LayoutUndefined && in.Layout != e.layout {
		req.HasTransition = true
		req.OldLayout = e.layout
		req.NewLayout = in.Layout
		// The transition must cover the whole range the command requires
		// in the new layout, not just the conflicting part.
		req.Image = in.Image
		// A transition rewrites memory even absent a data hazard. With no
		// conflicting access the source mask stays zero: wait on nothing,
		// transition at top of pipe.
		req.Kind = req.Kind.stronger(SyncMemoryBarrier)
	}

	return req
}
