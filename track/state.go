package track

import "github.com/gogpu/gputrack"

// accessRecord is one remembered access: the descriptor plus where in the
// recorded stream it happened and which recording session declared it.
type accessRecord struct {
	desc  gputrack.AccessDescriptor
	pos   uint64
	token SessionToken
}

// stateEntry is the per-resource record of prior accessors. Writes stay
// live until a newer write covers their range; reads accumulate since the
// last overlapping write and are pruned when the submission carrying them
// retires.
type stateEntry struct {
	writes []accessRecord
	reads  []accessRecord

	// layout is the image's current layout, seeded from the resource when
	// the entry is created. Unused for buffers.
	layout gputrack.ImageLayout

	// pos numbers accesses within this entry in record order.
	pos uint64
}

// commit folds an access into the entry after its requirement has been
// resolved.
func (e *stateEntry) commit(in gputrack.AccessDescriptor, tok SessionToken) {
	rec := accessRecord{desc: in, pos: e.pos, token: tok}
	e.pos++

	if in.Mode.Writes() {
		// Readers ordered before this write are satisfied by the barrier
		// just derived (or touch disjoint ranges and stay independent only
		// if they really are disjoint).
		e.reads = pruneOverlapping(e.reads, in)
		// Writes fully covered by the new write can no longer be the
		// nearest hazard for any later access.
		e.writes = pruneCovered(e.writes, in)
		e.writes = append(e.writes, rec)
	} else {
		e.reads = append(e.reads, rec)
	}

	if in.Layout != gputrack.LayoutUndefined {
		e.layout = in.Layout
	}
}

// retire drops readers declared by the given sessions. Readers from other
// sessions stay, even when recorded earlier: their own submissions may
// still be in flight. Live writes survive until overwritten; a barrier
// against completed work is redundant but harmless, while dropping an
// unfinished writer would not be.
func (e *stateEntry) retire(done map[SessionToken]struct{}) {
	kept := e.reads[:0]
	for _, r := range e.reads {
		if _, ok := done[r.token]; !ok {
			kept = append(kept, r)
		}
	}
	e.reads = kept
}

func pruneOverlapping(recs []accessRecord, in gputrack.AccessDescriptor) []accessRecord {
	kept := recs[:0]
	for _, r := range recs {
		if !r.desc.Overlaps(in) {
			kept = append(kept, r)
		}
	}
	return kept
}

func pruneCovered(recs []accessRecord, in gputrack.AccessDescriptor) []accessRecord {
	kept := recs[:0]
	for _, r := range recs {
		if !covers(in, r.desc) {
			kept = append(kept, r)
		}
	}
	return kept
}

// covers reports whether access a's range fully contains access b's.
func covers(a, b gputrack.AccessDescriptor) bool {
	if a.Image != (gputrack.ImageRange{}) || b.Image != (gputrack.ImageRange{}) {
		return a.Image.Contains(b.Image)
	}
	return a.Buffer.Contains(b.Buffer)
}
