package track

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputrack"
)

// shardCount is the number of table shards. Must be a power of 2 for
// fast shard selection via bitwise AND.
const shardCount = 16

const shardMask = shardCount - 1

// SessionToken identifies one recording session to the table. Accesses
// recorded under a token stay live until the token's submission, bound
// with Bind at submit time, retires. A token that is never bound (a
// discarded session, or work recorded outside any submission) is never
// retired; its readers fall away only when an overlapping write replaces
// them.
type SessionToken uint64

// NoToken marks an access that belongs to no recording session.
const NoToken SessionToken = 0

// tableShard holds the state entries of a slice of the resource id space.
// Each shard has its own mutex so contention on one resource never blocks
// recording sessions working on resources in other shards.
type tableShard struct {
	mu      sync.Mutex
	entries map[gputrack.ResourceID]*stateEntry
}

// Table is the resource state table: per-resource records of the last
// writers and the readers since, consulted and updated on every declared
// access.
//
// Table is safe for concurrent use. A single Record call locks only the
// shard owning the touched resource.
type Table struct {
	shards [shardCount]tableShard

	// epoch is the current submission epoch. Advance seals it and returns
	// its id as the submission id.
	epoch atomic.Uint64

	// nextToken issues session tokens.
	nextToken atomic.Uint64

	// bindings maps session tokens to the submission ids that carry their
	// recorded work. A binding exists from Bind until the submission
	// retires.
	bindMu   sync.Mutex
	bindings map[SessionToken]uint64
}

// NewTable creates an empty state table. The first submission epoch is 1.
func NewTable() *Table {
	t := &Table{bindings: make(map[SessionToken]uint64)}
	t.epoch.Store(1)
	for i := range t.shards {
		t.shards[i].entries = make(map[gputrack.ResourceID]*stateEntry)
	}
	return t
}

func (t *Table) shard(id gputrack.ResourceID) *tableShard {
	// Ids are arena indices plus generation; the low bits alone spread
	// well, so an identity hash suffices.
	return &t.shards[uint64(id)&shardMask]
}

// Record resolves the synchronization requirement of one access and folds
// the access into the resource's state entry. The two steps happen under
// one shard lock, so concurrent sessions touching the same resource
// serialize here and observe each other's accesses in a total order.
//
// Record validates the access against the resource first and fails with
// ErrInvalidRange or ErrKindMismatch without mutating any state.
//
// tok names the recording session declaring the access; it scopes the
// record's lifetime to that session's submission. Pass NoToken for
// accesses outside any session.
func (t *Table) Record(res *gputrack.Resource, in gputrack.AccessDescriptor, tok SessionToken) (SyncRequirement, error) {
	if res == nil {
		return SyncRequirement{}, fmt.Errorf("%w: nil resource", gputrack.ErrResourceUnavailable)
	}
	if err := res.ValidateAccess(in); err != nil {
		return SyncRequirement{}, err
	}
	in.Resource = res.ID()
	isImage := res.Kind() == gputrack.KindImage

	sh := t.shard(res.ID())
	sh.mu.Lock()
	entry, ok := sh.entries[res.ID()]
	if !ok {
		entry = &stateEntry{layout: res.Layout()}
		sh.entries[res.ID()] = entry
	}
	req := resolve(entry, in, isImage)
	entry.commit(in, tok)
	sh.mu.Unlock()

	if req.HasTransition {
		res.SetLayout(req.NewLayout)
	}
	if !req.None() {
		gputrack.Logger().Debug("sync required",
			"resource", res.ID().String(), "access", in.String(), "requirement", req.String())
	}
	return req, nil
}

// Epoch returns the current submission epoch.
func (t *Table) Epoch() uint64 {
	return t.epoch.Load()
}

// Advance seals the current epoch and returns its id: the submission id
// the sealed work retires under. Bind ties the submitting session's
// records to it.
func (t *Table) Advance() uint64 {
	return t.epoch.Add(1) - 1
}

// NewToken issues a fresh session token. Every recording session takes
// one and tags its accesses with it.
func (t *Table) NewToken() SessionToken {
	return SessionToken(t.nextToken.Add(1))
}

// Bind associates a session token with the submission id that carries its
// recorded work. Called at submit time, after Advance; Retire of that id
// then prunes exactly the readers the session declared.
func (t *Table) Bind(tok SessionToken, id uint64) {
	if tok == NoToken {
		return
	}
	t.bindMu.Lock()
	t.bindings[tok] = id
	t.bindMu.Unlock()
}

// Retire prunes the reader entries of sessions whose work submission id
// carried. Called when the future of submission id completes; the retired
// readers can never be the source of a hazard again. Readers recorded by
// sessions bound to other submissions stay, no matter the recording
// order: their own futures are still in flight.
func (t *Table) Retire(id uint64) {
	done := make(map[SessionToken]struct{})
	t.bindMu.Lock()
	for tok, bound := range t.bindings {
		if bound == id {
			done[tok] = struct{}{}
			delete(t.bindings, tok)
		}
	}
	t.bindMu.Unlock()
	if len(done) == 0 {
		return
	}
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		for _, e := range sh.entries {
			e.retire(done)
		}
		sh.mu.Unlock()
	}
}

// Forget drops a resource's state entry. Call it after the resource is
// destroyed so the table does not retain history for a dead id.
func (t *Table) Forget(id gputrack.ResourceID) {
	sh := t.shard(id)
	sh.mu.Lock()
	delete(sh.entries, id)
	sh.mu.Unlock()
}

// Len returns the number of resources with live state entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
