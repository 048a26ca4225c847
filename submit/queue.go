package submit

import (
	"fmt"

	"github.com/gogpu/gputrack"
	"github.com/gogpu/gputrack/recording"
	"github.com/gogpu/gputrack/track"
)

// QueueDescriptor configures a submission queue.
type QueueDescriptor struct {
	// Label is a debug label carried into logs.
	Label string

	// ID is the queue's identity; it must match the queue id sessions
	// record against for same-queue barrier derivation to apply.
	ID gputrack.QueueID

	// Backend receives the recorded commands at submission. A nil backend
	// skips native translation, which is useful for validation runs and
	// tests.
	Backend recording.Backend
}

// Queue hands recorded batches to the GPU. Submission is the epoch
// boundary: the state table's current epoch seals, the batch's session
// token binds to the sealed id, a Future is created under it, and the
// future attaches to the guard of every touched resource.
//
// Queue is safe for concurrent use.
type Queue struct {
	label   string
	id      gputrack.QueueID
	table   *track.Table
	backend recording.Backend
}

// NewQueue creates a queue over the given state table.
func NewQueue(table *track.Table, desc QueueDescriptor) *Queue {
	return &Queue{
		label:   desc.Label,
		id:      desc.ID,
		table:   table,
		backend: desc.Backend,
	}
}

// ID returns the queue's identity.
func (q *Queue) ID() gputrack.QueueID { return q.id }

// Submit replays a batch to the queue's backend and returns the Future
// tracking its completion.
//
// Bookkeeping errors (nil batch, replay failure) surface synchronously
// and leave no state behind; execution errors after this call returns
// surface only through the Future.
func (q *Queue) Submit(batch *recording.Batch, signal CompletionSignal) (*Future, error) {
	if batch == nil {
		return nil, ErrNilBatch
	}
	if signal == nil {
		return nil, ErrNilSignal
	}
	if q.backend != nil {
		if err := batch.Replay(q.backend); err != nil {
			return nil, fmt.Errorf("submit batch %q: %w", batch.Label(), err)
		}
	}

	id := q.table.Advance()
	q.table.Bind(batch.Token(), id)
	fut := &Future{
		id:        id,
		signal:    signal,
		resources: batch.Resources(),
		table:     q.table,
		done:      make(chan struct{}),
	}
	for _, res := range fut.resources {
		res.Guard().Attach(id)
	}
	gputrack.Logger().Info("batch submitted",
		"queue", q.label, "submission", id,
		"label", batch.Label(), "commands", len(batch.Commands()), "resources", len(fut.resources))
	return fut, nil
}
