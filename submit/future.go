// Package submit implements submission futures and queue submission: the
// handles returned when a recorded batch is handed to the GPU, and the
// ownership bookkeeping that keeps every touched resource alive until
// the GPU is done with it.
package submit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputrack"
	"github.com/gogpu/gputrack/track"
)

// Submission errors.
var (
	// ErrNilBatch is returned when Submit is called without a batch.
	ErrNilBatch = errors.New("submit: batch is nil")

	// ErrNilSignal is returned when Submit is called without a completion
	// signal.
	ErrNilSignal = errors.New("submit: completion signal is nil")

	// ErrTimedOut is returned by WaitAll when a future did not complete
	// within the deadline. The caller may wait again.
	ErrTimedOut = errors.New("submit: wait timed out")
)

// Status is the observable state of a submission future.
type Status uint8

const (
	// StatusPending means the GPU has not finished the submission.
	StatusPending Status = iota
	// StatusComplete means the submission finished successfully.
	StatusComplete
	// StatusTimedOut means a Wait call hit its deadline. The future itself
	// is still pending; waiting again is allowed.
	StatusTimedOut
	// StatusError means the submission failed (device loss or signal
	// failure). Err returns the cause.
	StatusError
)

// statusNames maps Status values to their string representation.
var statusNames = [...]string{
	StatusPending:  "Pending",
	StatusComplete: "Complete",
	StatusTimedOut: "TimedOut",
	StatusError:    "Error",
}

// String returns the string representation of a Status.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// CompletionSignal is the completion primitive boundary: a fence-like
// native object the future observes. The core never constructs one; the
// native binding layer does (see backend/halwgpu).
type CompletionSignal interface {
	// Signaled reports whether the GPU has passed the signal. It never
	// blocks.
	Signaled() (bool, error)

	// Wait blocks until the signal fires or the timeout elapses. It
	// returns false with a nil error on timeout.
	Wait(timeout time.Duration) (bool, error)
}

// Future tracks the completion of one submitted batch. It holds a strong
// reference to every resource the batch touched, extending their
// lifetimes; each resource's guard holds only the submission id back.
//
// Dropping a Future without waiting does not release its resources
// early: the guards stay attached until completion is observed through
// Poll or Wait.
//
// Future is safe for concurrent use.
type Future struct {
	id     uint64
	signal CompletionSignal

	mu        sync.Mutex
	status    Status
	err       error
	resources []*gputrack.Resource
	table     *track.Table
	done      chan struct{}
}

// ID returns the monotonically increasing submission id.
func (f *Future) ID() uint64 { return f.id }

// Poll returns the future's status without blocking. When the native
// signal has fired since the last observation, Poll performs the
// completion transition: guards release, the submission's readers retire, and on
// failure every touched resource is poisoned.
func (f *Future) Poll() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusPending {
		return f.status
	}
	fired, err := f.signal.Signaled()
	switch {
	case err != nil:
		f.completeLocked(fmt.Errorf("%w: %w", gputrack.ErrDeviceLost, err))
	case fired:
		f.completeLocked(nil)
	}
	return f.status
}

// Wait blocks until the submission completes or the timeout elapses.
// A timeout yields StatusTimedOut, not an error: the future is still
// pending and may be waited on again. Pass a negative timeout to wait
// forever.
//
// Wait does not hold the future's lock while blocked on the native
// signal, so concurrent Poll, Err, and Fail calls stay non-blocking.
func (f *Future) Wait(timeout time.Duration) Status {
	f.mu.Lock()
	if f.status != StatusPending {
		st := f.status
		f.mu.Unlock()
		return st
	}
	signal := f.signal
	f.mu.Unlock()

	fired, err := signal.Wait(timeout)

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another observer (Poll, Fail, a concurrent Wait) may have completed
	// the future while the lock was released; the transition is one-shot.
	if f.status != StatusPending {
		return f.status
	}
	switch {
	case err != nil:
		f.completeLocked(fmt.Errorf("%w: %w", gputrack.ErrDeviceLost, err))
	case fired:
		f.completeLocked(nil)
	default:
		return StatusTimedOut
	}
	return f.status
}

// Cancel is a no-op: GPU work in flight cannot be aborted. The status is
// unchanged; callers that no longer care may simply drop the future and
// let completion release the guards whenever it is next observed.
func (f *Future) Cancel() {}

// Done returns a channel closed when the future transitions out of
// pending. The transition only happens when Poll, Wait, or a failing
// observation runs; Done alone does not drive completion.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the submission failure, or nil while pending or after
// success.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Fail transitions the future to StatusError with the given cause. The
// external completion driver calls it on device loss discovered out of
// band; later Poll and Wait calls keep returning StatusError.
func (f *Future) Fail(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusPending {
		f.completeLocked(cause)
	}
}

// completeLocked performs the one-time completion transition. The caller
// holds f.mu.
func (f *Future) completeLocked(cause error) {
	if cause != nil {
		f.status = StatusError
		f.err = cause
		for _, res := range f.resources {
			res.Poison(cause)
		}
	} else {
		f.status = StatusComplete
	}
	for _, res := range f.resources {
		res.Guard().Release(f.id)
	}
	if f.table != nil {
		f.table.Retire(f.id)
	}
	close(f.done)
	gputrack.Logger().Info("submission finished",
		"submission", f.id, "status", f.status.String(), "resources", len(f.resources))
}
