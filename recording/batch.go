package recording

import (
	"fmt"

	"github.com/gogpu/gputrack"
	"github.com/gogpu/gputrack/track"
)

// Batch is an immutable recorded command stream, produced by
// Session.End. It can be replayed to any Backend and submitted to a
// queue; the derived synchronization commands it contains are only
// correct in recording order, so replay never reorders.
type Batch struct {
	label     string
	queue     gputrack.QueueID
	token     track.SessionToken
	commands  []Command
	resources []*gputrack.Resource
}

// Label returns the batch's debug label.
func (b *Batch) Label() string { return b.label }

// Queue returns the queue the batch was recorded for.
func (b *Batch) Queue() gputrack.QueueID { return b.queue }

// Token returns the session token the batch's accesses were recorded
// under. Submission binds it to the submission id, scoping the recorded
// readers' lifetime to that submission.
func (b *Batch) Token() track.SessionToken { return b.token }

// Commands returns the recorded command stream in order. The returned
// slice is shared; callers must not modify it.
func (b *Batch) Commands() []Command { return b.commands }

// Resources returns the resources the batch touches. Futures created at
// submission hold these references, keeping every resource alive until
// the GPU is done.
func (b *Batch) Resources() []*gputrack.Resource { return b.resources }

// Replay feeds the batch to a backend in recording order. Replay stops
// at the first failing command and returns its error wrapped with the
// command's position.
func (b *Batch) Replay(be Backend) error {
	if err := be.Begin(b.label); err != nil {
		return fmt.Errorf("begin batch %q: %w", b.label, err)
	}
	for i, cmd := range b.commands {
		var err error
		switch c := cmd.(type) {
		case BarrierCommand:
			err = be.Barrier(c)
		case LayoutTransitionCommand:
			err = be.Transition(c)
		case QueueTransferCommand:
			err = be.QueueTransfer(c)
		case CopyBufferCommand:
			err = be.CopyBuffer(c)
		case CopyImageCommand:
			err = be.CopyImage(c)
		case CopyBufferToImageCommand:
			err = be.CopyBufferToImage(c)
		case DispatchCommand:
			err = be.Dispatch(c)
		case DrawCommand:
			err = be.Draw(c)
		default:
			err = fmt.Errorf("recording: unknown command type %T", cmd)
		}
		if err != nil {
			return fmt.Errorf("replay command %d (%s): %w", i, cmd.Type(), err)
		}
	}
	return be.End()
}
