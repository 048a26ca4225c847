package recording

// NoopBackend discards every command and counts what it saw. It is the
// default target for tests and for validating a batch without a device.
//
// NoopBackend is not safe for concurrent use.
type NoopBackend struct {
	// Begun and Ended record the lifecycle calls received.
	Begun, Ended int

	// Counts tallies replayed commands by type.
	Counts map[CommandType]int
}

func init() {
	Register("noop", func() Backend { return NewNoopBackend() })
}

// NewNoopBackend creates an empty noop backend.
func NewNoopBackend() *NoopBackend {
	return &NoopBackend{Counts: make(map[CommandType]int)}
}

// Begin implements Backend.
func (n *NoopBackend) Begin(string) error {
	n.Begun++
	return nil
}

// End implements Backend.
func (n *NoopBackend) End() error {
	n.Ended++
	return nil
}

func (n *NoopBackend) count(t CommandType) error {
	n.Counts[t]++
	return nil
}

// Barrier implements Backend.
func (n *NoopBackend) Barrier(BarrierCommand) error { return n.count(CmdBarrier) }

// Transition implements Backend.
func (n *NoopBackend) Transition(LayoutTransitionCommand) error { return n.count(CmdLayoutTransition) }

// QueueTransfer implements Backend.
func (n *NoopBackend) QueueTransfer(QueueTransferCommand) error { return n.count(CmdQueueTransfer) }

// CopyBuffer implements Backend.
func (n *NoopBackend) CopyBuffer(CopyBufferCommand) error { return n.count(CmdCopyBuffer) }

// CopyImage implements Backend.
func (n *NoopBackend) CopyImage(CopyImageCommand) error { return n.count(CmdCopyImage) }

// CopyBufferToImage implements Backend.
func (n *NoopBackend) CopyBufferToImage(CopyBufferToImageCommand) error {
	return n.count(CmdCopyBufferToImage)
}

// Dispatch implements Backend.
func (n *NoopBackend) Dispatch(DispatchCommand) error { return n.count(CmdDispatch) }

// Draw implements Backend.
func (n *NoopBackend) Draw(DrawCommand) error { return n.count(CmdDraw) }
