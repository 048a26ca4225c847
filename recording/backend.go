package recording

// Backend is the native command stream boundary. A Batch is replayed to
// a Backend, which translates the recorded commands — barrier records,
// layout transition records, copies, dispatches — into actual API calls.
// The tracking core never issues native calls itself.
//
// Backends are created via the registry using NewBackend(name) and
// registered via Register() in their init() functions.
//
// # Implementation Contract
//
// Each backend must:
//  1. Register in init() using recording.Register()
//  2. Handle all Backend methods (even if no-op for some)
//  3. Preserve replay order: commands arrive in recording order and the
//     derived barriers are only correct in that order
type Backend interface {
	// Begin initializes the backend for one batch. It is called once
	// before any command of the batch is replayed.
	Begin(label string) error

	// End finalizes the batch. No further commands follow.
	End() error

	// Barrier establishes an execution or memory dependency.
	Barrier(cmd BarrierCommand) error

	// Transition changes an image sub-range's layout.
	Transition(cmd LayoutTransitionCommand) error

	// QueueTransfer hands a sub-range from one queue to another.
	QueueTransfer(cmd QueueTransferCommand) error

	// CopyBuffer copies bytes between buffers.
	CopyBuffer(cmd CopyBufferCommand) error

	// CopyImage copies subresources between images.
	CopyImage(cmd CopyImageCommand) error

	// CopyBufferToImage copies buffer bytes into image subresources.
	CopyBufferToImage(cmd CopyBufferToImageCommand) error

	// Dispatch launches a compute grid.
	Dispatch(cmd DispatchCommand) error

	// Draw records a draw call.
	Draw(cmd DrawCommand) error
}
