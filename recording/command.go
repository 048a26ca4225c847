// Package recording provides the command recording session: the builder
// that interleaves declared resource accesses with command emission and
// inserts the synchronization the tracking engine derives.
//
// A Session captures commands as typed structures instead of issuing
// native API calls. Whenever a declared access requires synchronization,
// the matching barrier or layout transition command is emitted into the
// stream before the dependent command. End freezes the session into an
// immutable Batch that can be replayed to any Backend.
//
// # Example
//
//	sess := recording.NewSession(reg, table, recording.SessionDescriptor{Label: "upload"})
//	sess.CopyBuffer(staging, verts, 0, 0, 1024)
//	sess.Dispatch(16, 16, 1,
//	    gputrack.AccessDescriptor{
//	        Resource: verts,
//	        Buffer:   gputrack.WholeBuffer(),
//	        Stages:   gputrack.StageComputeShader,
//	        Mode:     gputrack.AccessRead,
//	    })
//	batch, err := sess.End()
//
// The Session is not safe for concurrent use; build concurrent sessions
// on separate goroutines against a shared Table instead.
package recording

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputrack"
)

// CommandType identifies the type of a recorded command.
type CommandType uint8

const (
	// Synchronization commands, emitted by the tracking engine.

	// CmdBarrier is an execution or memory barrier between stage sets.
	CmdBarrier CommandType = iota
	// CmdLayoutTransition is an image layout transition.
	CmdLayoutTransition
	// CmdQueueTransfer is a queue-ownership transfer of a sub-range.
	CmdQueueTransfer

	// Work commands, recorded by the caller.

	// CmdCopyBuffer copies bytes between two buffers.
	CmdCopyBuffer
	// CmdCopyImage copies subresources between two images.
	CmdCopyImage
	// CmdCopyBufferToImage copies buffer bytes into image subresources.
	CmdCopyBufferToImage
	// CmdDispatch launches a compute grid.
	CmdDispatch
	// CmdDraw records a draw call.
	CmdDraw
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdBarrier:           "Barrier",
	CmdLayoutTransition:  "LayoutTransition",
	CmdQueueTransfer:     "QueueTransfer",
	CmdCopyBuffer:        "CopyBuffer",
	CmdCopyImage:         "CopyImage",
	CmdCopyBufferToImage: "CopyBufferToImage",
	CmdDispatch:          "Dispatch",
	CmdDraw:              "Draw",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all recorded command types.
// Sync commands are opaque tokens: the native binding layer translates
// them into actual API calls, the core never issues those itself.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// BarrierCommand orders the destination stages after the source stages.
// With Memory set, it additionally makes the prior writes to the scoped
// range visible before the destination stages run.
type BarrierCommand struct {
	Resource gputrack.ResourceID
	Src, Dst gputrack.StageMask
	Memory   bool

	// Buffer scopes the barrier on buffer resources, Image on images.
	Buffer gputrack.BufferRange
	Image  gputrack.ImageRange
}

// Type returns CmdBarrier.
func (BarrierCommand) Type() CommandType { return CmdBarrier }

// LayoutTransitionCommand changes an image sub-range from one layout to
// another. When a data-hazard barrier accompanies the transition, the
// transition is recorded after it.
type LayoutTransitionCommand struct {
	Resource gputrack.ResourceID
	Range    gputrack.ImageRange
	Old, New gputrack.ImageLayout
	Src, Dst gputrack.StageMask
}

// Type returns CmdLayoutTransition.
func (LayoutTransitionCommand) Type() CommandType { return CmdLayoutTransition }

// QueueTransferCommand releases ownership of a sub-range on the source
// queue and acquires it on the destination queue. The native layer
// expands it into a semaphore pair plus release and acquire barriers.
type QueueTransferCommand struct {
	Resource gputrack.ResourceID
	SrcQueue gputrack.QueueID
	DstQueue gputrack.QueueID
	Src, Dst gputrack.StageMask

	Buffer gputrack.BufferRange
	Image  gputrack.ImageRange
}

// Type returns CmdQueueTransfer.
func (QueueTransferCommand) Type() CommandType { return CmdQueueTransfer }

// CopyBufferCommand copies Size bytes between two buffer resources.
type CopyBufferCommand struct {
	Src, Dst             gputrack.ResourceID
	SrcOffset, DstOffset uint64
	Size                 uint64
}

// Type returns CmdCopyBuffer.
func (CopyBufferCommand) Type() CommandType { return CmdCopyBuffer }

// CopyImageCommand copies subresources between two image resources.
type CopyImageCommand struct {
	Src, Dst           gputrack.ResourceID
	SrcRange, DstRange gputrack.ImageRange
	Extent             gputypes.Extent3D
}

// Type returns CmdCopyImage.
func (CopyImageCommand) Type() CommandType { return CmdCopyImage }

// CopyBufferToImageCommand copies buffer bytes into image subresources.
type CopyBufferToImageCommand struct {
	Src         gputrack.ResourceID
	Dst         gputrack.ResourceID
	SrcOffset   uint64
	BytesPerRow uint32
	DstRange    gputrack.ImageRange
	Extent      gputypes.Extent3D
}

// Type returns CmdCopyBufferToImage.
func (CopyBufferToImageCommand) Type() CommandType { return CmdCopyBufferToImage }

// DispatchCommand launches a compute grid of X*Y*Z workgroups.
type DispatchCommand struct {
	X, Y, Z uint32
}

// Type returns CmdDispatch.
func (DispatchCommand) Type() CommandType { return CmdDispatch }

// DrawCommand records a draw call.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Type returns CmdDraw.
func (DrawCommand) Type() CommandType { return CmdDraw }
