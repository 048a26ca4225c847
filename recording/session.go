package recording

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputrack"
	"github.com/gogpu/gputrack/track"
)

// SessionDescriptor configures a new recording session.
type SessionDescriptor struct {
	// Label is a debug label carried into logs and the finished batch.
	Label string

	// Queue is the execution queue the session records for. Every touch
	// declared through the session is tagged with it.
	Queue gputrack.QueueID
}

// Session accumulates access declarations in submission order and asks
// the state table for required synchronization as it builds the command
// stream. Non-trivial requirements become barrier and transition commands
// emitted before the dependent command.
//
// A Session is not safe for concurrent use. Multiple sessions may be
// built concurrently on different goroutines against the same Table;
// contention on a shared resource serializes inside the table, not here.
type Session struct {
	registry *gputrack.Registry
	table    *track.Table
	queue    gputrack.QueueID
	label    string
	token    track.SessionToken

	commands []Command
	touched  map[gputrack.ResourceID]*gputrack.Resource
	closed   bool
}

// NewSession creates a recording session against the given registry and
// state table.
func NewSession(registry *gputrack.Registry, table *track.Table, desc SessionDescriptor) *Session {
	return &Session{
		registry: registry,
		table:    table,
		queue:    desc.Queue,
		label:    desc.Label,
		token:    table.NewToken(),
		commands: make([]Command, 0, 64),
		touched:  make(map[gputrack.ResourceID]*gputrack.Resource, 8),
	}
}

// Label returns the session's debug label.
func (s *Session) Label() string { return s.label }

// Len returns the number of commands recorded so far, derived
// synchronization included.
func (s *Session) Len() int { return len(s.commands) }

// Touch declares that the next recorded command accesses a resource as
// described. If the access conflicts with previously recorded work, the
// required barrier and transition commands are emitted into the stream
// immediately, so they precede the dependent command.
//
// Touch fails with ErrSessionClosed after End, and with
// ErrResourceUnavailable when the id is stale, destroyed, or poisoned.
func (s *Session) Touch(id gputrack.ResourceID, access gputrack.AccessDescriptor) error {
	if s.closed {
		return gputrack.ErrSessionClosed
	}
	res, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	access.Queue = s.queue
	access.Resource = id

	req, err := s.table.Record(res, access, s.token)
	if err != nil {
		return err
	}
	s.touched[id] = res
	s.emitRequirement(res, req)
	return nil
}

// emitRequirement appends the commands a requirement translates to: the
// data-hazard barrier first, the layout transition after it.
func (s *Session) emitRequirement(res *gputrack.Resource, req track.SyncRequirement) {
	switch {
	case req.Kind == track.SyncQueueTransfer:
		s.commands = append(s.commands, QueueTransferCommand{
			Resource: res.ID(),
			SrcQueue: req.SrcQueue,
			DstQueue: req.DstQueue,
			Src:      req.SrcStages,
			Dst:      req.DstStages,
			Buffer:   req.Buffer,
			Image:    req.Image,
		})
	case req.Kind != track.SyncNone && req.SrcStages != 0:
		s.commands = append(s.commands, BarrierCommand{
			Resource: res.ID(),
			Src:      req.SrcStages,
			Dst:      req.DstStages,
			Memory:   req.Kind == track.SyncMemoryBarrier,
			Buffer:   req.Buffer,
			Image:    req.Image,
		})
	}
	if req.HasTransition {
		s.commands = append(s.commands, LayoutTransitionCommand{
			Resource: res.ID(),
			Range:    req.Image,
			Old:      req.OldLayout,
			New:      req.NewLayout,
			Src:      req.SrcStages,
			Dst:      req.DstStages,
		})
	}
}

// Record appends a command without declaring any access. Use it for
// commands whose accesses were already declared with Touch.
func (s *Session) Record(cmd Command) error {
	if s.closed {
		return gputrack.ErrSessionClosed
	}
	s.commands = append(s.commands, cmd)
	return nil
}

// CopyBuffer records a buffer-to-buffer copy, declaring the transfer
// read of the source range and the transfer write of the destination
// range.
func (s *Session) CopyBuffer(src, dst gputrack.ResourceID, srcOffset, dstOffset, size uint64) error {
	if err := s.Touch(src, gputrack.AccessDescriptor{
		Buffer: gputrack.BufferRange{Offset: srcOffset, Size: size},
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessRead,
	}); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	if err := s.Touch(dst, gputrack.AccessDescriptor{
		Buffer: gputrack.BufferRange{Offset: dstOffset, Size: size},
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessWrite,
	}); err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	return s.Record(CopyBufferCommand{
		Src: src, Dst: dst,
		SrcOffset: srcOffset, DstOffset: dstOffset, Size: size,
	})
}

// CopyImage records an image-to-image copy, declaring the transfer read
// of the source subresources (in TransferSrc layout) and the transfer
// write of the destination subresources (in TransferDst layout).
func (s *Session) CopyImage(src, dst gputrack.ResourceID, srcRange, dstRange gputrack.ImageRange, extent gputypes.Extent3D) error {
	if err := s.Touch(src, gputrack.AccessDescriptor{
		Image:  srcRange,
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessRead,
		Layout: gputrack.LayoutTransferSrc,
	}); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	if err := s.Touch(dst, gputrack.AccessDescriptor{
		Image:  dstRange,
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessWrite,
		Layout: gputrack.LayoutTransferDst,
	}); err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	return s.Record(CopyImageCommand{
		Src: src, Dst: dst,
		SrcRange: srcRange, DstRange: dstRange,
		Extent: extent,
	})
}

// CopyBufferToImage records a buffer-to-image upload, declaring the
// transfer read of the buffer range and the transfer write of the image
// subresources (in TransferDst layout).
func (s *Session) CopyBufferToImage(src, dst gputrack.ResourceID, srcOffset uint64, bytesPerRow uint32, dstRange gputrack.ImageRange, extent gputypes.Extent3D) error {
	size := uint64(bytesPerRow) * uint64(extent.Height) * uint64(extent.DepthOrArrayLayers)
	if err := s.Touch(src, gputrack.AccessDescriptor{
		Buffer: gputrack.BufferRange{Offset: srcOffset, Size: size},
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessRead,
	}); err != nil {
		return fmt.Errorf("upload source: %w", err)
	}
	if err := s.Touch(dst, gputrack.AccessDescriptor{
		Image:  dstRange,
		Stages: gputrack.StageTransfer,
		Mode:   gputrack.AccessWrite,
		Layout: gputrack.LayoutTransferDst,
	}); err != nil {
		return fmt.Errorf("upload destination: %w", err)
	}
	return s.Record(CopyBufferToImageCommand{
		Src: src, Dst: dst,
		SrcOffset: srcOffset, BytesPerRow: bytesPerRow,
		DstRange: dstRange, Extent: extent,
	})
}

// Dispatch records a compute dispatch after declaring each of its
// accesses in order.
func (s *Session) Dispatch(x, y, z uint32, accesses ...gputrack.AccessDescriptor) error {
	for _, a := range accesses {
		if err := s.Touch(a.Resource, a); err != nil {
			return fmt.Errorf("dispatch access %s: %w", a.Resource, err)
		}
	}
	return s.Record(DispatchCommand{X: x, Y: y, Z: z})
}

// Draw records a draw call after declaring each of its accesses in
// order.
func (s *Session) Draw(draw DrawCommand, accesses ...gputrack.AccessDescriptor) error {
	for _, a := range accesses {
		if err := s.Touch(a.Resource, a); err != nil {
			return fmt.Errorf("draw access %s: %w", a.Resource, err)
		}
	}
	return s.Record(draw)
}

// End freezes the session into an immutable Batch. Further touches and
// records fail with ErrSessionClosed, as does a second End.
func (s *Session) End() (*Batch, error) {
	if s.closed {
		return nil, gputrack.ErrSessionClosed
	}
	s.closed = true
	resources := make([]*gputrack.Resource, 0, len(s.touched))
	for _, res := range s.touched {
		resources = append(resources, res)
	}
	gputrack.Logger().Debug("session finished",
		"label", s.label, "commands", len(s.commands), "resources", len(resources))
	return &Batch{
		label:     s.label,
		queue:     s.queue,
		token:     s.token,
		commands:  s.commands,
		resources: resources,
	}, nil
}

// Discard abandons the session before submission. Recorded commands are
// dropped; nothing was handed to the GPU, so no guard or submission
// state needs undoing. Accesses already folded into the table stay
// until an overlapping write replaces them: the session's token is
// never bound, so they never retire early.
func (s *Session) Discard() {
	s.closed = true
	s.commands = nil
	s.touched = nil
}
