// Package halwgpu translates recorded synchronization streams into
// gogpu/wgpu HAL calls.
//
// The tracking core derives barriers, layout transitions, and copies as
// opaque records; this package replays them onto a hal.CommandEncoder.
// The wgpu HAL models image layouts as usage transitions, so layout
// transition records become TransitionTextures calls. Buffer execution
// and memory barriers have no HAL equivalent — the wgpu HAL orders
// same-queue buffer accesses itself — so barrier records are logged and
// dropped. Dispatch and draw records are ordering markers: the embedding
// renderer issues the actual pipeline work, so they are counted but not
// translated.
//
// A Backend needs a live hal.Device, so it cannot self-register; the
// embedder closes over the device:
//
//	be, _ := halwgpu.New(device)
//	recording.Register("halwgpu", func() recording.Backend { return be })
package halwgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gputrack"
	"github.com/gogpu/gputrack/recording"
)

// Backend errors.
var (
	// ErrNilDevice is returned when creating a backend without a HAL device.
	ErrNilDevice = errors.New("halwgpu: HAL device is nil")

	// ErrNotBound is returned when a replayed command references a
	// resource id with no bound HAL handle.
	ErrNotBound = errors.New("halwgpu: resource has no bound HAL handle")

	// ErrNotEncoding is returned when a command arrives outside a
	// Begin/End pair.
	ErrNotEncoding = errors.New("halwgpu: no batch in progress")

	// ErrAlreadyEncoding is returned when Begin is called twice without
	// an intervening End.
	ErrAlreadyEncoding = errors.New("halwgpu: batch already in progress")

	// ErrUnsupported is returned for copy directions the HAL command
	// encoder does not expose. Image-to-image and buffer-to-image copies
	// have no encoder operation in this HAL revision; uploads go through
	// host writes instead.
	ErrUnsupported = errors.New("halwgpu: operation not supported by the HAL command encoder")
)

// Backend replays recorded batches onto a hal.CommandEncoder.
//
// Resource ids are opaque to the HAL, so the embedder binds each tracked
// id to its HAL handle with BindBuffer/BindTexture before replaying
// batches that touch it. The encoder is created lazily on the first
// command that needs one, so a batch of pure ordering records produces
// no HAL work at all.
//
// Backend is safe for concurrent use, but a single batch replay must not
// be interleaved with another.
type Backend struct {
	mu     sync.Mutex
	device hal.Device

	buffers  map[gputrack.ResourceID]hal.Buffer
	textures map[gputrack.ResourceID]hal.Texture

	encoder  hal.CommandEncoder
	encoding bool
	label    string

	// finished accumulates command buffers across End calls until the
	// queue takes them at submission.
	finished []hal.CommandBuffer
}

var _ recording.Backend = (*Backend)(nil)

// New creates a backend over the given HAL device.
func New(device hal.Device) (*Backend, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &Backend{
		device:   device,
		buffers:  make(map[gputrack.ResourceID]hal.Buffer),
		textures: make(map[gputrack.ResourceID]hal.Texture),
	}, nil
}

// BindBuffer associates a tracked resource id with its HAL buffer.
// Rebinding an id replaces the previous handle.
func (b *Backend) BindBuffer(id gputrack.ResourceID, buf hal.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffers[id] = buf
}

// BindTexture associates a tracked resource id with its HAL texture.
// Rebinding an id replaces the previous handle.
func (b *Backend) BindTexture(id gputrack.ResourceID, tex hal.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.textures[id] = tex
}

// Unbind removes any HAL handle bound to the id. The handle itself is
// not destroyed; its lifetime belongs to the embedder.
func (b *Backend) Unbind(id gputrack.ResourceID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buffers, id)
	delete(b.textures, id)
}

// buffer returns the HAL buffer bound to id. The caller holds b.mu.
func (b *Backend) buffer(id gputrack.ResourceID) (hal.Buffer, error) {
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %s", ErrNotBound, id)
	}
	return buf, nil
}

// texture returns the HAL texture bound to id. The caller holds b.mu.
func (b *Backend) texture(id gputrack.ResourceID) (hal.Texture, error) {
	tex, ok := b.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %s", ErrNotBound, id)
	}
	return tex, nil
}

// ensureEncoder creates the batch's command encoder on first need. The
// caller holds b.mu and has checked b.encoding.
func (b *Backend) ensureEncoder() (hal.CommandEncoder, error) {
	if b.encoder != nil {
		return b.encoder, nil
	}
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: b.label,
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(b.label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	b.encoder = encoder
	return encoder, nil
}

// Begin starts a batch. The encoder is not created until a command
// actually needs HAL work.
func (b *Backend) Begin(label string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoding {
		return ErrAlreadyEncoding
	}
	b.encoding = true
	b.label = label
	return nil
}

// End finishes the batch. When HAL work was encoded, the finished
// command buffer is retained for the next Submit; a batch of pure
// ordering records ends without producing one.
func (b *Backend) End() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	b.encoding = false
	if b.encoder == nil {
		return nil
	}
	encoder := b.encoder
	b.encoder = nil
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	b.finished = append(b.finished, cmdBuf)
	return nil
}

// take drains the finished command buffers for submission.
func (b *Backend) take() []hal.CommandBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	bufs := b.finished
	b.finished = nil
	return bufs
}

// Barrier logs a buffer/image dependency record. Same-queue execution
// and memory ordering is implicit in the HAL command stream, so no call
// is issued.
func (b *Backend) Barrier(cmd recording.BarrierCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	gputrack.Logger().Debug("barrier absorbed by HAL ordering",
		"resource", cmd.Resource, "src", cmd.Src.String(), "dst", cmd.Dst.String(),
		"memory", cmd.Memory)
	return nil
}

// Transition replays a layout transition as a HAL usage transition.
func (b *Backend) Transition(cmd recording.LayoutTransitionCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	tex, err := b.texture(cmd.Resource)
	if err != nil {
		return err
	}
	encoder, err := b.ensureEncoder()
	if err != nil {
		return err
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: cmd.Old.Usage(),
			NewUsage: cmd.New.Usage(),
		},
	}})
	return nil
}

// QueueTransfer logs an ownership transfer record. The HAL exposes a
// single queue, so the transfer is tracking metadata with no HAL call.
func (b *Backend) QueueTransfer(cmd recording.QueueTransferCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	gputrack.Logger().Debug("queue transfer on single-queue HAL",
		"resource", cmd.Resource, "srcQueue", cmd.SrcQueue, "dstQueue", cmd.DstQueue)
	return nil
}

// CopyBuffer replays a buffer copy.
func (b *Backend) CopyBuffer(cmd recording.CopyBufferCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	src, err := b.buffer(cmd.Src)
	if err != nil {
		return err
	}
	dst, err := b.buffer(cmd.Dst)
	if err != nil {
		return err
	}
	encoder, err := b.ensureEncoder()
	if err != nil {
		return err
	}
	encoder.CopyBufferToBuffer(src, dst, []hal.BufferCopy{{
		SrcOffset: cmd.SrcOffset,
		DstOffset: cmd.DstOffset,
		Size:      cmd.Size,
	}})
	return nil
}

// CopyImage is not expressible on this HAL revision's encoder.
func (b *Backend) CopyImage(cmd recording.CopyImageCommand) error {
	return fmt.Errorf("copy image %s -> %s: %w", cmd.Src, cmd.Dst, ErrUnsupported)
}

// CopyBufferToImage is not expressible on this HAL revision's encoder.
func (b *Backend) CopyBufferToImage(cmd recording.CopyBufferToImageCommand) error {
	return fmt.Errorf("copy buffer %s -> image %s: %w", cmd.Src, cmd.Dst, ErrUnsupported)
}

// Dispatch counts a compute marker. The embedding renderer owns pipeline
// state and issues the real pass.
func (b *Backend) Dispatch(cmd recording.DispatchCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	gputrack.Logger().Debug("dispatch marker", "x", cmd.X, "y", cmd.Y, "z", cmd.Z)
	return nil
}

// Draw counts a draw marker. The embedding renderer owns pipeline state
// and issues the real pass.
func (b *Backend) Draw(cmd recording.DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.encoding {
		return ErrNotEncoding
	}
	gputrack.Logger().Debug("draw marker",
		"vertices", cmd.VertexCount, "instances", cmd.InstanceCount)
	return nil
}
