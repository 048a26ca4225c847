package halwgpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
)

// Queue errors.
var (
	// ErrNilQueue is returned when creating a queue without a HAL queue.
	ErrNilQueue = errors.New("halwgpu: HAL queue is nil")

	// ErrNilBackend is returned when creating a queue without a backend.
	ErrNilBackend = errors.New("halwgpu: backend is nil")
)

// Queue submits the backend's finished command buffers to a HAL queue
// behind a monotonically increasing timeline fence.
//
// Queue is safe for concurrent use.
type Queue struct {
	device  hal.Device
	queue   hal.Queue
	backend *Backend
	fence   hal.Fence
	value   atomic.Uint64
}

// NewQueue creates a queue over the backend's device. It owns a fence
// for the queue's timeline; call Destroy to release it.
func NewQueue(queue hal.Queue, backend *Backend) (*Queue, error) {
	if queue == nil {
		return nil, ErrNilQueue
	}
	if backend == nil {
		return nil, ErrNilBackend
	}
	fence, err := backend.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	return &Queue{
		device:  backend.device,
		queue:   queue,
		backend: backend,
		fence:   fence,
	}, nil
}

// Submit hands every command buffer the backend has finished since the
// last Submit to the HAL queue, signaling the next timeline value. The
// returned FenceSignal reports completion and frees the command buffers
// once it fires; wire it into submit.Queue.Submit.
//
// A submission with no encoded HAL work still advances the timeline so
// its signal fires in order.
func (q *Queue) Submit() (*FenceSignal, error) {
	cmdBufs := q.backend.take()
	value := q.value.Add(1)
	if err := q.queue.Submit(cmdBufs, q.fence, value); err != nil {
		for _, cb := range cmdBufs {
			q.device.FreeCommandBuffer(cb)
		}
		return nil, fmt.Errorf("submit at %d: %w", value, err)
	}
	return &FenceSignal{
		device:  q.device,
		fence:   q.fence,
		value:   value,
		cmdBufs: cmdBufs,
	}, nil
}

// Destroy releases the queue's fence. In-flight signals must have fired
// before the fence is destroyed.
func (q *Queue) Destroy() {
	q.device.DestroyFence(q.fence)
}
