package halwgpu

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gputrack/submit"
)

// FenceSignal reports completion of one HAL submission through a timeline
// fence value. It implements submit.CompletionSignal.
//
// The signal owns the submission's command buffers: once the fence
// reaches the value, they are freed back to the device exactly once.
type FenceSignal struct {
	device hal.Device
	fence  hal.Fence
	value  uint64

	mu      sync.Mutex
	cmdBufs []hal.CommandBuffer
}

var _ submit.CompletionSignal = (*FenceSignal)(nil)

// Signaled reports whether the fence has reached the submission's value,
// without blocking.
func (s *FenceSignal) Signaled() (bool, error) {
	return s.wait(0)
}

// Wait blocks until the fence reaches the submission's value or the
// timeout elapses. A negative timeout waits forever.
func (s *FenceSignal) Wait(timeout time.Duration) (bool, error) {
	if timeout < 0 {
		timeout = time.Duration(math.MaxInt64)
	}
	return s.wait(timeout)
}

func (s *FenceSignal) wait(timeout time.Duration) (bool, error) {
	ok, err := s.device.Wait(s.fence, s.value, timeout)
	if err != nil {
		return false, fmt.Errorf("fence wait at %d: %w", s.value, err)
	}
	if ok {
		s.free()
	}
	return ok, nil
}

// free releases the submission's command buffers back to the device.
func (s *FenceSignal) free() {
	s.mu.Lock()
	bufs := s.cmdBufs
	s.cmdBufs = nil
	s.mu.Unlock()
	for _, cb := range bufs {
		s.device.FreeCommandBuffer(cb)
	}
}
