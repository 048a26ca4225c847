package gputrack

import (
	"errors"
	"testing"
)

func TestLinearAllocatorFirstFit(t *testing.T) {
	p := NewLinearAllocator(1024)

	a, err := p.Allocate(256, 16, MemoryDeviceLocal)
	if err != nil {
		t.Fatalf("Allocate a: %v", err)
	}
	if a.Offset != 0 || a.Size != 256 {
		t.Errorf("a = %s, want [0, 256)", a)
	}
	b, err := p.Allocate(256, 16, MemoryDeviceLocal)
	if err != nil {
		t.Fatalf("Allocate b: %v", err)
	}
	if b.Offset != 256 {
		t.Errorf("b.Offset = %d, want 256", b.Offset)
	}

	// Freeing the first block opens a gap that the next fit reuses.
	if err := p.Free(a); err != nil {
		t.Fatalf("Free a: %v", err)
	}
	c, err := p.Allocate(128, 16, MemoryDeviceLocal)
	if err != nil {
		t.Fatalf("Allocate c: %v", err)
	}
	if c.Offset != 0 {
		t.Errorf("c.Offset = %d, want 0 (first fit into freed gap)", c.Offset)
	}
	if p.Used() != 256+128 {
		t.Errorf("Used = %d, want %d", p.Used(), 256+128)
	}
}

func TestLinearAllocatorAlignment(t *testing.T) {
	p := NewLinearAllocator(4096)

	if _, err := p.Allocate(10, 64, MemoryHostVisible); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	b, err := p.Allocate(10, 256, MemoryHostVisible)
	if err != nil {
		t.Fatalf("Allocate aligned: %v", err)
	}
	if b.Offset%256 != 0 {
		t.Errorf("Offset %d not 256-aligned", b.Offset)
	}

	if _, err := p.Allocate(10, 3, MemoryHostVisible); !errors.Is(err, ErrInvalidAlignment) {
		t.Errorf("non-power-of-two align = %v, want ErrInvalidAlignment", err)
	}
	if _, err := p.Allocate(0, 16, MemoryHostVisible); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero size = %v, want ErrInvalidSize", err)
	}
}

func TestLinearAllocatorExhaustion(t *testing.T) {
	p := NewLinearAllocator(512)

	a, err := p.Allocate(512, 1, MemoryDeviceLocal)
	if err != nil {
		t.Fatalf("Allocate full heap: %v", err)
	}
	if _, err := p.Allocate(1, 1, MemoryDeviceLocal); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("over-capacity = %v, want ErrOutOfMemory", err)
	}
	if err := p.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if _, err := p.Allocate(512, 1, MemoryDeviceLocal); err != nil {
		t.Errorf("re-allocate after free: %v", err)
	}
}

func TestLinearAllocatorForeignBlock(t *testing.T) {
	p := NewLinearAllocator(512)
	if err := p.Free(MemoryBlock{Offset: 0, Size: 64}); !errors.Is(err, ErrBlockNotOwned) {
		t.Errorf("Free foreign = %v, want ErrBlockNotOwned", err)
	}

	a, err := p.Allocate(64, 16, MemoryDeviceLocal)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := p.Free(a); !errors.Is(err, ErrBlockNotOwned) {
		t.Errorf("double Free = %v, want ErrBlockNotOwned", err)
	}
}

func TestRegistryWithAllocator(t *testing.T) {
	if _, err := NewRegistryWithAllocator(nil); !errors.Is(err, ErrNilAllocator) {
		t.Fatalf("nil allocator = %v, want ErrNilAllocator", err)
	}

	p := NewLinearAllocator(1 << 20)
	reg, err := NewRegistryWithAllocator(p)
	if err != nil {
		t.Fatalf("NewRegistryWithAllocator: %v", err)
	}

	id, err := reg.CreateBuffer(BufferDescriptor{Label: "backed", Size: 300, Memory: MemoryHostVisible})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	res, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	block := res.Block()
	if block.Size != 300 || block.Kind != MemoryHostVisible {
		t.Errorf("block = %s, want 300-byte HostVisible", block)
	}
	if p.Used() != 300 {
		t.Errorf("Used = %d, want 300", p.Used())
	}

	// Destroy returns the block to the allocator.
	if err := reg.Destroy(id); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if p.Used() != 0 {
		t.Errorf("Used after destroy = %d, want 0", p.Used())
	}
}

func TestRegistryAllocatorExhaustion(t *testing.T) {
	p := NewLinearAllocator(256)
	reg, err := NewRegistryWithAllocator(p)
	if err != nil {
		t.Fatalf("NewRegistryWithAllocator: %v", err)
	}
	if _, err := reg.CreateBuffer(BufferDescriptor{Label: "too big", Size: 1024}); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("CreateBuffer over heap = %v, want ErrOutOfMemory", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len after failed create = %d, want 0", reg.Len())
	}
}
