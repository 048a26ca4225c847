package gputrack

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryKind selects the heap a resource's backing memory comes from.
type MemoryKind uint8

const (
	// MemoryDeviceLocal is fast GPU-only memory.
	MemoryDeviceLocal MemoryKind = iota
	// MemoryHostVisible is mappable memory for uploads and readback.
	MemoryHostVisible
	// MemoryHostCached is mappable memory with host-side caching, for
	// readback-heavy use.
	MemoryHostCached
)

// memoryKindNames maps MemoryKind values to their string representation.
var memoryKindNames = [...]string{
	MemoryDeviceLocal: "DeviceLocal",
	MemoryHostVisible: "HostVisible",
	MemoryHostCached:  "HostCached",
}

// String returns the string representation of a MemoryKind.
func (k MemoryKind) String() string {
	if int(k) < len(memoryKindNames) {
		return memoryKindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// MemoryBlock is a typed slice of allocator-owned memory backing one
// resource. The tracker never dereferences it; it only carries the block
// between Allocate and Free.
type MemoryBlock struct {
	// Offset is the byte offset of the block within its heap.
	Offset uint64

	// Size is the byte length of the block.
	Size uint64

	// Kind is the heap the block was allocated from.
	Kind MemoryKind
}

// String returns "[offset, offset+size) kind" for diagnostics.
func (b MemoryBlock) String() string {
	return fmt.Sprintf("[%d, %d) %s", b.Offset, b.Offset+b.Size, b.Kind)
}

// Allocator is the memory boundary of the tracking core. Allocation
// strategy (pooling, budgets, defragmentation) lives behind it; the core
// only consumes typed blocks.
type Allocator interface {
	// Allocate returns a block of at least size bytes aligned to align.
	// align must be a power of two.
	Allocate(size, align uint64, kind MemoryKind) (MemoryBlock, error)

	// Free returns a previously allocated block. Freeing a block the
	// allocator does not own fails with ErrBlockNotOwned.
	Free(MemoryBlock) error
}

// LinearAllocator is a first-fit free-range allocator over a single heap
// of fixed size. It keeps its live allocations sorted by offset and
// places new blocks in the first aligned gap that fits.
//
// It is the in-tree default used by tests and small device contexts;
// production contexts plug in their own Allocator.
//
// LinearAllocator is safe for concurrent use.
type LinearAllocator struct {
	mu     sync.Mutex
	size   uint64
	allocs []MemoryBlock // sorted by Offset
}

// NewLinearAllocator creates an allocator over a heap of size bytes.
func NewLinearAllocator(size uint64) *LinearAllocator {
	return &LinearAllocator{size: size}
}

// alignUp rounds v up to the next multiple of align (a power of two).
func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// Allocate implements Allocator using first-fit placement.
func (p *LinearAllocator) Allocate(size, align uint64, kind MemoryKind) (MemoryBlock, error) {
	if size == 0 {
		return MemoryBlock{}, ErrInvalidSize
	}
	if align == 0 || align&(align-1) != 0 {
		return MemoryBlock{}, fmt.Errorf("%w: %d", ErrInvalidAlignment, align)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cursor := uint64(0)
	insert := len(p.allocs)
	found := false
	var offset uint64
	for i, a := range p.allocs {
		lo := alignUp(cursor, align)
		if a.Offset >= lo && a.Offset-lo >= size {
			offset, insert, found = lo, i, true
			break
		}
		cursor = a.Offset + a.Size
	}
	if !found {
		lo := alignUp(cursor, align)
		if lo > p.size || p.size-lo < size {
			return MemoryBlock{}, fmt.Errorf("%w: %d bytes requested, heap %d", ErrOutOfMemory, size, p.size)
		}
		offset = lo
	}

	block := MemoryBlock{Offset: offset, Size: size, Kind: kind}
	p.allocs = append(p.allocs, MemoryBlock{})
	copy(p.allocs[insert+1:], p.allocs[insert:])
	p.allocs[insert] = block
	return block, nil
}

// Free implements Allocator.
func (p *LinearAllocator) Free(block MemoryBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := sort.Search(len(p.allocs), func(i int) bool {
		return p.allocs[i].Offset >= block.Offset
	})
	if i >= len(p.allocs) || p.allocs[i] != block {
		return fmt.Errorf("%w: %s", ErrBlockNotOwned, block)
	}
	p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
	return nil
}

// Used returns the number of live bytes allocated.
func (p *LinearAllocator) Used() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var used uint64
	for _, a := range p.allocs {
		used += a.Size
	}
	return used
}

// Len returns the number of live allocations.
func (p *LinearAllocator) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allocs)
}
