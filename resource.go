package gputrack

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// ResourceKind discriminates the two resource variants the tracker knows.
type ResourceKind uint8

const (
	// KindBuffer is a linear byte range.
	KindBuffer ResourceKind = iota
	// KindImage is a texture with mip levels, array layers and a layout.
	KindImage
)

// kindNames maps ResourceKind values to their string representation.
var kindNames = [...]string{
	KindBuffer: "Buffer",
	KindImage:  "Image",
}

// String returns the string representation of a ResourceKind.
func (k ResourceKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// ResourceID is a generation-checked handle into a Registry. The low 32
// bits are the arena slot index, the high 32 bits the slot generation.
// A stale id (slot since destroyed and reused) fails resolution with
// ErrResourceUnavailable instead of silently aliasing the new occupant.
//
// The zero value is never a valid id.
type ResourceID uint64

func makeResourceID(index, gen uint32) ResourceID {
	return ResourceID(uint64(gen)<<32 | uint64(index))
}

func (id ResourceID) index() uint32      { return uint32(id) }
func (id ResourceID) generation() uint32 { return uint32(id >> 32) }

// Valid reports whether the id could have been produced by a registry.
func (id ResourceID) Valid() bool { return id.generation() != 0 }

// String returns "res#index@generation" for diagnostics.
func (id ResourceID) String() string {
	return fmt.Sprintf("res#%d@%d", id.index(), id.generation())
}

// BufferDescriptor describes a buffer resource to create.
type BufferDescriptor struct {
	// Label is a debug label carried into logs and error messages.
	Label string

	// Size is the buffer length in bytes. Must be nonzero.
	Size uint64

	// Usage is the HAL usage mask the buffer will be created with.
	Usage gputypes.BufferUsage

	// Memory selects the memory kind backing the buffer.
	Memory MemoryKind
}

// ImageDescriptor describes an image resource to create.
type ImageDescriptor struct {
	// Label is a debug label carried into logs and error messages.
	Label string

	// Format is the texel format of the image.
	Format gputypes.TextureFormat

	// Size is the extent of the top mip level. Width and Height must be
	// nonzero; DepthOrArrayLayers defaults to 1.
	Size gputypes.Extent3D

	// MipLevels is the mip chain length. Defaults to 1.
	MipLevels uint32

	// ArrayLayers is the array layer count. Defaults to 1.
	ArrayLayers uint32

	// Usage is the HAL usage mask the image will be created with.
	Usage gputypes.TextureUsage

	// Memory selects the memory kind backing the image.
	Memory MemoryKind
}

// Resource is one tracked buffer or image. Resources are created and
// owned by a Registry and referenced everywhere else by ResourceID; the
// pointer form is handed out so sessions and futures can reach the guard
// without a registry lookup.
//
// All mutating methods are safe for concurrent use.
type Resource struct {
	id    ResourceID
	kind  ResourceKind
	label string

	// Buffer arm.
	size  uint64
	usage gputypes.BufferUsage

	// Image arm.
	format      gputypes.TextureFormat
	extent      gputypes.Extent3D
	mipLevels   uint32
	arrayLayers uint32
	texUsage    gputypes.TextureUsage

	block MemoryBlock

	mu        sync.Mutex
	layout    ImageLayout
	destroyed bool
	poison    error

	guard Guard
}

// ID returns the resource's registry handle.
func (r *Resource) ID() ResourceID { return r.id }

// Kind returns whether the resource is a buffer or an image.
func (r *Resource) Kind() ResourceKind { return r.kind }

// Label returns the debug label the resource was created with.
func (r *Resource) Label() string { return r.label }

// Size returns the byte length of a buffer resource. Zero for images.
func (r *Resource) Size() uint64 { return r.size }

// Format returns the texel format of an image resource.
func (r *Resource) Format() gputypes.TextureFormat { return r.format }

// Extent returns the top-level extent of an image resource.
func (r *Resource) Extent() gputypes.Extent3D { return r.extent }

// MipLevels returns the mip chain length of an image resource.
func (r *Resource) MipLevels() uint32 { return r.mipLevels }

// ArrayLayers returns the array layer count of an image resource.
func (r *Resource) ArrayLayers() uint32 { return r.arrayLayers }

// BufferUsage returns the HAL usage mask of a buffer resource.
func (r *Resource) BufferUsage() gputypes.BufferUsage { return r.usage }

// TextureUsage returns the HAL usage mask of an image resource.
func (r *Resource) TextureUsage() gputypes.TextureUsage { return r.texUsage }

// Block returns the memory block backing the resource, if any.
func (r *Resource) Block() MemoryBlock { return r.block }

// Guard returns the ownership guard tying the resource's destruction to
// its outstanding submissions.
func (r *Resource) Guard() *Guard { return &r.guard }

// Layout returns the image's current layout. LayoutUndefined for buffers
// and freshly created images.
func (r *Resource) Layout() ImageLayout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layout
}

// SetLayout records the image's layout after a derived transition. It is
// called by the tracking layer when a transition is recorded; applications
// normally never call it.
func (r *Resource) SetLayout(l ImageLayout) {
	r.mu.Lock()
	r.layout = l
	r.mu.Unlock()
}

// Destroyed reports whether the resource has been destroyed.
func (r *Resource) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Poison marks the resource as unusable after a failed submission. Every
// later touch fails with an error wrapping both ErrResourceUnavailable
// and the given cause.
func (r *Resource) Poison(cause error) {
	r.mu.Lock()
	if r.poison == nil {
		r.poison = cause
	}
	r.mu.Unlock()
	Logger().Warn("resource poisoned", "resource", r.id.String(), "label", r.label, "cause", cause)
}

// Poisoned returns the poisoning cause, or nil.
func (r *Resource) Poisoned() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poison
}

// available reports whether the resource can still be touched.
func (r *Resource) available() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.destroyed:
		return fmt.Errorf("%w: %s destroyed", ErrResourceUnavailable, r.id)
	case r.poison != nil:
		return fmt.Errorf("%w: %s: %w", ErrResourceUnavailable, r.id, r.poison)
	}
	return nil
}

// ValidateAccess checks that an access descriptor fits the resource: the
// range kind matches the resource kind and lies within its bounds.
func (r *Resource) ValidateAccess(a AccessDescriptor) error {
	switch r.kind {
	case KindBuffer:
		if a.Image != (ImageRange{}) {
			return fmt.Errorf("%w: image range on buffer %s", ErrKindMismatch, r.id)
		}
		if a.Buffer.Offset >= r.size {
			return fmt.Errorf("%w: offset %d in %d-byte buffer %s", ErrInvalidRange, a.Buffer.Offset, r.size, r.id)
		}
		if a.Buffer.Size != WholeSize && a.Buffer.Offset+a.Buffer.Size > r.size {
			return fmt.Errorf("%w: %s exceeds %d-byte buffer %s", ErrInvalidRange, a.Buffer, r.size, r.id)
		}
	case KindImage:
		if a.Buffer != (BufferRange{}) {
			return fmt.Errorf("%w: buffer range on image %s", ErrKindMismatch, r.id)
		}
		if a.Image.BaseMip >= r.mipLevels {
			return fmt.Errorf("%w: mip %d of %d on %s", ErrInvalidRange, a.Image.BaseMip, r.mipLevels, r.id)
		}
		if a.Image.BaseLayer >= r.arrayLayers {
			return fmt.Errorf("%w: layer %d of %d on %s", ErrInvalidRange, a.Image.BaseLayer, r.arrayLayers, r.id)
		}
		if a.Image.MipCount != RemainingLevels && a.Image.BaseMip+a.Image.MipCount > r.mipLevels {
			return fmt.Errorf("%w: %s exceeds mip chain of %s", ErrInvalidRange, a.Image, r.id)
		}
		if a.Image.LayerCount != RemainingLevels && a.Image.BaseLayer+a.Image.LayerCount > r.arrayLayers {
			return fmt.Errorf("%w: %s exceeds layers of %s", ErrInvalidRange, a.Image, r.id)
		}
	}
	return nil
}

// registrySlot is one arena slot. Generations start at 1 and advance on
// every destroy, so ids referencing freed slots can never resolve again.
type registrySlot struct {
	res *Resource
	gen uint32
}

// Registry is the arena owning every tracked resource. It replaces a
// global resource table: each device context creates its own Registry and
// passes it explicitly to sessions and queues.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	slots []registrySlot
	free  []uint32

	alloc Allocator
}

// NewRegistry creates an empty resource registry with no backing
// allocator. Resources created through it carry zero MemoryBlocks; use
// NewRegistryWithAllocator when resources need real memory behind them.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewRegistryWithAllocator creates a registry that obtains a MemoryBlock
// from alloc for every created resource and returns it on destroy.
func NewRegistryWithAllocator(alloc Allocator) (*Registry, error) {
	if alloc == nil {
		return nil, ErrNilAllocator
	}
	return &Registry{alloc: alloc}, nil
}

// CreateBuffer creates a buffer resource and returns its id.
func (g *Registry) CreateBuffer(desc BufferDescriptor) (ResourceID, error) {
	if desc.Size == 0 {
		return 0, fmt.Errorf("%w: buffer %q", ErrInvalidSize, desc.Label)
	}
	res := &Resource{
		kind:  KindBuffer,
		label: desc.Label,
		size:  desc.Size,
		usage: desc.Usage,
	}
	if g.alloc != nil {
		block, err := g.alloc.Allocate(desc.Size, bufferAlignment, desc.Memory)
		if err != nil {
			return 0, fmt.Errorf("allocate buffer %q: %w", desc.Label, err)
		}
		res.block = block
	}
	return g.insert(res), nil
}

// CreateImage creates an image resource and returns its id. The image
// starts in LayoutUndefined.
func (g *Registry) CreateImage(desc ImageDescriptor) (ResourceID, error) {
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return 0, fmt.Errorf("%w: image %q", ErrInvalidSize, desc.Label)
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.ArrayLayers == 0 {
		desc.ArrayLayers = 1
	}
	if desc.Size.DepthOrArrayLayers == 0 {
		desc.Size.DepthOrArrayLayers = 1
	}
	res := &Resource{
		kind:        KindImage,
		label:       desc.Label,
		format:      desc.Format,
		extent:      desc.Size,
		mipLevels:   desc.MipLevels,
		arrayLayers: desc.ArrayLayers,
		texUsage:    desc.Usage,
		layout:      LayoutUndefined,
	}
	if g.alloc != nil {
		block, err := g.alloc.Allocate(imageByteSize(desc), imageAlignment, desc.Memory)
		if err != nil {
			return 0, fmt.Errorf("allocate image %q: %w", desc.Label, err)
		}
		res.block = block
	}
	return g.insert(res), nil
}

func (g *Registry) insert(res *Resource) ResourceID {
	g.mu.Lock()
	defer g.mu.Unlock()
	var index uint32
	if n := len(g.free); n > 0 {
		index = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.slots = append(g.slots, registrySlot{gen: 1})
		index = uint32(len(g.slots) - 1)
	}
	slot := &g.slots[index]
	slot.res = res
	res.id = makeResourceID(index, slot.gen)
	Logger().Debug("resource created",
		"resource", res.id.String(), "kind", res.kind.String(), "label", res.label)
	return res.id
}

// Get resolves an id to its resource. It fails with ErrResourceUnavailable
// when the id is stale, destroyed, or was never issued by this registry.
func (g *Registry) Get(id ResourceID) (*Resource, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res := g.lookupLocked(id)
	if res == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceUnavailable, id)
	}
	if err := res.available(); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Registry) lookupLocked(id ResourceID) *Resource {
	index := id.index()
	if !id.Valid() || int(index) >= len(g.slots) {
		return nil
	}
	slot := &g.slots[index]
	if slot.gen != id.generation() || slot.res == nil {
		return nil
	}
	return slot.res
}

// CanDestroy reports whether Destroy would succeed right now: the id
// resolves and no pending submission references the resource.
func (g *Registry) CanDestroy(id ResourceID) bool {
	g.mu.RLock()
	res := g.lookupLocked(id)
	g.mu.RUnlock()
	return res != nil && res.guard.CanDestroy()
}

// Destroy removes a resource from the registry and returns its memory to
// the allocator. It fails with ErrResourceInUse while any submission
// referencing the resource is still pending; the caller must wait for the
// referencing futures and retry.
func (g *Registry) Destroy(id ResourceID) error {
	g.mu.Lock()
	res := g.lookupLocked(id)
	if res == nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrResourceUnavailable, id)
	}
	if !res.guard.CanDestroy() {
		g.mu.Unlock()
		Logger().Warn("destroy rejected, resource in use",
			"resource", id.String(), "label", res.label, "pending", res.guard.Pending())
		return fmt.Errorf("%w: %s has %d pending submission(s)", ErrResourceInUse, id, res.guard.Pending())
	}
	index := id.index()
	slot := &g.slots[index]
	slot.res = nil
	slot.gen++
	g.free = append(g.free, index)
	g.mu.Unlock()

	res.mu.Lock()
	res.destroyed = true
	res.mu.Unlock()

	if g.alloc != nil && res.block != (MemoryBlock{}) {
		if err := g.alloc.Free(res.block); err != nil {
			Logger().Warn("free backing memory", "resource", id.String(), "err", err)
		}
	}
	Logger().Debug("resource destroyed", "resource", id.String(), "label", res.label)
	return nil
}

// Len returns the number of live resources.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.slots) - len(g.free)
}

// Buffer and image placement alignments requested from the allocator.
// 256 matches the copy pitch alignment WebGPU and DX12 require.
const (
	bufferAlignment = 256
	imageAlignment  = 4096
)

// imageByteSize is a conservative upper bound of an image's memory need:
// a full mip chain of the top-level extent per array layer at 4 bytes per
// texel. The allocator boundary owns the real footprint; this is only
// used when a registry carries a default allocator.
func imageByteSize(desc ImageDescriptor) uint64 {
	texels := uint64(desc.Size.Width) * uint64(desc.Size.Height) * uint64(desc.Size.DepthOrArrayLayers)
	// Each mip level adds at most a third of the base size.
	size := texels * 4
	size += size / 3
	return size * uint64(desc.ArrayLayers)
}
