package gputrack

import "errors"

// Tracking and lifecycle errors.
var (
	// ErrSessionClosed is returned when a touch or command is recorded on a
	// session that has already been finalized with End. This is a programmer
	// error and is never retried by the core.
	ErrSessionClosed = errors.New("gputrack: recording session is closed")

	// ErrResourceUnavailable is returned when an access references a resource
	// that has been destroyed or whose generation no longer matches. The
	// recording session that observed it should be discarded.
	ErrResourceUnavailable = errors.New("gputrack: resource unavailable")

	// ErrResourceInUse is returned when Destroy is called on a resource that
	// is still referenced by at least one pending submission. The caller must
	// wait for the referencing futures to complete and retry.
	ErrResourceInUse = errors.New("gputrack: resource in use by pending submission")

	// ErrDeviceLost is returned when an operation touches a resource that was
	// poisoned by a failed submission. The error is unrecoverable.
	ErrDeviceLost = errors.New("gputrack: device lost")

	// ErrInvalidRange is returned when an access declares a sub-range that
	// lies outside the resource it touches.
	ErrInvalidRange = errors.New("gputrack: access range out of resource bounds")

	// ErrKindMismatch is returned when a buffer access is declared against an
	// image resource or vice versa.
	ErrKindMismatch = errors.New("gputrack: access kind does not match resource kind")

	// ErrInvalidSize is returned when a resource is created with a zero size
	// or extent.
	ErrInvalidSize = errors.New("gputrack: invalid resource size")

	// ErrNilAllocator is returned when a registry that requires backing
	// memory is created without an allocator.
	ErrNilAllocator = errors.New("gputrack: allocator is nil")
)

// Allocation errors.
var (
	// ErrOutOfMemory is returned when the allocator cannot satisfy a request
	// from its remaining free ranges.
	ErrOutOfMemory = errors.New("gputrack: allocator out of memory")

	// ErrInvalidAlignment is returned when an allocation requests an
	// alignment that is not a power of two.
	ErrInvalidAlignment = errors.New("gputrack: alignment must be a power of two")

	// ErrBlockNotOwned is returned when Free is called with a block that was
	// not produced by this allocator or was already freed.
	ErrBlockNotOwned = errors.New("gputrack: memory block not owned by allocator")
)
