// Package gputrack implements automatic resource-access tracking and
// synchronization derivation for explicit GPU APIs.
//
// Explicit APIs such as the gogpu/wgpu HAL require the caller to declare
// every cross-command data dependency by hand: pipeline barriers between
// overlapping reads and writes, layout transitions before an image is used
// in a new way, and fences before a resource may be destroyed. Getting any
// of these wrong is undefined behavior on the GPU. gputrack removes that
// burden: every read or write a recorded command performs on a buffer or
// image is declared once, and the tracking engine derives the minimal
// correct barrier, transition, or queue-ownership transfer automatically.
//
// # Architecture
//
// The module is organized bottom-up:
//
//   - gputrack (this package): the resource and access model. A Registry
//     arena owns Buffer and Image resources addressed by generation-checked
//     ResourceIDs. AccessDescriptor values describe a single touch: the
//     sub-range, pipeline stages, access mode, and (for images) the
//     required layout.
//   - track: the resource state table and dependency resolver. Given the
//     recorded history of a resource and an incoming access, it decides
//     whether synchronization is needed and produces the concrete barrier
//     parameters.
//   - recording: the command recording session. Touch declarations are
//     interleaved with command emission; required barriers are inserted
//     into the command stream before the dependent command.
//   - submit: submission futures and queue submission. A Future tracks the
//     completion of a submitted batch and keeps every touched resource
//     alive until the GPU is done with it.
//   - backend/halwgpu: the native consumer of the emitted barrier
//     records, translating them into gogpu/wgpu HAL calls through the
//     Backend interface defined in recording.
//
// # Example
//
//	reg := gputrack.NewRegistry()
//	buf, _ := reg.CreateBuffer(gputrack.BufferDescriptor{Label: "verts", Size: 1024})
//
//	table := track.NewTable()
//	sess := recording.NewSession(reg, table, recording.SessionDescriptor{Label: "upload"})
//	sess.Touch(buf, gputrack.AccessDescriptor{
//	    Buffer: gputrack.BufferRange{Offset: 0, Size: 1024},
//	    Stages: gputrack.StageTransfer,
//	    Mode:   gputrack.AccessWrite,
//	})
//	batch, _ := sess.End()
//
//	fut, _ := queue.Submit(batch, signal)
//	fut.Wait(time.Second)
//	reg.Destroy(buf) // fails with ErrResourceInUse until fut completes
//
// Two reads never synchronize against each other, accesses to disjoint
// sub-ranges of the same resource never synchronize, and a resource can
// never be destroyed while a pending submission still references it.
package gputrack
