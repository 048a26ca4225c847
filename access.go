package gputrack

import (
	"fmt"
	"strings"
)

// StageMask is a set of pipeline stages an access executes in. Masks
// combine with bitwise OR; a derived barrier waits on the union of the
// source stages of every conflicting prior access.
type StageMask uint32

const (
	// StageHost covers host-side reads and writes of mapped memory.
	StageHost StageMask = 1 << iota
	// StageTransfer covers copy and clear commands.
	StageTransfer
	// StageVertexInput covers index and vertex buffer fetch.
	StageVertexInput
	// StageVertexShader covers vertex shader execution.
	StageVertexShader
	// StageFragmentShader covers fragment shader execution.
	StageFragmentShader
	// StageEarlyDepth covers depth/stencil tests before fragment shading.
	StageEarlyDepth
	// StageLateDepth covers depth/stencil tests after fragment shading.
	StageLateDepth
	// StageColorOutput covers color attachment writes and blending.
	StageColorOutput
	// StageComputeShader covers compute shader execution.
	StageComputeShader

	stageMax
)

// StageAllGraphics is every stage of the graphics pipeline.
const StageAllGraphics = StageVertexInput | StageVertexShader | StageFragmentShader |
	StageEarlyDepth | StageLateDepth | StageColorOutput

// StageAll is every stage the tracker knows about.
const StageAll = stageMax - 1

// stageNames maps single-bit masks to their names, in bit order.
var stageNames = []string{
	"Host",
	"Transfer",
	"VertexInput",
	"VertexShader",
	"FragmentShader",
	"EarlyDepth",
	"LateDepth",
	"ColorOutput",
	"ComputeShader",
}

// String returns the stage names joined with "|", or "None" for the zero
// mask. A zero source mask on a barrier means the barrier waits on nothing
// (top of pipe).
func (m StageMask) String() string {
	if m == 0 {
		return "None"
	}
	var parts []string
	for i, name := range stageNames {
		if m&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	if extra := m &^ StageAll; extra != 0 {
		parts = append(parts, fmt.Sprintf("Unknown(0x%x)", uint32(extra)))
	}
	return strings.Join(parts, "|")
}

// AccessMode describes how an access touches resource contents.
type AccessMode uint8

const (
	// AccessRead only observes resource contents.
	AccessRead AccessMode = iota
	// AccessWrite replaces resource contents in the touched range.
	AccessWrite
	// AccessReadWrite both observes and modifies resource contents.
	AccessReadWrite
)

// accessModeNames maps AccessMode values to their string representation.
var accessModeNames = [...]string{
	AccessRead:      "Read",
	AccessWrite:     "Write",
	AccessReadWrite: "ReadWrite",
}

// String returns the string representation of an AccessMode.
func (m AccessMode) String() string {
	if int(m) < len(accessModeNames) {
		return accessModeNames[m]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(m))
}

// Reads reports whether the access observes prior contents.
func (m AccessMode) Reads() bool {
	return m == AccessRead || m == AccessReadWrite
}

// Writes reports whether the access modifies contents.
func (m AccessMode) Writes() bool {
	return m == AccessWrite || m == AccessReadWrite
}

// QueueID identifies a hardware execution queue. Accesses recorded for
// different queues never synchronize with a plain barrier; the resolver
// derives a queue-ownership transfer instead.
type QueueID uint32

// AccessDescriptor describes a single resource touch: which resource,
// which sub-range, in which pipeline stages, whether it reads or writes,
// and (for images) the layout the touching command requires.
//
// Exactly one of Buffer or Image is meaningful, matching the kind of the
// touched resource. The zero value of the other is ignored.
type AccessDescriptor struct {
	// Resource is the touched resource. Filled in by Session.Touch when the
	// descriptor is passed there with a separate id argument.
	Resource ResourceID

	// Buffer is the byte range touched on a buffer resource.
	Buffer BufferRange

	// Image is the subresource selection touched on an image resource.
	Image ImageRange

	// Stages is the set of pipeline stages performing the access.
	Stages StageMask

	// Mode is the read/write behavior of the access.
	Mode AccessMode

	// Layout is the image layout the touching command requires. Ignored for
	// buffers. LayoutUndefined means the access has no layout requirement.
	Layout ImageLayout

	// Queue is the execution queue the access is recorded for.
	Queue QueueID
}

// Overlaps reports whether two accesses touch at least one common byte or
// subresource. Accesses on different resources never overlap.
func (a AccessDescriptor) Overlaps(b AccessDescriptor) bool {
	if a.Resource != b.Resource {
		return false
	}
	if a.Buffer.Overlaps(b.Buffer) {
		return true
	}
	return a.Image.Overlaps(b.Image)
}

// String returns a compact description for diagnostics and logs.
func (a AccessDescriptor) String() string {
	return fmt.Sprintf("%s %s on %s stages=%s", a.Mode, rangeString(a), a.Resource, a.Stages)
}

func rangeString(a AccessDescriptor) string {
	if a.Image != (ImageRange{}) {
		return a.Image.String()
	}
	return a.Buffer.String()
}
