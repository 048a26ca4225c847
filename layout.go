package gputrack

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// ImageLayout is the GPU-internal memory arrangement of an image resource.
// Every image-touching command requires a specific layout; when the
// required layout differs from the image's current one, the tracker
// derives a layout transition and records the new layout.
//
// Buffers have no layout; the zero value LayoutUndefined is used wherever
// a layout does not apply.
type ImageLayout uint8

const (
	// LayoutUndefined is the initial layout of a freshly created image.
	// Transitioning away from it discards contents.
	LayoutUndefined ImageLayout = iota
	// LayoutGeneral supports any access at reduced efficiency.
	LayoutGeneral
	// LayoutColorAttachment is required for color attachment output.
	LayoutColorAttachment
	// LayoutDepthStencilAttachment is required for depth/stencil output.
	LayoutDepthStencilAttachment
	// LayoutShaderReadOnly is required for sampled and storage-read use.
	LayoutShaderReadOnly
	// LayoutTransferSrc is required for the source of copy commands.
	LayoutTransferSrc
	// LayoutTransferDst is required for the destination of copy commands.
	LayoutTransferDst
	// LayoutPresent is required for surface presentation.
	LayoutPresent
)

// layoutNames maps ImageLayout values to their string representation.
var layoutNames = [...]string{
	LayoutUndefined:              "Undefined",
	LayoutGeneral:                "General",
	LayoutColorAttachment:        "ColorAttachment",
	LayoutDepthStencilAttachment: "DepthStencilAttachment",
	LayoutShaderReadOnly:         "ShaderReadOnly",
	LayoutTransferSrc:            "TransferSrc",
	LayoutTransferDst:            "TransferDst",
	LayoutPresent:                "Present",
}

// String returns the string representation of an ImageLayout.
func (l ImageLayout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(l))
}

// Usage returns the gputypes.TextureUsage the HAL expects an image to be
// transitioned to for this layout. The wgpu HAL models layouts as usage
// transitions, so this is the vocabulary barrier records are translated
// into by backend/halwgpu.
func (l ImageLayout) Usage() gputypes.TextureUsage {
	switch l {
	case LayoutColorAttachment, LayoutDepthStencilAttachment:
		return gputypes.TextureUsageRenderAttachment
	case LayoutShaderReadOnly:
		return gputypes.TextureUsageTextureBinding
	case LayoutTransferSrc:
		return gputypes.TextureUsageCopySrc
	case LayoutTransferDst, LayoutGeneral, LayoutUndefined, LayoutPresent:
		return gputypes.TextureUsageCopyDst
	default:
		return gputypes.TextureUsageCopyDst
	}
}
