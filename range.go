package gputrack

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputrack/internal/interval"
)

// WholeSize selects the remainder of a buffer from the range offset to the
// end of the buffer.
const WholeSize = ^uint64(0)

// RemainingLevels selects every mip level or array layer from the base to
// the last one the image has.
const RemainingLevels = ^uint32(0)

// BufferRange is the byte interval of a buffer touched by one access.
// A Size of WholeSize extends the range to the end of the buffer.
type BufferRange struct {
	Offset uint64
	Size   uint64
}

// WholeBuffer returns the range covering an entire buffer.
func WholeBuffer() BufferRange {
	return BufferRange{Offset: 0, Size: WholeSize}
}

// span converts the range to a half-open interval.
func (r BufferRange) span() interval.Span {
	return interval.Make(r.Offset, r.Size)
}

// Overlaps reports whether r and o share at least one byte.
func (r BufferRange) Overlaps(o BufferRange) bool {
	return r.span().Overlaps(o.span())
}

// Intersect returns the common bytes of r and o. The boolean is false if
// the ranges are disjoint.
func (r BufferRange) Intersect(o BufferRange) (BufferRange, bool) {
	s := r.span().Intersect(o.span())
	if s.Empty() {
		return BufferRange{}, false
	}
	return BufferRange{Offset: s.Lo, Size: s.Len()}, true
}

// Cover returns the smallest range containing both r and o.
func (r BufferRange) Cover(o BufferRange) BufferRange {
	s := r.span().Cover(o.span())
	return BufferRange{Offset: s.Lo, Size: s.Len()}
}

// Contains reports whether o lies entirely within r.
func (r BufferRange) Contains(o BufferRange) bool {
	return r.span().Contains(o.span())
}

// String returns "bytes [lo, hi)" for diagnostics.
func (r BufferRange) String() string {
	if r.Size == WholeSize {
		return fmt.Sprintf("bytes [%d, end)", r.Offset)
	}
	return fmt.Sprintf("bytes [%d, %d)", r.Offset, r.Offset+r.Size)
}

// ImageRange is the subresource selection of an image touched by one
// access: a rectangle of mip levels and array layers plus an aspect.
// MipCount or LayerCount of RemainingLevels extends the selection to the
// last level or layer of the image.
type ImageRange struct {
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
	Aspect     gputypes.TextureAspect
}

// WholeImage returns the selection covering every subresource of an image.
func WholeImage() ImageRange {
	return ImageRange{
		MipCount:   RemainingLevels,
		LayerCount: RemainingLevels,
		Aspect:     gputypes.TextureAspectAll,
	}
}

func levelSpan(base, count uint32) interval.Span {
	if count == RemainingLevels {
		return interval.Make(uint64(base), interval.MaxLen)
	}
	return interval.Make(uint64(base), uint64(count))
}

// aspectsOverlap reports whether two aspect selections can touch the same
// planes. TextureAspectAll intersects every non-empty selection.
func aspectsOverlap(a, b gputypes.TextureAspect) bool {
	if a == gputypes.TextureAspectAll || b == gputypes.TextureAspectAll {
		return true
	}
	return a == b
}

// Overlaps reports whether r and o select at least one common subresource.
func (r ImageRange) Overlaps(o ImageRange) bool {
	if !aspectsOverlap(r.Aspect, o.Aspect) {
		return false
	}
	return levelSpan(r.BaseMip, r.MipCount).Overlaps(levelSpan(o.BaseMip, o.MipCount)) &&
		levelSpan(r.BaseLayer, r.LayerCount).Overlaps(levelSpan(o.BaseLayer, o.LayerCount))
}

// Intersect returns the common subresources of r and o. The boolean is
// false if the selections are disjoint. The narrower of the two aspects
// is kept.
func (r ImageRange) Intersect(o ImageRange) (ImageRange, bool) {
	if !r.Overlaps(o) {
		return ImageRange{}, false
	}
	mips := levelSpan(r.BaseMip, r.MipCount).Intersect(levelSpan(o.BaseMip, o.MipCount))
	layers := levelSpan(r.BaseLayer, r.LayerCount).Intersect(levelSpan(o.BaseLayer, o.LayerCount))
	aspect := r.Aspect
	if aspect == gputypes.TextureAspectAll {
		aspect = o.Aspect
	}
	return ImageRange{
		BaseMip:    uint32(mips.Lo),
		MipCount:   clampCount(mips.Len()),
		BaseLayer:  uint32(layers.Lo),
		LayerCount: clampCount(layers.Len()),
		Aspect:     aspect,
	}, true
}

// Cover returns the smallest selection containing both r and o.
// The aspect widens to TextureAspectAll when the inputs differ.
func (r ImageRange) Cover(o ImageRange) ImageRange {
	mips := levelSpan(r.BaseMip, r.MipCount).Cover(levelSpan(o.BaseMip, o.MipCount))
	layers := levelSpan(r.BaseLayer, r.LayerCount).Cover(levelSpan(o.BaseLayer, o.LayerCount))
	aspect := r.Aspect
	if o.Aspect != r.Aspect {
		aspect = gputypes.TextureAspectAll
	}
	return ImageRange{
		BaseMip:    uint32(mips.Lo),
		MipCount:   clampCount(mips.Len()),
		BaseLayer:  uint32(layers.Lo),
		LayerCount: clampCount(layers.Len()),
		Aspect:     aspect,
	}
}

func clampCount(n uint64) uint32 {
	if n >= uint64(RemainingLevels) {
		return RemainingLevels
	}
	return uint32(n)
}

// Contains reports whether o lies entirely within r. The aspect covers o
// when it is equal or TextureAspectAll.
func (r ImageRange) Contains(o ImageRange) bool {
	if r.Aspect != gputypes.TextureAspectAll && r.Aspect != o.Aspect {
		return false
	}
	return levelSpan(r.BaseMip, r.MipCount).Contains(levelSpan(o.BaseMip, o.MipCount)) &&
		levelSpan(r.BaseLayer, r.LayerCount).Contains(levelSpan(o.BaseLayer, o.LayerCount))
}

// String returns "mips [a,b) layers [c,d)" for diagnostics.
func (r ImageRange) String() string {
	return fmt.Sprintf("mips %s layers %s",
		levelString(r.BaseMip, r.MipCount), levelString(r.BaseLayer, r.LayerCount))
}

func levelString(base, count uint32) string {
	if count == RemainingLevels {
		return fmt.Sprintf("[%d, end)", base)
	}
	return fmt.Sprintf("[%d, %d)", base, base+count)
}
