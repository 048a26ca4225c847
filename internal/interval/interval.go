// Package interval provides half-open interval arithmetic for sub-range
// overlap testing on buffers (byte ranges) and images (mip/layer ranges).
package interval

// Span is a half-open interval [Lo, Hi).
type Span struct {
	Lo, Hi uint64
}

// Make builds a span from an offset and a length. A length of MaxLen
// extends the span to the end of the addressable range.
func Make(offset, length uint64) Span {
	if length == MaxLen || offset > MaxLen-length {
		return Span{Lo: offset, Hi: MaxLen}
	}
	return Span{Lo: offset, Hi: offset + length}
}

// MaxLen marks a span that extends to the end of the resource.
const MaxLen = ^uint64(0)

// Empty reports whether the span contains no elements.
func (s Span) Empty() bool {
	return s.Hi <= s.Lo
}

// Len returns the number of elements in the span.
func (s Span) Len() uint64 {
	if s.Empty() {
		return 0
	}
	return s.Hi - s.Lo
}

// Overlaps reports whether s and o share at least one element.
// Empty spans overlap nothing.
func (s Span) Overlaps(o Span) bool {
	if s.Empty() || o.Empty() {
		return false
	}
	return s.Lo < o.Hi && o.Lo < s.Hi
}

// Intersect returns the common sub-span of s and o.
// The result is empty if the spans are disjoint.
func (s Span) Intersect(o Span) Span {
	r := Span{Lo: max(s.Lo, o.Lo), Hi: min(s.Hi, o.Hi)}
	if r.Empty() {
		return Span{}
	}
	return r
}

// Cover returns the smallest span containing both s and o.
// An empty operand does not extend the result.
func (s Span) Cover(o Span) Span {
	switch {
	case s.Empty():
		return o
	case o.Empty():
		return s
	}
	return Span{Lo: min(s.Lo, o.Lo), Hi: max(s.Hi, o.Hi)}
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	if o.Empty() {
		return true
	}
	return s.Lo <= o.Lo && o.Hi <= s.Hi
}
