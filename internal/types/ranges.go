package types

import "sort"

// Range is a half-open byte interval [Offset, Offset+Length).
type Range struct {
	Offset uint64
	Length uint64
}

// End returns the exclusive end offset of the range.
func (r Range) End() uint64 {
	return r.Offset + r.Length
}

// RangeList is an ordered, non-overlapping, non-adjacent list of ranges.
type RangeList struct {
	ranges []Range
}

// NewRangeList builds an empty RangeList.
func NewRangeList() *RangeList {
	return &RangeList{}
}

// Ranges returns the merged ranges in ascending offset order. The returned
// slice must not be mutated by the caller.
func (l *RangeList) Ranges() []Range {
	return l.ranges
}

// Add merges r into the list, coalescing it with any overlapping or
// adjacent existing range.
func (l *RangeList) Add(r Range) {
	if r.Length == 0 {
		return
	}
	i := sort.Search(len(l.ranges), func(i int) bool { return l.ranges[i].Offset >= r.Offset })

	// Merge with the previous range if it touches or overlaps r.
	if i > 0 && l.ranges[i-1].End() >= r.Offset {
		i--
		if r.End() > l.ranges[i].End() {
			l.ranges[i].Length = r.End() - l.ranges[i].Offset
		}
	} else {
		l.ranges = append(l.ranges, Range{})
		copy(l.ranges[i+1:], l.ranges[i:])
		l.ranges[i] = r
	}

	// Absorb any following ranges r now overlaps or touches.
	j := i + 1
	for j < len(l.ranges) && l.ranges[j].Offset <= l.ranges[i].End() {
		if l.ranges[j].End() > l.ranges[i].End() {
			l.ranges[i].Length = l.ranges[j].End() - l.ranges[i].Offset
		}
		j++
	}
	l.ranges = append(l.ranges[:i+1], l.ranges[j:]...)
}

// Contains reports whether the half-open interval [offset, offset+length)
// lies entirely within one range in the list.
func (l *RangeList) Contains(offset, length uint64) bool {
	i := sort.Search(len(l.ranges), func(i int) bool { return l.ranges[i].End() > offset })
	if i == len(l.ranges) {
		return false
	}
	return l.ranges[i].Offset <= offset && l.ranges[i].End() >= offset+length
}

// Subtract removes r from every range it intersects, splitting ranges as
// needed.
func (l *RangeList) Subtract(r Range) {
	var out []Range
	for _, existing := range l.ranges {
		if r.End() <= existing.Offset || r.Offset >= existing.End() {
			out = append(out, existing)
			continue
		}
		if existing.Offset < r.Offset {
			out = append(out, Range{Offset: existing.Offset, Length: r.Offset - existing.Offset})
		}
		if existing.End() > r.End() {
			out = append(out, Range{Offset: r.End(), Length: existing.End() - r.End()})
		}
	}
	l.ranges = out
}
