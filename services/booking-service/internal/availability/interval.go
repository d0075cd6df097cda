package availability

import "time"

// Interval is a half-open span of absolute time: Start is included, End is not.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [i.Start,i.End) and [o.Start,o.End) share any instant.
// Intervals that only touch at a boundary do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func overlapsAny(iv Interval, set []Interval) bool {
	for _, other := range set {
		if iv.Overlaps(other) {
			return true
		}
	}
	return false
}

// WouldConflict reports whether a candidate booking overlaps any existing confirmed booking.
// It is a fast path only; the store's exclusion constraint is what guarantees the invariant.
func WouldConflict(candidate Interval, existing []Interval) bool {
	return overlapsAny(candidate, existing)
}
