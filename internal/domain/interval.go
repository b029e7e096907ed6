package domain

import (
	"sort"
	"time"
)

// TimeInterval is an immutable span of time with Start strictly before End.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two intervals share any time. The predicate
// (a.Start < b.End && b.Start < a.End) is the one overlap definition used
// everywhere in the booking core; boundaries that merely touch do not overlap.
func (iv TimeInterval) Overlaps(other TimeInterval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Pad returns the interval expanded by d on both ends.
func (iv TimeInterval) Pad(d time.Duration) TimeInterval {
	return TimeInterval{Start: iv.Start.Add(-d), End: iv.End.Add(d)}
}

func (iv TimeInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

type BusyOrigin string

const (
	BusyOriginLocal  BusyOrigin = "local"
	BusyOriginRemote BusyOrigin = "remote"
)

// BusyBlock is a read-time projection of one booked span. It is rebuilt on
// every query and never persisted; the appointment store owns local truth and
// the remote calendar owns remote truth.
type BusyBlock struct {
	TimeInterval

	Origin      BusyOrigin
	ReferenceID string
}

// MergeIntervals coalesces the input into the minimal ascending set of
// non-overlapping intervals. Intervals that touch at a boundary are merged
// too: adjoining bookings read as one continuous busy span.
func MergeIntervals(in []TimeInterval) []TimeInterval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]TimeInterval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make([]TimeInterval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if !iv.Start.After(cur.End) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	return append(out, cur)
}

// MergeBusyBlocks merges the spans of the given blocks, discarding origin tags.
func MergeBusyBlocks(blocks []BusyBlock) []TimeInterval {
	if len(blocks) == 0 {
		return nil
	}
	intervals := make([]TimeInterval, len(blocks))
	for i, b := range blocks {
		intervals[i] = b.TimeInterval
	}
	return MergeIntervals(intervals)
}

// OverlapsAny reports whether iv overlaps any of the given intervals.
func OverlapsAny(iv TimeInterval, intervals []TimeInterval) bool {
	for _, other := range intervals {
		if iv.Overlaps(other) {
			return true
		}
	}
	return false
}
