package normalize

import (
	"sort"
	"time"
)

// Interval is a closed date range used for tenure computation.
type Interval struct {
	Start time.Time
	End   time.Time
}

// MergeIntervals merges overlapping or touching intervals into a minimal
// disjoint covering set, sorted by start. Touching means next.Start is not
// after the current End. The input slice is not modified; empty input
// returns an empty result.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, nxt := range sorted[1:] {
		if !nxt.Start.After(cur.End) {
			if nxt.End.After(cur.End) {
				cur.End = nxt.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = nxt
	}
	return append(merged, cur)
}

// TotalDays sums the elapsed days across a set of intervals.
func TotalDays(intervals []Interval) float64 {
	var total float64
	for _, it := range intervals {
		total += it.End.Sub(it.Start).Hours() / 24
	}
	return total
}
