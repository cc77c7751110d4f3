package stats

import (
	"slices"
	"time"
)

// WeeklyCount is the number of events in the week starting on Monday.
type WeeklyCount struct {
	WeekStarting time.Time `json:"weekStarting"`
	Count        int       `json:"count"`
}

// WeekStart normalizes t to Monday 00:00 in t's location.
func WeekStart(t time.Time) time.Time {
	// Go's Weekday starts at Sunday=0. We want Monday to be the anchor.
	offset := int(t.Weekday()) - 1
	if offset < 0 {
		offset = 6 // Sunday
	}
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}

// WeeklyCounts buckets timestamps after now-windowWeeks into weeks. Every week
// of the window is present, including empty ones.
func WeeklyCounts(times []time.Time, windowWeeks int, now time.Time) []WeeklyCount {
	if windowWeeks <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -windowWeeks*7)

	weeks := make(map[time.Time]int)
	for w := WeekStart(cutoff); !w.After(now); w = w.AddDate(0, 0, 7) {
		weeks[w] = 0
	}
	for _, t := range times {
		if t.After(cutoff) && !t.After(now) {
			weeks[WeekStart(t)]++
		}
	}

	results := make([]WeeklyCount, 0, len(weeks))
	for week, count := range weeks {
		results = append(results, WeeklyCount{WeekStarting: week, Count: count})
	}
	slices.SortFunc(results, func(a, b WeeklyCount) int {
		return a.WeekStarting.Compare(b.WeekStarting)
	})
	return results
}
