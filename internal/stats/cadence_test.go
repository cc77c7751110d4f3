package stats

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 6, 15, 4, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},  // Wednesday
		{time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}, // Sunday
		{time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},   // Monday
	}
	for _, tt := range tests {
		if got := WeekStart(tt.in); !got.Equal(tt.want) {
			t.Errorf("WeekStart(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWeeklyCounts_FillsEmptyWeeks(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) // Wednesday
	times := []time.Time{
		now.AddDate(0, 0, -1),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, -15),
		now.AddDate(0, 0, -60), // outside window
	}

	got := WeeklyCounts(times, 3, now)
	if len(got) != 4 {
		t.Fatalf("got %d weeks, want 4: %+v", len(got), got)
	}
	counts := []int{got[0].Count, got[1].Count, got[2].Count, got[3].Count}
	want := []int{0, 1, 0, 2}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("week %d count = %d, want %d (%+v)", i, counts[i], want[i], got)
		}
	}
	for i := 1; i < len(got); i++ {
		if !got[i].WeekStarting.After(got[i-1].WeekStarting) {
			t.Error("weeks must be chronological")
		}
	}
}
