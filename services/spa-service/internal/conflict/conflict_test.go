package conflict

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 28, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"contained", at(10, 0), at(11, 0), at(10, 15), at(10, 45), true},
		{"partial front", at(10, 0), at(11, 0), at(9, 30), at(10, 30), true},
		{"partial back", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"touching before", at(10, 0), at(11, 0), at(9, 0), at(10, 0), false},
		{"touching after", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"disjoint", at(10, 0), at(11, 0), at(12, 0), at(13, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("overlaps(%s-%s, %s-%s) = %v, want %v",
					tc.aStart.Format("15:04"), tc.aEnd.Format("15:04"),
					tc.bStart.Format("15:04"), tc.bEnd.Format("15:04"), got, tc.want)
			}
			// Overlap is symmetric.
			if got := overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps not symmetric for %s", tc.name)
			}
		})
	}
}
