package booking_test

import (
	"testing"
	"time"

	"ms-booking/internal/booking"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name           string
		aStart, aEnd   time.Time
		bStart, bEnd   time.Time
		expectOverlaps bool
	}{
		{"identical windows", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"partial overlap at the end", at(9, 0), at(11, 0), at(10, 0), at(12, 0), true},
		{"partial overlap at the start", at(10, 0), at(12, 0), at(9, 0), at(11, 0), true},
		{"one contains the other", at(9, 0), at(13, 0), at(10, 0), at(11, 0), true},
		{"contained by the other", at(10, 0), at(11, 0), at(9, 0), at(13, 0), true},
		{"abutting, a before b", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"abutting, b before a", at(10, 0), at(11, 0), at(9, 0), at(10, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(14, 0), at(15, 0), false},
		{"one minute of overlap", at(9, 0), at(10, 1), at(10, 0), at(11, 0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := booking.Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd)
			if got != tc.expectOverlaps {
				t.Errorf("Overlaps(%v, %v, %v, %v) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.expectOverlaps)
			}
		})
	}

	// Symmetry: swapping the intervals never changes the answer.
	for _, tc := range cases {
		if booking.Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd) !=
			booking.Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd) {
			t.Errorf("Overlaps is not symmetric for %s", tc.name)
		}
	}
}

func TestLiveStatuses(t *testing.T) {
	if len(booking.LiveStatuses) != 2 {
		t.Fatalf("Expected 2 live statuses, got %d", len(booking.LiveStatuses))
	}
	for _, s := range booking.LiveStatuses {
		if s != "pending" && s != "approved" {
			t.Errorf("Unexpected live status %q", s)
		}
	}
}
