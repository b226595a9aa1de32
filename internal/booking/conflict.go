package booking

import "time"

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Abutting intervals (aEnd == bStart) do not
// conflict, so back-to-back bookings are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// LiveStatuses are the booking statuses that occupy a resource's timeline.
// Rejected, cancelled and completed bookings never block a candidate.
var LiveStatuses = []string{"pending", "approved"}
