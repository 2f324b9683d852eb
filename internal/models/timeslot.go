package models

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// SlotWindow resolves a reservation's half-open [start, end) interval on its
// date. Arrival times are clock times without a zone; they are interpreted in
// UTC, matching how the rest of the backend stamps time.
func (r Reservation) SlotWindow() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout+"T"+timeLayout, r.Date+"T"+r.ArrivalTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("reservation %d: parse slot: %w", r.ID, err)
	}
	end := start.Add(time.Duration(r.DurationMinutes) * time.Minute)
	return start, end, nil
}

// Overlaps is the half-open interval test: a slot ending exactly when another
// starts does not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
