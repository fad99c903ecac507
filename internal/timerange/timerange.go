// Package timerange models half-open time intervals [start, end) and the
// single overlap predicate every booking check goes through.
package timerange

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when end is not strictly after start.
var ErrInvalidInterval = errors.New("invalid interval: end must be after start")

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a Range in UTC and rejects empty or inverted intervals.
func New(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, ErrInvalidInterval
	}
	return Range{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
// Back-to-back intervals (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Overlaps reports whether r and o share any instant.
func (r Range) Overlaps(o Range) bool {
	return Overlaps(r.Start, r.End, o.Start, o.End)
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// DurationHours returns the fractional number of hours between start and end.
func DurationHours(start, end time.Time) (float64, error) {
	if !start.Before(end) {
		return 0, ErrInvalidInterval
	}
	return end.Sub(start).Hours(), nil
}

// BillableHours rounds the duration up to whole hours with a minimum of one.
// Integer arithmetic keeps 2h30m at exactly 3 without float rounding surprises.
func BillableHours(start, end time.Time) (int64, error) {
	if !start.Before(end) {
		return 0, ErrInvalidInterval
	}
	d := end.Sub(start)
	hours := int64((d + time.Hour - 1) / time.Hour)
	if hours < 1 {
		hours = 1
	}
	return hours, nil
}
