package timerange

import (
	"errors"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name       string
		aS, aE     time.Time
		bS, bE     time.Time
		wantResult bool
	}{
		{"identical", at(10, 0), at(12, 0), at(10, 0), at(12, 0), true},
		{"partial tail", at(10, 0), at(12, 0), at(11, 0), at(13, 0), true},
		{"partial head", at(11, 0), at(13, 0), at(10, 0), at(12, 0), true},
		{"contained", at(10, 0), at(14, 0), at(11, 0), at(12, 0), true},
		{"back to back", at(10, 0), at(12, 0), at(12, 0), at(14, 0), false},
		{"back to back reversed", at(12, 0), at(14, 0), at(10, 0), at(12, 0), false},
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aS, tc.aE, tc.bS, tc.bE); got != tc.wantResult {
				t.Fatalf("Overlaps = %v, want %v", got, tc.wantResult)
			}
			a := Range{Start: tc.aS, End: tc.aE}
			b := Range{Start: tc.bS, End: tc.bE}
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Fatalf("overlap must be symmetric")
			}
		})
	}
}

func TestNewRejectsEmptyAndInverted(t *testing.T) {
	if _, err := New(at(10, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for empty range, got %v", err)
	}
	if _, err := New(at(12, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for inverted range, got %v", err)
	}
	loc := time.FixedZone("UTC+2", 2*60*60)
	r, err := New(time.Date(2025, 6, 1, 12, 0, 0, 0, loc), time.Date(2025, 6, 1, 13, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !r.Start.Equal(at(10, 0)) || r.Start.Location() != time.UTC {
		t.Fatalf("expected range normalised to UTC, got %v", r.Start)
	}
}

func TestDurationHours(t *testing.T) {
	h, err := DurationHours(at(13, 0), at(15, 30))
	if err != nil {
		t.Fatalf("DurationHours: %v", err)
	}
	if h != 2.5 {
		t.Fatalf("expected 2.5 hours, got %v", h)
	}
	if _, err := DurationHours(at(15, 0), at(13, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestBillableHours(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       int64
	}{
		{at(13, 0), at(15, 30), 3},
		{at(13, 0), at(15, 0), 2},
		{at(13, 0), at(13, 10), 1},
		{at(13, 0), at(14, 1), 2},
	}
	for _, tc := range cases {
		got, err := BillableHours(tc.start, tc.end)
		if err != nil {
			t.Fatalf("BillableHours: %v", err)
		}
		if got != tc.want {
			t.Fatalf("BillableHours(%v, %v) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}
