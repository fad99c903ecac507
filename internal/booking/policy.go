package booking

import (
	"fmt"
	"time"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/timerange"
)

// Policy bounds what a booking request may ask for.
type Policy struct {
	MinDuration time.Duration
	MaxDuration time.Duration // 0 = unbounded
	AllowPast   bool
}

// DefaultPolicy is one hour minimum, thirty days maximum, no past starts.
func DefaultPolicy() Policy {
	return Policy{MinDuration: time.Hour, MaxDuration: 30 * 24 * time.Hour}
}

// interval normalises start/end to UTC milliseconds and checks them against the policy.
func (p Policy) interval(start, end, now time.Time) (timerange.Range, error) {
	r, err := timerange.New(truncate(start), truncate(end))
	if err != nil {
		return timerange.Range{}, apperr.Field("endsAt", "must be after startsAt")
	}
	d := r.Duration()
	if p.MinDuration > 0 && d < p.MinDuration {
		return timerange.Range{}, apperr.Field("endsAt", fmt.Sprintf("booking must last at least %s", p.MinDuration))
	}
	if p.MaxDuration > 0 && d > p.MaxDuration {
		return timerange.Range{}, apperr.Field("endsAt", fmt.Sprintf("booking must not exceed %s", p.MaxDuration))
	}
	if !p.AllowPast && r.Start.Before(now) {
		return timerange.Range{}, apperr.Field("startsAt", "must not be in the past")
	}
	return r, nil
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
