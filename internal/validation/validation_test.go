package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/PaulBabatuyi/coova/internal/apperr"
)

type sample struct {
	ResourceID string    `json:"resourceId" validate:"required"`
	StartsAt   time.Time `json:"startsAt" validate:"required"`
	PartySize  int       `json:"partySize" validate:"gte=0,lte=10"`
	Status     string    `json:"status" validate:"omitempty,oneof=accepted declined"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Struct(sample{PartySize: 11, Status: "paid"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"resourceId", "startsAt", "partySize", "status"} {
		if _, ok := ae.Fields[field]; !ok {
			t.Fatalf("missing detail for %s: %v", field, ae.Fields)
		}
	}
	if ae.Fields["partySize"] != "must be at most 10" {
		t.Fatalf("unexpected detail: %q", ae.Fields["partySize"])
	}
}

func TestStructAcceptsValid(t *testing.T) {
	v := New()
	if err := v.Struct(sample{ResourceID: "r1", StartsAt: time.Now(), PartySize: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
