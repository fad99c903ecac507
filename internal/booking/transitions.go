package booking

import (
	"fmt"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
)

var transitions = map[data.BookingStatus][]data.BookingStatus{
	data.BookingPending:  {data.BookingAccepted, data.BookingDeclined, data.BookingCanceled},
	data.BookingAccepted: {data.BookingCanceled, data.BookingPaid},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to data.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition applies the role rules for a user-initiated transition.
// The caller has already established that actorID is a party to b.
func checkTransition(b *data.Booking, actorID string, next data.BookingStatus) error {
	if next == data.BookingPaid {
		return apperr.InvalidTransition("paid is set by payment confirmation only")
	}
	if !CanTransition(b.Status, next) {
		return apperr.InvalidTransition(fmt.Sprintf("cannot move booking from %s to %s", b.Status, next))
	}
	if (next == data.BookingAccepted || next == data.BookingDeclined) && actorID != b.OwnerID {
		return apperr.Forbidden("only the resource owner can accept or decline a booking")
	}
	return nil
}
