package data

import (
	"sort"
	"strings"
	"time"

	"github.com/PaulBabatuyi/coova/internal/timerange"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingAccepted BookingStatus = "accepted"
	BookingDeclined BookingStatus = "declined"
	BookingCanceled BookingStatus = "canceled"
	BookingPaid     BookingStatus = "paid"
)

// HoldingStatuses reserve their interval on the resource.
var HoldingStatuses = []BookingStatus{BookingPending, BookingAccepted, BookingPaid}

// Holds reports whether a booking in this status blocks its time slot.
func (s BookingStatus) Holds() bool {
	return s == BookingPending || s == BookingAccepted || s == BookingPaid
}

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingDeclined || s == BookingCanceled || s == BookingPaid
}

// ParseBookingStatus validates a status name.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case BookingPending, BookingAccepted, BookingDeclined, BookingCanceled, BookingPaid:
		return st, true
	}
	return "", false
}

// Resource maps to the resources collection (a bookable listing).
type Resource struct {
	ID           string    `bson:"_id" json:"id"`
	OwnerID      string    `bson:"owner_id" json:"owner_id"`
	Title        string    `bson:"title" json:"title"`
	Kind         string    `bson:"kind" json:"kind"`
	PricePerHour int64     `bson:"price_per_hour" json:"price_per_hour"` // minor currency units
	Capacity     int       `bson:"capacity" json:"capacity"`             // 0 = not tracked
	Visible      bool      `bson:"visible" json:"visible"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Booking maps to the bookings collection. OwnerID is copied from the
// resource when the booking is created.
type Booking struct {
	ID          string        `bson:"_id" json:"id"`
	ResourceID  string        `bson:"resource_id" json:"resource_id"`
	OwnerID     string        `bson:"owner_id" json:"owner_id"`
	RequesterID string        `bson:"requester_id" json:"requester_id"`
	StartsAt    time.Time     `bson:"starts_at" json:"starts_at"`
	EndsAt      time.Time     `bson:"ends_at" json:"ends_at"`
	PartySize   int           `bson:"party_size" json:"party_size"`
	Status      BookingStatus `bson:"status" json:"status"`
	TotalMinor  int64         `bson:"total_minor" json:"total_minor"`
	PaymentRef  string        `bson:"payment_ref,omitempty" json:"payment_ref,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updated_at"`
}

// Range returns the booked interval.
func (b *Booking) Range() timerange.Range {
	return timerange.Range{Start: b.StartsAt, End: b.EndsAt}
}

// BookingFilter narrows ListBookings. Zero values are ignored; From/To select
// bookings overlapping [From, To).
type BookingFilter struct {
	ResourceID  string
	RequesterID string
	OwnerID     string
	Statuses    []BookingStatus
	From        time.Time
	To          time.Time
	Limit       int
}

// Matches applies the filter in memory.
func (f BookingFilter) Matches(b *Booking) bool {
	if f.ResourceID != "" && b.ResourceID != f.ResourceID {
		return false
	}
	if f.RequesterID != "" && b.RequesterID != f.RequesterID {
		return false
	}
	if f.OwnerID != "" && b.OwnerID != f.OwnerID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if b.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !timerange.Overlaps(b.StartsAt, b.EndsAt, f.From, f.To) {
		return false
	}
	return true
}

// BookingEvent describes a booking state change published to other systems.
type BookingEvent struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	Booking    *Booking  `json:"booking"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Conversation maps to the conversations collection. Key is derived from the
// resource and the sorted participant set so the same pair is not duplicated.
type Conversation struct {
	ID            string    `bson:"_id" json:"id"`
	ResourceID    string    `bson:"resource_id,omitempty" json:"resource_id,omitempty"`
	Participants  []string  `bson:"participants" json:"participants"`
	Key           string    `bson:"key" json:"-"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	LastMessageAt time.Time `bson:"last_message_at" json:"last_message_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterparts returns every participant except userID.
func (c *Conversation) Counterparts(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}

// ConversationKey builds the dedupe key for a resource and participant set.
// participants must already be normalised.
func ConversationKey(resourceID string, participants []string) string {
	sorted := append([]string(nil), participants...)
	sort.Strings(sorted)
	return resourceID + "#" + strings.Join(sorted, ",")
}

// Attachment references an object stored elsewhere.
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
	Size int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// Message maps to the messages collection (append-only, soft delete).
type Message struct {
	ID             string       `bson:"_id" json:"id"`
	ConversationID string       `bson:"conversation_id" json:"conversation_id"`
	SenderID       string       `bson:"sender_id" json:"sender_id"`
	Body           string       `bson:"body,omitempty" json:"body,omitempty"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ClientRef      string       `bson:"client_ref,omitempty" json:"client_ref,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	DeletedAt      *time.Time   `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// ReadCursor records how far a user has read a conversation.
type ReadCursor struct {
	ID             string    `bson:"_id" json:"-"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	LastReadAt     time.Time `bson:"last_read_at" json:"last_read_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// CursorKey is the primary key of a read cursor.
func CursorKey(conversationID, userID string) string {
	return conversationID + ":" + userID
}
