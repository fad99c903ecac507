package v1

import (
	"github.com/PaulBabatuyi/coova/internal/booking"
	"github.com/PaulBabatuyi/coova/internal/chat"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/timerange"
)

func FromBooking(b *data.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		BookingID:       b.ID,
		ResourceID:      b.ResourceID,
		OwnerID:         b.OwnerID,
		RequesterID:     b.RequesterID,
		StartsAt:        b.StartsAt,
		EndsAt:          b.EndsAt,
		PartySize:       b.PartySize,
		Status:          string(b.Status),
		TotalMinorUnits: b.TotalMinor,
		PaymentRef:      b.PaymentRef,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func FromBookings(in []*data.Booking) []*Booking {
	out := make([]*Booking, 0, len(in))
	for _, b := range in {
		out = append(out, FromBooking(b))
	}
	return out
}

func FromQuote(q *booking.Quote) *Quote {
	return &Quote{
		ResourceID:      q.ResourceID,
		StartsAt:        q.StartsAt,
		EndsAt:          q.EndsAt,
		BillableHours:   q.BillableHours,
		PricePerHour:    q.PricePerHour,
		TotalMinorUnits: q.TotalMinor,
	}
}

func FromRanges(in []timerange.Range) []Interval {
	out := make([]Interval, 0, len(in))
	for _, r := range in {
		out = append(out, Interval{Start: r.Start, End: r.End})
	}
	return out
}

func FromResource(r *data.Resource) *Resource {
	if r == nil {
		return nil
	}
	return &Resource{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Title:        r.Title,
		Kind:         r.Kind,
		PricePerHour: r.PricePerHour,
		Capacity:     r.Capacity,
		Visible:      r.Visible,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func FromResources(in []*data.Resource) []*Resource {
	out := make([]*Resource, 0, len(in))
	for _, r := range in {
		out = append(out, FromResource(r))
	}
	return out
}

func FromConversation(c *data.Conversation) *Conversation {
	return &Conversation{
		ConversationID: c.ID,
		ResourceID:     c.ResourceID,
		Participants:   c.Participants,
		CreatedAt:      c.CreatedAt,
		LastMessageAt:  c.LastMessageAt,
	}
}

func FromMessage(m *data.Message) *Message {
	if m == nil {
		return nil
	}
	out := &Message{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		ClientRef:      m.ClientRef,
		CreatedAt:      m.CreatedAt,
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, Attachment(a))
	}
	return out
}

func FromMessages(in []*data.Message) []*Message {
	out := make([]*Message, 0, len(in))
	for _, m := range in {
		out = append(out, FromMessage(m))
	}
	return out
}

// ToAttachments converts wire attachments for the chat service.
func ToAttachments(in []Attachment) []data.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]data.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, data.Attachment(a))
	}
	return out
}

func FromSummaries(in []chat.Summary) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(in))
	for _, s := range in {
		row := ConversationSummary{
			ConversationID: s.ConversationID,
			Counterparts:   s.Counterparts,
			UnreadCount:    s.Unread,
			LastActivityAt: s.LastActivity,
		}
		if s.Resource != nil {
			row.Resource = &ResourcePreview{ID: s.Resource.ID, Title: s.Resource.Title, PricePerHour: s.Resource.PricePerHour}
		}
		if s.LastMessage != nil {
			row.LastMessage = &MessagePreview{
				MessageID:   s.LastMessage.ID,
				SenderID:    s.LastMessage.SenderID,
				Text:        s.LastMessage.Text,
				Attachments: s.LastMessage.Attachments,
				CreatedAt:   s.LastMessage.CreatedAt,
			}
		}
		out = append(out, row)
	}
	return out
}
