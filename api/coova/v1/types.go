package v1

import "time"

// Booking is a reservation of a resource for a half-open interval. Totals
// are in minor currency units.
type Booking struct {
	BookingID       string    `json:"bookingId"`
	ResourceID      string    `json:"resourceId"`
	OwnerID         string    `json:"ownerId"`
	RequesterID     string    `json:"requesterId"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt"`
	PartySize       int       `json:"partySize"`
	Status          string    `json:"status"`
	TotalMinorUnits int64     `json:"totalMinorUnits"`
	PaymentRef      string    `json:"paymentRef,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RequestBookingRequest asks for a pending booking. RequesterID defaults to the caller.
type RequestBookingRequest struct {
	ResourceID  string    `json:"resourceId"`
	RequesterID string    `json:"requesterId"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	PartySize   int       `json:"partySize"`
}

// GetBookingRequest fetches one booking visible to the caller.
type GetBookingRequest struct {
	BookingID string `json:"bookingId"`
}

// ListBookingsRequest lists the caller's bookings. As is "requester" or "owner".
type ListBookingsRequest struct {
	ActorID    string   `json:"actorId" form:"actorId"`
	As         string   `json:"as" form:"as"`
	ResourceID string   `json:"resourceId" form:"resourceId"`
	Statuses   []string `json:"statuses" form:"status"`
	Limit      int      `json:"limit" form:"limit"`
}

// ListBookingsResponse is ordered by start time.
type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

// TransitionBookingRequest moves a booking to Status on behalf of ActorID.
type TransitionBookingRequest struct {
	BookingID string `json:"bookingId"`
	ActorID   string `json:"actorId"`
	Status    string `json:"status"`
}

// QuoteRequest prices an interval without reserving it.
type QuoteRequest struct {
	ResourceID string    `json:"resourceId"`
	StartsAt   time.Time `json:"startsAt" form:"startsAt" time_format:"2006-01-02T15:04:05Z07:00"`
	EndsAt     time.Time `json:"endsAt" form:"endsAt" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Quote is the price of an interval: BillableHours × PricePerHour.
type Quote struct {
	ResourceID      string    `json:"resourceId"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt"`
	BillableHours   int64     `json:"billableHours"`
	PricePerHour    int64     `json:"pricePerHour"`
	TotalMinorUnits int64     `json:"totalMinorUnits"`
}

// AvailabilityRequest asks for busy intervals inside [From, To).
type AvailabilityRequest struct {
	ResourceID string    `json:"resourceId"`
	From       time.Time `json:"from" form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         time.Time `json:"to" form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityResponse lists busy intervals only, never who holds them.
type AvailabilityResponse struct {
	ResourceID string     `json:"resourceId"`
	Busy       []Interval `json:"busy"`
}

// Resource is a bookable listing.
type Resource struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"`
	PricePerHour int64     `json:"pricePerHour"`
	Capacity     int       `json:"capacity"`
	Visible      bool      `json:"visible"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateResourceRequest publishes a listing owned by the caller.
type CreateResourceRequest struct {
	OwnerID      string `json:"ownerId"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	PricePerHour int64  `json:"pricePerHour"`
	Capacity     int    `json:"capacity"`
	Visible      bool   `json:"visible"`
}

// GetResourceRequest fetches a listing. Hidden listings are only returned to their owner.
type GetResourceRequest struct {
	ResourceID string `json:"resourceId"`
}

// UpdateResourceRequest changes the fields that are set.
type UpdateResourceRequest struct {
	ResourceID   string  `json:"resourceId"`
	ActorID      string  `json:"actorId"`
	Title        *string `json:"title,omitempty"`
	PricePerHour *int64  `json:"pricePerHour,omitempty"`
	Capacity     *int    `json:"capacity,omitempty"`
	Visible      *bool   `json:"visible,omitempty"`
}

// ListResourcesRequest filters by owner when OwnerID is set.
type ListResourcesRequest struct {
	OwnerID string `json:"ownerId" form:"ownerId"`
}

// ListResourcesResponse holds the listings the caller may see.
type ListResourcesResponse struct {
	Resources []*Resource `json:"resources"`
}

// Conversation is a message thread between participants, optionally about a resource.
type Conversation struct {
	ConversationID string    `json:"conversationId"`
	ResourceID     string    `json:"resourceId,omitempty"`
	Participants   []string  `json:"participants"`
	CreatedAt      time.Time `json:"createdAt"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
}

// OpenConversationRequest returns the existing thread for the same members and resource, or creates one.
type OpenConversationRequest struct {
	CreatorID    string   `json:"creatorId"`
	Participants []string `json:"participants"`
	ResourceID   string   `json:"resourceId"`
}

// Attachment references a file stored elsewhere.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Message is one entry in a conversation.
type Message struct {
	MessageID      string       `json:"messageId"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Body           string       `json:"body,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ClientRef      string       `json:"clientRef,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// SendMessageRequest appends a message. ClientRef lets clients match the echo to their draft.
type SendMessageRequest struct {
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Body           string       `json:"body"`
	Attachments    []Attachment `json:"attachments"`
	ClientRef      string       `json:"clientRef"`
}

// ListMessagesRequest pages backwards from Before (newest when zero).
type ListMessagesRequest struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId" form:"userId"`
	Before         time.Time `json:"before" form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit          int       `json:"limit" form:"limit"`
}

// ListMessagesResponse is oldest first.
type ListMessagesResponse struct {
	Messages []*Message `json:"messages"`
}

// DeleteMessageRequest soft-deletes one of the caller's own messages.
type DeleteMessageRequest struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId" form:"userId"`
}

// DeleteMessageResponse reports whether the message is now deleted.
type DeleteMessageResponse struct {
	Deleted bool `json:"deleted"`
}

// MarkReadRequest advances the caller's read cursor to now.
type MarkReadRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// MarkReadResponse carries the cursor after the call; it never moves back.
type MarkReadResponse struct {
	LastReadAt time.Time `json:"lastReadAt"`
}

// UnreadCountRequest asks how many messages in a conversation the caller has not read.
type UnreadCountRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId" form:"userId"`
}

// UnreadCountResponse counts messages from others newer than the read cursor.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// InboxRequest lists the caller's conversations.
type InboxRequest struct {
	UserID string `json:"userId" form:"userId"`
}

// ResourcePreview is the listing shown beside an inbox row.
type ResourcePreview struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PricePerHour int64  `json:"pricePerHour"`
}

// MessagePreview is a shortened last message.
type MessagePreview struct {
	MessageID   string    `json:"messageId"`
	SenderID    string    `json:"senderId"`
	Text        string    `json:"text"`
	Attachments int       `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConversationSummary is one inbox row.
type ConversationSummary struct {
	ConversationID string           `json:"conversationId"`
	Counterparts   []string         `json:"counterparts"`
	Resource       *ResourcePreview `json:"resource,omitempty"`
	LastMessage    *MessagePreview  `json:"lastMessage,omitempty"`
	UnreadCount    int64            `json:"unreadCount"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
}

// InboxResponse is ordered by latest activity. TotalUnread is the sum of the rows.
type InboxResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	TotalUnread   int64                 `json:"totalUnread"`
}

// SubscribeRequest opens the caller's realtime event stream.
type SubscribeRequest struct{}

// Event is pushed to subscribers. Exactly one payload field is set, matching Type.
type Event struct {
	Type           string     `json:"type"` // message.created, conversation.read, booking.<status>
	OccurredAt     time.Time  `json:"occurredAt"`
	Message        *Message   `json:"message,omitempty"`
	Booking        *Booking   `json:"booking,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	UserID         string     `json:"userId,omitempty"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`
}
