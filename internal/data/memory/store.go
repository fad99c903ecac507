// Package memory is an in-process implementation of every store interface
// used by the services. It backs the test suites and the "memory" store
// driver for local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/timerange"
)

// Store keeps all records in maps guarded by a single RWMutex. Every value
// handed out is a copy so callers cannot mutate stored state.
type Store struct {
	mu            sync.RWMutex
	resources     map[string]*data.Resource
	bookings      map[string]*data.Booking
	conversations map[string]*data.Conversation
	messages      map[string]*data.Message
	cursors       map[string]*data.ReadCursor
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		resources:     map[string]*data.Resource{},
		bookings:      map[string]*data.Booking{},
		conversations: map[string]*data.Conversation{},
		messages:      map[string]*data.Message{},
		cursors:       map[string]*data.ReadCursor{},
	}
}

// ---- resources ----

func (s *Store) CreateResource(ctx context.Context, r *data.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[r.ID]; ok {
		return data.ErrDuplicate
	}
	cp := *r
	s.resources[r.ID] = &cp
	return nil
}

func (s *Store) GetResource(ctx context.Context, id string) (*data.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) UpdateResource(ctx context.Context, r *data.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[r.ID]; !ok {
		return data.ErrNotFound
	}
	cp := *r
	s.resources[r.ID] = &cp
	return nil
}

func (s *Store) ListResources(ctx context.Context, ownerID string, visibleOnly bool) ([]*data.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*data.Resource
	for _, r := range s.resources {
		if ownerID != "" && r.OwnerID != ownerID {
			continue
		}
		if visibleOnly && !r.Visible {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ---- bookings ----

// InsertBooking checks for holding overlaps and inserts under the write
// lock, so concurrent inserts for one resource are serialised.
func (s *Store) InsertBooking(ctx context.Context, b *data.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return data.ErrDuplicate
	}
	if b.Status.Holds() {
		for _, other := range s.bookings {
			if other.ResourceID != b.ResourceID || !other.Status.Holds() {
				continue
			}
			if timerange.Overlaps(b.StartsAt, b.EndsAt, other.StartsAt, other.EndsAt) {
				return data.ErrOverlap
			}
		}
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*data.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// UpdateBookingStatus moves a booking from one status to another only if it
// is still in from.
func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to data.BookingStatus, paymentRef string, at time.Time) (*data.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	if b.Status != from {
		return nil, data.ErrStaleStatus
	}
	b.Status = to
	if paymentRef != "" {
		b.PaymentRef = paymentRef
	}
	b.UpdatedAt = at
	cp := *b
	return &cp, nil
}

func (s *Store) ListBookings(ctx context.Context, f data.BookingFilter) ([]*data.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*data.Booking
	for _, b := range s.bookings {
		if !f.Matches(b) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ---- conversations ----

func (s *Store) CreateConversation(ctx context.Context, c *data.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conversations {
		if existing.Key == c.Key {
			return data.ErrDuplicate
		}
	}
	s.conversations[c.ID] = copyConversation(c)
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*data.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return copyConversation(c), nil
}

func (s *Store) FindConversation(ctx context.Context, key string) (*data.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.Key == key {
			return copyConversation(c), nil
		}
	}
	return nil, data.ErrNotFound
}

func (s *Store) ListConversationsFor(ctx context.Context, userID string) ([]*data.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*data.Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, copyConversation(c))
		}
	}
	return out, nil
}

// TouchConversation moves last_message_at forward, never backward.
func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return data.ErrNotFound
	}
	if at.After(c.LastMessageAt) {
		c.LastMessageAt = at
	}
	return nil
}

func copyConversation(c *data.Conversation) *data.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	return &cp
}

// ---- messages ----

func (s *Store) InsertMessage(ctx context.Context, m *data.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return data.ErrDuplicate
	}
	s.messages[m.ID] = copyMessage(m)
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*data.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok || m.DeletedAt != nil {
		return nil, data.ErrNotFound
	}
	return copyMessage(m), nil
}

// ListMessages returns up to limit live messages created before `before`
// (all when zero), newest page first, ordered oldest to newest.
func (s *Store) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]*data.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*data.Message
	for _, m := range s.messages {
		if m.ConversationID != conversationID || m.DeletedAt != nil {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, copyMessage(m))
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) LastMessages(ctx context.Context, conversationIDs []string) (map[string]*data.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		wanted[id] = true
	}
	out := map[string]*data.Message{}
	for _, m := range s.messages {
		if !wanted[m.ConversationID] || m.DeletedAt != nil {
			continue
		}
		cur, ok := out[m.ConversationID]
		if !ok || newer(m, cur) {
			out[m.ConversationID] = m
		}
	}
	for k, m := range out {
		out[k] = copyMessage(m)
	}
	return out, nil
}

// CountUnread counts live messages not sent by userID created strictly after `after`.
func (s *Store) CountUnread(ctx context.Context, conversationID, userID string, after time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.messages {
		if m.ConversationID != conversationID || m.SenderID == userID || m.DeletedAt != nil {
			continue
		}
		if m.CreatedAt.After(after) {
			n++
		}
	}
	return n, nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.DeletedAt != nil {
		return data.ErrNotFound
	}
	t := at
	m.DeletedAt = &t
	m.Body = ""
	m.Attachments = nil
	return nil
}

func copyMessage(m *data.Message) *data.Message {
	cp := *m
	cp.Attachments = append([]data.Attachment(nil), m.Attachments...)
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func newer(a, b *data.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortNewestFirst(ms []*data.Message) {
	sort.Slice(ms, func(i, j int) bool { return newer(ms[i], ms[j]) })
}

// ---- read cursors ----

func (s *Store) GetReadCursor(ctx context.Context, conversationID, userID string) (*data.ReadCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[data.CursorKey(conversationID, userID)]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// AdvanceReadCursor creates the cursor lazily and sets it to max(current, at).
func (s *Store) AdvanceReadCursor(ctx context.Context, conversationID, userID string, at time.Time) (*data.ReadCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := data.CursorKey(conversationID, userID)
	c, ok := s.cursors[key]
	if !ok {
		c = &data.ReadCursor{ID: key, ConversationID: conversationID, UserID: userID}
		s.cursors[key] = c
	}
	if at.After(c.LastReadAt) {
		c.LastReadAt = at
	}
	c.UpdatedAt = at
	cp := *c
	return &cp, nil
}
