package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/normalize"
)

const previewRunes = 140

// ResourcePreview is the listing shown next to a conversation.
type ResourcePreview struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PricePerHour int64  `json:"pricePerHour"`
}

// MessagePreview is a shortened view of the latest message.
type MessagePreview struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	Text        string    `json:"text"`
	Attachments int       `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary is one inbox row.
type Summary struct {
	ConversationID string           `json:"conversationId"`
	Counterparts   []string         `json:"counterparts"`
	Resource       *ResourcePreview `json:"resource,omitempty"`
	LastMessage    *MessagePreview  `json:"lastMessage,omitempty"`
	Unread         int64            `json:"unreadCount"`
	LastActivity   time.Time        `json:"lastActivityAt"`
}

// ListConversations composes the inbox for userID, most recent activity
// first. It only reads; opening a thread is what marks it read.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Summary, error) {
	userID = normalize.ID(userID)
	if userID == "" {
		return nil, apperr.Field("userId", "is required")
	}
	convs, err := s.stores.Conversations.ListConversationsFor(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list conversations", err)
	}
	if len(convs) == 0 {
		return []Summary{}, nil
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	last, err := s.stores.Messages.LastMessages(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load last messages", err)
	}

	resources := map[string]*ResourcePreview{}
	out := make([]Summary, 0, len(convs))
	for _, c := range convs {
		n, err := s.unread(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		sum := Summary{
			ConversationID: c.ID,
			Counterparts:   c.Counterparts(userID),
			Unread:         n,
			LastActivity:   c.CreatedAt,
		}
		if m, ok := last[c.ID]; ok {
			sum.LastMessage = preview(m)
			if m.CreatedAt.After(sum.LastActivity) {
				sum.LastActivity = m.CreatedAt
			}
		}
		if c.ResourceID != "" {
			rp, seen := resources[c.ResourceID]
			if !seen {
				rp, err = s.resourcePreview(ctx, c.ResourceID, userID)
				if err != nil {
					return nil, err
				}
				resources[c.ResourceID] = rp
			}
			sum.Resource = rp
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].ConversationID < out[j].ConversationID
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

// SumUnread totals the unread counts of rows already composed, so a badge
// shown beside an inbox always agrees with it.
func SumUnread(rows []Summary) int64 {
	var total int64
	for _, r := range rows {
		total += r.Unread
	}
	return total
}

// TotalUnread is the badge figure: the sum of per-conversation unread counts.
func (s *Service) TotalUnread(ctx context.Context, userID string) (int64, error) {
	userID = normalize.ID(userID)
	if userID == "" {
		return 0, apperr.Field("userId", "is required")
	}
	convs, err := s.stores.Conversations.ListConversationsFor(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("list conversations", err)
	}
	var total int64
	for _, c := range convs {
		n, err := s.unread(ctx, c.ID, userID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// resourcePreview returns nil for a missing listing, and for a hidden one
// unless viewerID owns it.
func (s *Service) resourcePreview(ctx context.Context, id, viewerID string) (*ResourcePreview, error) {
	if s.stores.Resources == nil {
		return nil, nil
	}
	r, err := s.stores.Resources.GetResource(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Internal("load resource", err)
	}
	if !r.Visible && r.OwnerID != viewerID {
		return nil, nil
	}
	return &ResourcePreview{ID: r.ID, Title: r.Title, PricePerHour: r.PricePerHour}, nil
}

func preview(m *data.Message) *MessagePreview {
	p := &MessagePreview{
		ID:          m.ID,
		SenderID:    m.SenderID,
		Attachments: len(m.Attachments),
		CreatedAt:   m.CreatedAt,
	}
	switch {
	case m.Body != "":
		p.Text = truncateRunes(m.Body, previewRunes)
	case len(m.Attachments) == 1:
		p.Text = "[attachment]"
	case len(m.Attachments) > 1:
		p.Text = fmt.Sprintf("[%d attachments]", len(m.Attachments))
	}
	return p
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
