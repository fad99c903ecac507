package chat

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/normalize"
)

const (
	maxBodyRunes       = 4000
	maxAttachments     = 10
	defaultHistorySize = 50
	maxHistorySize     = 100
)

// SendRequest is a message send command. ClientRef is echoed back so the
// sender can reconcile its optimistic copy.
type SendRequest struct {
	ConversationID string            `json:"conversationId" validate:"required"`
	SenderID       string            `json:"senderId" validate:"required"`
	Body           string            `json:"body"`
	Attachments    []data.Attachment `json:"attachments" validate:"max=10,dive"`
	ClientRef      string            `json:"clientRef" validate:"max=128"`
}

// OpenConversation returns the conversation between creatorID and the other
// participants about resourceID, creating it on first use.
func (s *Service) OpenConversation(ctx context.Context, creatorID string, participants []string, resourceID string) (*data.Conversation, error) {
	creatorID = normalize.ID(creatorID)
	if creatorID == "" {
		return nil, apperr.Field("userId", "is required")
	}
	members := normalize.IDs(append([]string{creatorID}, participants...))
	if len(members) < 2 {
		return nil, apperr.Field("participants", "must name at least one other user")
	}
	resourceID = normalize.ID(resourceID)
	if resourceID != "" {
		r, err := s.stores.Resources.GetResource(ctx, resourceID)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return nil, apperr.NotFound("resource")
			}
			return nil, apperr.Internal("load resource", err)
		}
		// hidden listings only exist for their owner
		if !r.Visible && r.OwnerID != creatorID {
			return nil, apperr.NotFound("resource")
		}
	}

	key := data.ConversationKey(resourceID, members)
	if c, err := s.stores.Conversations.FindConversation(ctx, key); err == nil {
		return c, nil
	} else if !errors.Is(err, data.ErrNotFound) {
		return nil, apperr.Internal("find conversation", err)
	}

	now := s.clock()
	c := &data.Conversation{
		ID:            uuid.NewString(),
		ResourceID:    resourceID,
		Participants:  members,
		Key:           key,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.stores.Conversations.CreateConversation(ctx, c); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			// lost a race with an identical open
			existing, ferr := s.stores.Conversations.FindConversation(ctx, key)
			if ferr == nil {
				return existing, nil
			}
			return nil, apperr.Internal("find conversation", ferr)
		}
		return nil, apperr.Internal("create conversation", err)
	}
	s.log.WithFields(logrus.Fields{"conversation_id": c.ID, "resource_id": resourceID}).Info("conversation opened")
	return c, nil
}

// SendMessage appends a message, marks it read for the sender and notifies
// the other participants.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*data.Message, error) {
	req.ConversationID = normalize.ID(req.ConversationID)
	req.SenderID = normalize.ID(req.SenderID)
	req.Body = normalize.Body(req.Body)
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Body == "" && len(req.Attachments) == 0 {
		return nil, apperr.Field("body", "or an attachment is required")
	}
	if utf8.RuneCountInString(req.Body) > maxBodyRunes {
		return nil, apperr.Field("body", "must be at most 4000 characters")
	}
	if len(req.Attachments) > maxAttachments {
		return nil, apperr.Field("attachments", "must be at most 10")
	}
	for _, a := range req.Attachments {
		if a.URL == "" || a.Name == "" {
			return nil, apperr.Field("attachments", "each attachment needs a url and a name")
		}
	}

	c, err := s.conversationFor(ctx, req.ConversationID, req.SenderID)
	if err != nil {
		return nil, err
	}

	m := &data.Message{
		ID:             uuid.NewString(),
		ConversationID: c.ID,
		SenderID:       req.SenderID,
		Body:           req.Body,
		Attachments:    req.Attachments,
		ClientRef:      req.ClientRef,
		CreatedAt:      s.clock(),
	}
	if err := s.stores.Messages.InsertMessage(ctx, m); err != nil {
		return nil, apperr.Internal("insert message", err)
	}
	if err := s.stores.Conversations.TouchConversation(ctx, c.ID, m.CreatedAt); err != nil {
		s.log.WithError(err).WithField("conversation_id", c.ID).Warn("touch conversation failed")
	}
	if _, err := s.stores.Cursors.AdvanceReadCursor(ctx, c.ID, m.SenderID, m.CreatedAt); err != nil {
		return nil, apperr.Internal("advance read cursor", err)
	}
	if s.notifier != nil {
		s.notifier.MessageCreated(ctx, c.Counterparts(m.SenderID), m)
	}
	return m, nil
}

// History returns a page of messages older than before (the newest page when
// before is zero), ordered oldest to newest.
func (s *Service) History(ctx context.Context, conversationID, userID string, before time.Time, limit int) ([]*data.Message, error) {
	userID = normalize.ID(userID)
	c, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, apperr.Field("limit", "must be at least 0")
	}
	if limit == 0 {
		limit = defaultHistorySize
	}
	if limit > maxHistorySize {
		limit = maxHistorySize
	}
	if !before.IsZero() {
		before = before.UTC().Truncate(time.Millisecond)
	}
	msgs, err := s.stores.Messages.ListMessages(ctx, c.ID, before, limit)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}
	return msgs, nil
}

// DeleteMessage soft-deletes a message. Only its sender may do so.
func (s *Service) DeleteMessage(ctx context.Context, conversationID, messageID, userID string) error {
	userID = normalize.ID(userID)
	c, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	m, err := s.stores.Messages.GetMessage(ctx, normalize.ID(messageID))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperr.NotFound("message")
		}
		return apperr.Internal("load message", err)
	}
	if m.ConversationID != c.ID {
		return apperr.NotFound("message")
	}
	if m.SenderID != userID {
		s.log.WithFields(logrus.Fields{"message_id": m.ID, "user_id": userID}).Warn("security: delete attempted by non-sender")
		return apperr.Forbidden("only the sender can delete a message")
	}
	if err := s.stores.Messages.SoftDeleteMessage(ctx, m.ID, s.clock()); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperr.NotFound("message")
		}
		return apperr.Internal("delete message", err)
	}
	return nil
}
