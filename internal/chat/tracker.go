package chat

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/normalize"
)

// MarkRead moves the user's read cursor to now. The cursor never moves
// backwards, so repeated calls are harmless.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error) {
	userID = normalize.ID(userID)
	c, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return time.Time{}, err
	}
	cur, err := s.stores.Cursors.AdvanceReadCursor(ctx, c.ID, userID, s.clock())
	if err != nil {
		return time.Time{}, apperr.Internal("advance read cursor", err)
	}
	if s.notifier != nil {
		s.notifier.ConversationRead(ctx, c.Counterparts(userID), c.ID, userID, cur.LastReadAt)
	}
	return cur.LastReadAt, nil
}

// UnreadCount is the number of live messages from other participants
// created after the user's read cursor.
func (s *Service) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	userID = normalize.ID(userID)
	c, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return s.unread(ctx, c.ID, userID)
}

// unread is the one definition of an unread count. Every figure shown to a
// user, per conversation or summed, comes from here.
func (s *Service) unread(ctx context.Context, conversationID, userID string) (int64, error) {
	var after time.Time
	cur, err := s.stores.Cursors.GetReadCursor(ctx, conversationID, userID)
	switch {
	case err == nil:
		after = cur.LastReadAt
	case errors.Is(err, data.ErrNotFound):
	default:
		return 0, apperr.Internal("load read cursor", err)
	}
	n, err := s.stores.Messages.CountUnread(ctx, conversationID, userID, after)
	if err != nil {
		return 0, apperr.Internal("count unread", err)
	}
	return n, nil
}
