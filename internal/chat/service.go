// Package chat implements conversations, read tracking and the inbox.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/normalize"
	"github.com/PaulBabatuyi/coova/internal/validation"
)

// Conversations stores conversation metadata.
type Conversations interface {
	CreateConversation(ctx context.Context, c *data.Conversation) error
	GetConversation(ctx context.Context, id string) (*data.Conversation, error)
	FindConversation(ctx context.Context, key string) (*data.Conversation, error)
	ListConversationsFor(ctx context.Context, userID string) ([]*data.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
}

// Messages stores the append-only message log.
type Messages interface {
	InsertMessage(ctx context.Context, m *data.Message) error
	GetMessage(ctx context.Context, id string) (*data.Message, error)
	ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]*data.Message, error)
	LastMessages(ctx context.Context, conversationIDs []string) (map[string]*data.Message, error)
	CountUnread(ctx context.Context, conversationID, userID string, after time.Time) (int64, error)
	SoftDeleteMessage(ctx context.Context, id string, at time.Time) error
}

// Cursors stores per-user read positions.
type Cursors interface {
	GetReadCursor(ctx context.Context, conversationID, userID string) (*data.ReadCursor, error)
	AdvanceReadCursor(ctx context.Context, conversationID, userID string, at time.Time) (*data.ReadCursor, error)
}

// Resources resolves the listing a conversation is about.
type Resources interface {
	GetResource(ctx context.Context, id string) (*data.Resource, error)
}

// Stores bundles the persistence the service depends on.
type Stores struct {
	Conversations Conversations
	Messages      Messages
	Cursors       Cursors
	Resources     Resources
}

// Notifier pushes realtime updates to connected participants. Delivery is
// best effort.
type Notifier interface {
	MessageCreated(ctx context.Context, recipients []string, m *data.Message)
	ConversationRead(ctx context.Context, recipients []string, conversationID, userID string, at time.Time)
}

// Service is the messaging core.
type Service struct {
	stores   Stores
	notifier Notifier
	validate *validation.Validator
	now      func() time.Time
	log      *logrus.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(stores Stores, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		stores:   stores,
		validate: validation.New(),
		now:      time.Now,
		log:      logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC().Truncate(time.Millisecond) }

// conversationFor loads a conversation and checks userID takes part in it.
func (s *Service) conversationFor(ctx context.Context, conversationID, userID string) (*data.Conversation, error) {
	conversationID = normalize.ID(conversationID)
	if conversationID == "" {
		return nil, apperr.Field("conversationId", "is required")
	}
	if userID == "" {
		return nil, apperr.Field("userId", "is required")
	}
	c, err := s.stores.Conversations.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFound("conversation")
		}
		return nil, apperr.Internal("load conversation", err)
	}
	if !c.HasParticipant(userID) {
		s.log.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"user_id":         userID,
		}).Warn("security: conversation accessed by non-participant")
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return c, nil
}
