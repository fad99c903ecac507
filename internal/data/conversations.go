package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ConversationsStore provides conversation database operations.
type ConversationsStore struct {
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// CreateConversation inserts c. The unique index on key turns a second
// conversation for the same resource and participants into ErrDuplicate.
func (s *ConversationsStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *ConversationsStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *ConversationsStore) FindConversation(ctx context.Context, key string) (*Conversation, error) {
	return s.findOne(ctx, bson.D{{Key: "key", Value: key}})
}

func (s *ConversationsStore) findOne(ctx context.Context, filter bson.D) (*Conversation, error) {
	var c Conversation
	if err := s.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListConversationsFor returns every conversation userID participates in.
func (s *ConversationsStore) ListConversationsFor(ctx context.Context, userID string) ([]*Conversation, error) {
	// equality on an array field matches any element
	cursor, err := s.coll.Find(ctx, bson.D{{Key: "participants", Value: userID}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Conversation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TouchConversation moves last_message_at forward, never backward.
func (s *ConversationsStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$max", Value: bson.D{{Key: "last_message_at", Value: at}}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
