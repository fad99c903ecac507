package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// live excludes soft-deleted messages.
var live = bson.E{Key: "deleted_at", Value: bson.D{{Key: "$exists", Value: false}}}

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// InsertMessage appends a message document.
func (s *MessagesStore) InsertMessage(ctx context.Context, m *Message) error {
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetMessage finds a live message by id.
func (s *MessagesStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}, live}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the newest `limit` live messages created before
// `before` (no bound when zero), ordered oldest→newest.
func (s *MessagesStore) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]*Message, error) {
	filter := bson.D{{Key: "conversation_id", Value: conversationID}, live}
	if !before.IsZero() {
		filter = append(filter, bson.E{Key: "created_at", Value: bson.D{{Key: "$lt", Value: before}}})
	}
	// newest first so the limit keeps the latest page
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// client expects chronological order: oldest message first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// LastMessages returns the latest live message of each conversation that has one.
func (s *MessagesStore) LastMessages(ctx context.Context, conversationIDs []string) (map[string]*Message, error) {
	out := make(map[string]*Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	// filter → sort newest first → keep the first document per conversation
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "conversation_id", Value: bson.D{{Key: "$in", Value: conversationIDs}}},
			live,
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$conversation_id"},
			{Key: "last", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ConversationID string  `bson:"_id"`
		Last           Message `bson:"last"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	for i := range results {
		m := results[i].Last
		out[results[i].ConversationID] = &m
	}
	return out, nil
}

// CountUnread counts live messages from anyone but userID created after `after`.
func (s *MessagesStore) CountUnread(ctx context.Context, conversationID, userID string, after time.Time) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.D{
		{Key: "conversation_id", Value: conversationID},
		{Key: "sender_id", Value: bson.D{{Key: "$ne", Value: userID}}},
		live,
		{Key: "created_at", Value: bson.D{{Key: "$gt", Value: after}}},
	})
}

// SoftDeleteMessage stamps deleted_at and drops the content.
func (s *MessagesStore) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, live},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "deleted_at", Value: at}}},
			{Key: "$unset", Value: bson.D{{Key: "body", Value: ""}, {Key: "attachments", Value: ""}}},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
