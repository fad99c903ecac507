package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CursorsStore provides read cursor database operations.
type CursorsStore struct {
	coll *mongo.Collection
}

// NewCursorsStore returns a CursorsStore using given collection.
func NewCursorsStore(coll *mongo.Collection) *CursorsStore {
	return &CursorsStore{coll: coll}
}

// GetReadCursor returns ErrNotFound when the user never read the conversation.
func (s *CursorsStore) GetReadCursor(ctx context.Context, conversationID, userID string) (*ReadCursor, error) {
	var c ReadCursor
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: CursorKey(conversationID, userID)}}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AdvanceReadCursor upserts the cursor and sets last_read_at to
// max(current, at) in a single server-side update.
func (s *CursorsStore) AdvanceReadCursor(ctx context.Context, conversationID, userID string, at time.Time) (*ReadCursor, error) {
	// pipeline update: $max ignores a missing field, so a new cursor starts at `at`
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "conversation_id", Value: conversationID},
			{Key: "user_id", Value: userID},
			{Key: "last_read_at", Value: bson.D{{Key: "$max", Value: bson.A{"$last_read_at", at}}}},
			{Key: "updated_at", Value: at},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c ReadCursor
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: CursorKey(conversationID, userID)}}, update, opts).Decode(&c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
