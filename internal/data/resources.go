package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ResourcesStore provides listing database operations.
type ResourcesStore struct {
	coll *mongo.Collection
}

// NewResourcesStore returns a ResourcesStore using given collection.
func NewResourcesStore(coll *mongo.Collection) *ResourcesStore {
	return &ResourcesStore{coll: coll}
}

// CreateResource inserts a resource document.
func (s *ResourcesStore) CreateResource(ctx context.Context, r *Resource) error {
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetResource finds a resource by id.
func (s *ResourcesStore) GetResource(ctx context.Context, id string) (*Resource, error) {
	var r Resource
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// UpdateResource replaces the stored document with r.
func (s *ResourcesStore) UpdateResource(ctx context.Context, r *Resource) error {
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: r.ID}}, r)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListResources returns resources newest first, optionally narrowed to one
// owner and to visible listings.
func (s *ResourcesStore) ListResources(ctx context.Context, ownerID string, visibleOnly bool) ([]*Resource, error) {
	filter := bson.D{}
	if ownerID != "" {
		filter = append(filter, bson.E{Key: "owner_id", Value: ownerID})
	}
	if visibleOnly {
		filter = append(filter, bson.E{Key: "visible", Value: true})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Resource
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
