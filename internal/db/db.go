// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Collection names.
const (
	Resources     = "resources"
	Bookings      = "bookings"
	BookingLocks  = "booking_locks"
	Conversations = "conversations"
	Messages      = "messages"
	ReadCursors   = "read_cursors"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a Client bound to the named database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	// fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Connect is lazy; ping is the actual connection test
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if database == "" {
		database = "coova"
	}
	return &Client{client: client, db: client.Database(database)}, nil
}

// Collection returns a collection by name.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

func (c *Client) ResourcesCollection() *mongo.Collection { return c.db.Collection(Resources) }

func (c *Client) BookingsCollection() *mongo.Collection { return c.db.Collection(Bookings) }

func (c *Client) BookingLocksCollection() *mongo.Collection { return c.db.Collection(BookingLocks) }

func (c *Client) ConversationsCollection() *mongo.Collection { return c.db.Collection(Conversations) }

func (c *Client) MessagesCollection() *mongo.Collection { return c.db.Collection(Messages) }

func (c *Client) ReadCursorsCollection() *mongo.Collection { return c.db.Collection(ReadCursors) }

// Drop removes every collection this package manages. Used by integration tests.
func (c *Client) Drop(ctx context.Context) error {
	for _, name := range []string{Resources, Bookings, BookingLocks, Conversations, Messages, ReadCursors} {
		if err := c.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes every store relies on. Keys are bson.D
// so compound key order is preserved.
func (c *Client) CreateIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		Resources: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		Bookings: {
			// overlap lookups: resource + status, then range bounds
			{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "status", Value: 1}, {Key: "starts_at", Value: 1}, {Key: "ends_at", Value: 1}}},
			{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "starts_at", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "starts_at", Value: 1}}},
		},
		BookingLocks: {
			// abandoned locks are reaped by the TTL monitor
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		Conversations: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
		},
		Messages: {
			// history pagination and unread counting
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ReadCursors: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := c.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}
