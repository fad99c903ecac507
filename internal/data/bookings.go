package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// bookingLock is an advisory lock document, one per resource, held while a
// booking is checked for overlap and inserted.
type bookingLock struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// BookingsStore provides booking database operations.
type BookingsStore struct {
	coll  *mongo.Collection
	locks *mongo.Collection

	// lockTTL bounds how long a crashed writer can block a resource
	lockTTL time.Duration
	// lockWait is how long InsertBooking waits for a busy lock
	lockWait time.Duration
}

// NewBookingsStore returns a BookingsStore. locks must have a TTL index on
// expires_at (see db.CreateIndexes).
func NewBookingsStore(coll, locks *mongo.Collection, lockTTL, lockWait time.Duration) *BookingsStore {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &BookingsStore{coll: coll, locks: locks, lockTTL: lockTTL, lockWait: lockWait}
}

// InsertBooking inserts b unless a holding booking on the same resource
// overlaps it. The lock only serialises well-behaved writers: a holder that
// stalls past lockTTL can lose it, so every holding insert is re-checked
// after it lands and withdrawn if anything else overlaps it.
func (s *BookingsStore) InsertBooking(ctx context.Context, b *Booking) error {
	token, err := s.acquire(ctx, b.ResourceID)
	if err != nil {
		return err
	}
	defer s.release(context.WithoutCancel(ctx), b.ResourceID, token)

	if b.Status.Holds() {
		n, err := s.coll.CountDocuments(ctx, overlapFilter(b, false), options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrOverlap
		}
	}
	return s.insertFenced(ctx, b)
}

// overlapFilter matches holding bookings on b's resource whose
// [starts_at, ends_at) overlaps b. With excludeSelf b's own row is skipped.
func overlapFilter(b *Booking, excludeSelf bool) bson.D {
	filter := bson.D{
		{Key: "resource_id", Value: b.ResourceID},
		{Key: "status", Value: bson.D{{Key: "$in", Value: HoldingStatuses}}},
		{Key: "starts_at", Value: bson.D{{Key: "$lt", Value: b.EndsAt}}},
		{Key: "ends_at", Value: bson.D{{Key: "$gt", Value: b.StartsAt}}},
	}
	if excludeSelf {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: b.ID}}})
	}
	return filter
}

// insertFenced inserts b and, for holding bookings, looks again for any
// other overlapping holder. If one exists b is deleted and ErrOverlap
// returned. Two writers that both land before either re-checks both
// withdraw; no interleaving leaves two overlapping holders behind.
func (s *BookingsStore) insertFenced(ctx context.Context, b *Booking) error {
	if _, err := s.coll.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if !b.Status.Holds() {
		return nil
	}

	n, err := s.coll.CountDocuments(ctx, overlapFilter(b, true), options.Count().SetLimit(1))
	if err == nil && n == 0 {
		return nil
	}
	if _, derr := s.coll.DeleteOne(context.WithoutCancel(ctx), bson.D{{Key: "_id", Value: b.ID}}); derr != nil {
		return fmt.Errorf("withdraw booking %s: %w", b.ID, derr)
	}
	if err != nil {
		return err
	}
	return ErrOverlap
}

// acquire takes the lock for resourceID, retrying with backoff until
// lockWait elapses. Locks past their expiry are taken over.
func (s *BookingsStore) acquire(ctx context.Context, resourceID string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(s.lockWait)
	backoff := 5 * time.Millisecond

	for {
		now := time.Now().UTC()
		lock := bookingLock{ID: resourceID, Token: token, ExpiresAt: now.Add(s.lockTTL), CreatedAt: now}
		_, err := s.locks.InsertOne(ctx, lock)
		if err == nil {
			return token, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return "", err
		}

		// the TTL monitor only runs once a minute; clear stale locks ourselves
		res, err := s.locks.DeleteOne(ctx, bson.D{
			{Key: "_id", Value: resourceID},
			{Key: "expires_at", Value: bson.D{{Key: "$lt", Value: now}}},
		})
		if err != nil {
			return "", err
		}
		if res.DeletedCount > 0 {
			continue
		}

		if time.Now().After(deadline) {
			return "", ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

func (s *BookingsStore) release(ctx context.Context, resourceID, token string) {
	// token match so an expired-and-retaken lock is not released by its old holder
	_, _ = s.locks.DeleteOne(ctx, bson.D{{Key: "_id", Value: resourceID}, {Key: "token", Value: token}})
}

// GetBooking finds a booking by id.
func (s *BookingsStore) GetBooking(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateBookingStatus is a compare-and-set on status: the update only
// applies while the booking is still in from.
func (s *BookingsStore) UpdateBookingStatus(ctx context.Context, id string, from, to BookingStatus, paymentRef string, at time.Time) (*Booking, error) {
	set := bson.D{{Key: "status", Value: to}, {Key: "updated_at", Value: at}}
	if paymentRef != "" {
		set = append(set, bson.E{Key: "payment_ref", Value: paymentRef})
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b Booking
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "status", Value: from}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&b)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// tell a missing booking apart from one whose status moved on
	n, cerr := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrStaleStatus
}

// ListBookings returns bookings matching f ordered by start time.
func (s *BookingsStore) ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, error) {
	filter := bson.D{}
	if f.ResourceID != "" {
		filter = append(filter, bson.E{Key: "resource_id", Value: f.ResourceID})
	}
	if f.RequesterID != "" {
		filter = append(filter, bson.E{Key: "requester_id", Value: f.RequesterID})
	}
	if f.OwnerID != "" {
		filter = append(filter, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	if len(f.Statuses) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: f.Statuses}}})
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		filter = append(filter,
			bson.E{Key: "starts_at", Value: bson.D{{Key: "$lt", Value: f.To}}},
			bson.E{Key: "ends_at", Value: bson.D{{Key: "$gt", Value: f.From}}},
		)
	}

	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
