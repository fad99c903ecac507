package data

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/coova/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	t.Helper()
	// no env loader; require MONGODB_URI set externally for integration tests
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "coova_data_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	// ensure clean collections in case previous runs left data
	_ = c.Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Drop(context.Background())
		_ = c.Close(context.Background())
	})
	return c
}

func ts(h, m int) time.Time { return time.Date(2031, 1, 2, h, m, 0, 0, time.UTC) }

func TestMessagesSaveAndQuery(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	msgs := NewMessagesStore(c.MessagesCollection())

	for i, sender := range []string{"a", "b", "b", "b"} {
		m := &Message{ID: string(rune('1' + i)), ConversationID: "c1", SenderID: sender, Body: "hi", CreatedAt: ts(10, i)}
		if err := msgs.InsertMessage(ctx, m); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}
	_ = msgs.InsertMessage(ctx, &Message{ID: "other", ConversationID: "c2", SenderID: "b", Body: "elsewhere", CreatedAt: ts(9, 0)})

	page, err := msgs.ListMessages(ctx, "c1", time.Time{}, 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "3" || page[1].ID != "4" {
		t.Fatalf("unexpected newest page: %+v", page)
	}

	n, err := msgs.CountUnread(ctx, "c1", "a", ts(10, 1))
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 unread, got %d", n)
	}

	if err := msgs.SoftDeleteMessage(ctx, "4", ts(11, 0)); err != nil {
		t.Fatalf("SoftDeleteMessage failed: %v", err)
	}
	if _, err := msgs.GetMessage(ctx, "4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted message still readable: %v", err)
	}

	last, err := msgs.LastMessages(ctx, []string{"c1", "c2", "empty"})
	if err != nil {
		t.Fatalf("LastMessages failed: %v", err)
	}
	if last["c1"].ID != "3" || last["c2"].ID != "other" {
		t.Fatalf("unexpected previews: %+v", last)
	}
	if _, ok := last["empty"]; ok {
		t.Fatalf("conversation without messages must have no preview")
	}
}

func TestCursorsAdvanceMonotonically(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	cursors := NewCursorsStore(c.ReadCursorsCollection())

	if _, err := cursors.GetReadCursor(ctx, "c1", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cur, err := cursors.AdvanceReadCursor(ctx, "c1", "u1", ts(12, 0))
	if err != nil {
		t.Fatalf("AdvanceReadCursor failed: %v", err)
	}
	if !cur.LastReadAt.Equal(ts(12, 0)) {
		t.Fatalf("unexpected cursor %v", cur.LastReadAt)
	}
	cur, err = cursors.AdvanceReadCursor(ctx, "c1", "u1", ts(11, 0))
	if err != nil {
		t.Fatalf("AdvanceReadCursor failed: %v", err)
	}
	if !cur.LastReadAt.Equal(ts(12, 0)) {
		t.Fatalf("cursor moved backward to %v", cur.LastReadAt)
	}
}

func TestConversationsDedupeAndTouch(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	convs := NewConversationsStore(c.ConversationsCollection())

	key := ConversationKey("r1", []string{"b", "a"})
	conv := &Conversation{ID: "c1", ResourceID: "r1", Participants: []string{"a", "b"}, Key: key, CreatedAt: ts(8, 0), LastMessageAt: ts(8, 0)}
	if err := convs.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	dup := *conv
	dup.ID = "c2"
	if err := convs.CreateConversation(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := convs.TouchConversation(ctx, "c1", ts(9, 0)); err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}
	if err := convs.TouchConversation(ctx, "c1", ts(7, 0)); err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}
	got, err := convs.FindConversation(ctx, key)
	if err != nil {
		t.Fatalf("FindConversation failed: %v", err)
	}
	if !got.LastMessageAt.Equal(ts(9, 0)) {
		t.Fatalf("last_message_at moved backward: %v", got.LastMessageAt)
	}

	list, err := convs.ListConversationsFor(ctx, "b")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListConversationsFor: %v %d", err, len(list))
	}
}

func TestBookingsConcurrentInsertHasOneWinner(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	bookings := NewBookingsStore(c.BookingsCollection(), c.BookingLocksCollection(), 5*time.Second, 5*time.Second)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		lost int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := &Booking{
				ID: "b" + string(rune('a'+i)), ResourceID: "r1", OwnerID: "host", RequesterID: "guest",
				StartsAt: ts(10, 0), EndsAt: ts(12, 0), Status: BookingPending,
			}
			err := bookings.InsertBooking(ctx, b)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrOverlap), errors.Is(err, ErrLockBusy):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if won != 1 || lost != n-1 {
		t.Fatalf("expected exactly one winner, got won=%d lost=%d", won, lost)
	}

	// back to back is fine, and a CAS on a stale status fails
	if err := bookings.InsertBooking(ctx, &Booking{ID: "next", ResourceID: "r1", StartsAt: ts(12, 0), EndsAt: ts(13, 0), Status: BookingPending}); err != nil {
		t.Fatalf("back-to-back insert failed: %v", err)
	}
	if _, err := bookings.UpdateBookingStatus(ctx, "next", BookingAccepted, BookingPaid, "", ts(9, 0)); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}
	if _, err := bookings.UpdateBookingStatus(ctx, "missing", BookingPending, BookingAccepted, "", ts(9, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := bookings.ListBookings(ctx, BookingFilter{ResourceID: "r1", Statuses: HoldingStatuses})
	if err != nil || len(list) != 2 {
		t.Fatalf("ListBookings: %v %d", err, len(list))
	}
}

func TestBookingsStaleLockHolderIsFenced(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	bookings := NewBookingsStore(c.BookingsCollection(), c.BookingLocksCollection(), time.Second, time.Second)

	// an expired lock left by a stalled writer is taken over
	stale := bookingLock{ID: "r2", Token: "stalled", ExpiresAt: time.Now().Add(-time.Minute), CreatedAt: time.Now().Add(-2 * time.Minute)}
	if _, err := c.BookingLocksCollection().InsertOne(ctx, stale); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	first := &Booking{ID: "first", ResourceID: "r2", StartsAt: ts(10, 0), EndsAt: ts(12, 0), Status: BookingPending}
	if err := bookings.InsertBooking(ctx, first); err != nil {
		t.Fatalf("takeover insert failed: %v", err)
	}

	// the stalled writer passed its overlap check before first landed;
	// its insert must be withdrawn rather than kept alongside first
	late := &Booking{ID: "late", ResourceID: "r2", StartsAt: ts(11, 0), EndsAt: ts(13, 0), Status: BookingPending}
	if err := bookings.insertFenced(ctx, late); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if _, err := bookings.GetBooking(ctx, "late"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("late booking should have been withdrawn, got %v", err)
	}
	if _, err := bookings.GetBooking(ctx, "first"); err != nil {
		t.Fatalf("first booking must survive: %v", err)
	}

	// non-holding rows never collide
	declined := &Booking{ID: "declined", ResourceID: "r2", StartsAt: ts(11, 0), EndsAt: ts(13, 0), Status: BookingDeclined}
	if err := bookings.insertFenced(ctx, declined); err != nil {
		t.Fatalf("non-holding insert failed: %v", err)
	}
}
