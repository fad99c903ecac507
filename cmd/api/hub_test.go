package main

import (
	"context"
	"errors"
	"testing"
	"time"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/logging"
)

type fakeSender struct {
	last *v1.Event
	fail bool
}

func (f *fakeSender) Send(ev *v1.Event) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.last = ev
	return nil
}

func TestConnectionHub_RegisterAndSend(t *testing.T) {
	hub := NewConnectionHub(logging.Discard())

	senderA := &fakeSender{}
	senderB := &fakeSender{}

	idA := hub.Register("alice", senderA)
	_ = hub.Register("alice", senderB) // second connection

	ev := &v1.Event{Type: "message.created", Message: &v1.Message{MessageID: "m1", SenderID: "bob", Body: "hello"}}
	if err := hub.SendToUser("alice", ev); err != nil {
		t.Fatalf("expected send success, got error: %v", err)
	}
	if senderA.last == nil || senderA.last.Message.MessageID != "m1" {
		t.Fatalf("sender A did not receive event")
	}
	if senderB.last == nil || senderB.last.Message.MessageID != "m1" {
		t.Fatalf("sender B did not receive event")
	}

	// Unregister senderA and ensure it no longer receives events
	hub.Unregister("alice", idA)

	ev2 := &v1.Event{Type: "message.created", Message: &v1.Message{MessageID: "m2", SenderID: "charlie", Body: "yo"}}
	if err := hub.SendToUser("alice", ev2); err != nil {
		t.Fatalf("expected send success after unregistering one connection: %v", err)
	}
	if senderA.last.Message.MessageID == "m2" {
		t.Fatalf("sender A should not have received second event after unregister")
	}
}

func TestConnectionHub_SendToOffline(t *testing.T) {
	hub := NewConnectionHub(logging.Discard())

	if err := hub.SendToUser("nobody", &v1.Event{}); err == nil {
		t.Fatalf("expected error when sending to offline user")
	}
}

func TestConnectionHub_SendPartialFailure(t *testing.T) {
	hub := NewConnectionHub(logging.Discard())

	ok := &fakeSender{}
	bad := &fakeSender{fail: true}

	_ = hub.Register("dana", ok)
	_ = hub.Register("dana", bad)

	if err := hub.SendToUser("dana", &v1.Event{Type: "x"}); err == nil {
		t.Fatalf("expected error due to partial sender failure")
	}

	// the failing connection was dropped, so the next send only reaches the healthy one
	if err := hub.SendToUser("dana", &v1.Event{Type: "y"}); err != nil {
		t.Fatalf("expected send to succeed after cleanup of failed connections: %v", err)
	}
	if ok.last == nil || ok.last.Type != "y" {
		t.Fatalf("healthy sender did not receive event after cleanup")
	}
}

func TestConnectionHub_PublishBookingReachesBothParties(t *testing.T) {
	hub := NewConnectionHub(logging.Discard())
	guest, owner, other := &fakeSender{}, &fakeSender{}, &fakeSender{}
	hub.Register("guest", guest)
	hub.Register("owner", owner)
	hub.Register("other", other)

	err := hub.PublishBooking(context.Background(), data.BookingEvent{
		Type:       "booking.accepted",
		OccurredAt: time.Now(),
		Booking:    &data.Booking{ID: "b1", RequesterID: "guest", OwnerID: "owner", Status: data.BookingAccepted},
	})
	if err != nil {
		t.Fatalf("PublishBooking: %v", err)
	}
	for name, s := range map[string]*fakeSender{"guest": guest, "owner": owner} {
		if s.last == nil || s.last.Booking == nil || s.last.Booking.Status != "accepted" {
			t.Fatalf("%s did not receive the booking event: %+v", name, s.last)
		}
	}
	if other.last != nil {
		t.Fatalf("unrelated user received a booking event")
	}
}

func TestConnectionHub_NotifierEvents(t *testing.T) {
	hub := NewConnectionHub(logging.Discard())
	bob := &fakeSender{}
	hub.Register("bob", bob)

	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	hub.MessageCreated(context.Background(), []string{"bob", "offline"}, &data.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", Body: "hi", CreatedAt: at})
	if bob.last == nil || bob.last.Type != "message.created" || bob.last.Message.Body != "hi" {
		t.Fatalf("bob did not receive message.created: %+v", bob.last)
	}

	hub.ConversationRead(context.Background(), []string{"bob"}, "c1", "alice", at)
	if bob.last.Type != "conversation.read" || bob.last.UserID != "alice" || !bob.last.LastReadAt.Equal(at) {
		t.Fatalf("bob did not receive conversation.read: %+v", bob.last)
	}
}

func TestQueuedSender_DropsWhenFull(t *testing.T) {
	q := newQueuedSender(1)
	if err := q.Send(&v1.Event{Type: "a"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := q.Send(&v1.Event{Type: "b"}); !errors.Is(err, errQueueFull) {
		t.Fatalf("expected errQueueFull, got %v", err)
	}
	select {
	case <-q.dropped:
	default:
		t.Fatalf("dropped channel not closed after overflow")
	}
	// a second overflow must not panic on the closed channel
	_ = q.Send(&v1.Event{Type: "c"})
}
