package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/data"
)

// subscribeBuffer is how many undelivered events a connection may queue
// before it is dropped.
const subscribeBuffer = 64

var errQueueFull = errors.New("subscriber queue full")

// StreamSender defines the minimal interface the hub needs from a connection.
type StreamSender interface {
	Send(*v1.Event) error
}

// queuedSender decouples hub fan-out from the stream write loop so a single
// slow client never blocks the sender of a message.
type queuedSender struct {
	events  chan *v1.Event
	dropped chan struct{}
	once    sync.Once
}

func newQueuedSender(size int) *queuedSender {
	return &queuedSender{events: make(chan *v1.Event, size), dropped: make(chan struct{})}
}

func (q *queuedSender) Send(ev *v1.Event) error {
	select {
	case q.events <- ev:
		return nil
	default:
		q.once.Do(func() { close(q.dropped) })
		return errQueueFull
	}
}

// ConnectionHub manages active subscriptions for connected users.
// It maps user ids to one or more active connections so the server can push
// events to every endpoint a user currently has open.
type ConnectionHub struct {
	mu      sync.RWMutex
	streams map[string]map[int64]StreamSender
	nextID  int64
	log     *logrus.Logger
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub(logger *logrus.Logger) *ConnectionHub {
	return &ConnectionHub{streams: make(map[string]map[int64]StreamSender), log: logger}
}

// Register registers a connection for the given user and returns a connection
// id which should be used later to unregister it when it closes.
func (h *ConnectionHub) Register(userID string, s StreamSender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[int64]StreamSender)
	}

	h.nextID++
	id := h.nextID
	h.streams[userID][id] = s
	return id
}

// Unregister removes a previously-registered connection.
func (h *ConnectionHub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.streams[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.streams, userID)
		}
	}
}

// SendToUser attempts to send ev to all currently-connected endpoints of
// userID. It returns an error when the user is not connected, otherwise the
// first send error. Connections that fail are unregistered.
func (h *ConnectionHub) SendToUser(userID string, ev *v1.Event) error {
	h.mu.RLock()
	conns := make(map[int64]StreamSender, len(h.streams[userID]))
	for id, st := range h.streams[userID] {
		conns[id] = st
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user %s not connected", userID)
	}

	var firstErr error
	var failedIDs []int64
	for id, st := range conns {
		if err := st.Send(ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(userID, id)
	}

	return firstErr
}

func (h *ConnectionHub) broadcast(recipients []string, ev *v1.Event) {
	for _, u := range recipients {
		if err := h.SendToUser(u, ev); err != nil {
			// offline users pick the change up on their next read
			h.log.WithError(err).WithFields(logrus.Fields{"user_id": u, "event": ev.Type}).Debug("realtime delivery skipped")
		}
	}
}

// MessageCreated implements chat.Notifier.
func (h *ConnectionHub) MessageCreated(_ context.Context, recipients []string, m *data.Message) {
	h.broadcast(recipients, &v1.Event{Type: "message.created", OccurredAt: m.CreatedAt, Message: v1.FromMessage(m)})
}

// ConversationRead implements chat.Notifier.
func (h *ConnectionHub) ConversationRead(_ context.Context, recipients []string, conversationID, userID string, at time.Time) {
	h.broadcast(recipients, &v1.Event{
		Type:           "conversation.read",
		OccurredAt:     at,
		ConversationID: conversationID,
		UserID:         userID,
		LastReadAt:     &at,
	})
}

// PublishBooking implements booking.Publisher for both parties of a booking.
// Delivery is best effort and never fails the caller.
func (h *ConnectionHub) PublishBooking(_ context.Context, ev data.BookingEvent) error {
	if ev.Booking == nil {
		return nil
	}
	h.broadcast([]string{ev.Booking.RequesterID, ev.Booking.OwnerID}, &v1.Event{
		Type:       ev.Type,
		OccurredAt: ev.OccurredAt,
		Booking:    v1.FromBooking(ev.Booking),
	})
	return nil
}
