// Package events connects the service to RabbitMQ: booking state changes go
// out on a topic exchange and payment confirmations come back in.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PaulBabatuyi/coova/internal/data"
)

// Envelope is the wire shape of every event: {event, version, data}.
type Envelope struct {
	Event      string    `json:"event"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// BookingPayload is the data of a booking.* event.
type BookingPayload struct {
	BookingID   string `json:"booking_id"`
	ResourceID  string `json:"resource_id"`
	OwnerID     string `json:"owner_id"`
	RequesterID string `json:"requester_id"`
	ActorID     string `json:"actor_id,omitempty"`
	Status      string `json:"status"`
	Start       int64  `json:"start"` // unix seconds
	End         int64  `json:"end"`
	TotalMinor  int64  `json:"total_minor"`
	PaymentRef  string `json:"payment_ref,omitempty"`
}

// Publisher publishes JSON messages to one topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
}

// PublishBooking sends ev with its type as the routing key.
func (p *Publisher) PublishBooking(ctx context.Context, ev data.BookingEvent) error {
	return p.PublishJSON(ctx, ev.Type, BookingEnvelope(ev))
}

// BookingEnvelope converts a booking event to its wire form.
func BookingEnvelope(ev data.BookingEvent) Envelope {
	b := ev.Booking
	return Envelope{
		Event:      ev.Type,
		Version:    1,
		OccurredAt: ev.OccurredAt,
		Data: BookingPayload{
			BookingID:   b.ID,
			ResourceID:  b.ResourceID,
			OwnerID:     b.OwnerID,
			RequesterID: b.RequesterID,
			ActorID:     ev.ActorID,
			Status:      string(b.Status),
			Start:       b.StartsAt.Unix(),
			End:         b.EndsAt.Unix(),
			TotalMinor:  b.TotalMinor,
			PaymentRef:  b.PaymentRef,
		},
	}
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// BookingPublisher is anything that accepts booking events.
type BookingPublisher interface {
	PublishBooking(ctx context.Context, ev data.BookingEvent) error
}

// Fanout delivers a booking event to several publishers (broker, realtime
// hub). Every publisher is tried; errors are joined.
type Fanout []BookingPublisher

func (f Fanout) PublishBooking(ctx context.Context, ev data.BookingEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishBooking(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
