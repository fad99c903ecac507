package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
)

// RKPaymentPaid is the routing key of a successful payment.
const RKPaymentPaid = "payment.paid"

// PaymentPaid is the payment gateway's confirmation event.
type PaymentPaid struct {
	Event   string `json:"event"`   // "payment.paid"
	Version int    `json:"version"` // 1
	Data    struct {
		PaymentID string `json:"payment_id"`
		BookingID string `json:"booking_id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// Confirmer marks bookings paid.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, bookingID, paymentRef string) (*data.Booking, error)
}

// DeliverySource yields deliveries; *Consumer implements it.
type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

type disposition int

const (
	ack     disposition = iota
	requeue             // transient failure, try again
	drop                // malformed, never retry
)

// PaymentConsumer applies payment.paid events to bookings.
type PaymentConsumer struct {
	confirmer Confirmer
	source    DeliverySource
	log       *logrus.Logger
}

func NewPaymentConsumer(confirmer Confirmer, source DeliverySource, logger *logrus.Logger) *PaymentConsumer {
	return &PaymentConsumer{confirmer: confirmer, source: source, log: logger}
}

// Run consumes until ctx is canceled or the delivery channel closes.
func (pc *PaymentConsumer) Run(ctx context.Context) error {
	msgs, err := pc.source.Deliveries(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			switch pc.handle(ctx, d.RoutingKey, d.Body) {
			case ack:
				_ = d.Ack(false)
			case requeue:
				_ = d.Nack(false, true)
			case drop:
				_ = d.Nack(false, false)
			}
		}
	}
}

func (pc *PaymentConsumer) handle(ctx context.Context, key string, body []byte) disposition {
	if key != RKPaymentPaid {
		// ignore others
		return ack
	}
	var evt PaymentPaid
	if err := json.Unmarshal(body, &evt); err != nil {
		pc.log.WithError(err).Warn("payment consumer: unmarshal error")
		return drop
	}
	if evt.Data.BookingID == "" || evt.Data.PaymentID == "" {
		pc.log.Warn("payment consumer: invalid event payload")
		return ack
	}

	fields := logrus.Fields{"booking_id": evt.Data.BookingID, "payment_id": evt.Data.PaymentID}
	b, err := pc.confirmer.ConfirmPayment(ctx, evt.Data.BookingID, evt.Data.PaymentID)
	if err == nil {
		if b != nil && evt.Data.Amount != b.TotalMinor {
			// the gateway already captured the money; flag it for reconciliation
			pc.log.WithFields(fields).WithFields(logrus.Fields{
				"amount":   evt.Data.Amount,
				"currency": evt.Data.Currency,
				"expected": b.TotalMinor,
			}).Warn("payment consumer: paid amount differs from booking total")
		}
		pc.log.WithFields(fields).Info("payment applied")
		return ack
	}
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindConflict:
		pc.log.WithError(err).WithFields(fields).Error("payment consumer: confirm failed, requeueing")
		return requeue
	default:
		// not found or wrong state: redelivery cannot help
		pc.log.WithError(err).WithFields(fields).Warn("payment consumer: confirmation rejected")
		return ack
	}
}
