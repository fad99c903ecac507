// Package booking admits, prices and moves bookings through their lifecycle.
package booking

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/normalize"
	"github.com/PaulBabatuyi/coova/internal/timerange"
	"github.com/PaulBabatuyi/coova/internal/validation"
)

const (
	maxTransitionAttempts = 3
	defaultListLimit      = 50
	maxListLimit          = 200
	maxAvailabilityWindow = 31 * 24 * time.Hour
)

// Resources is the read side of the listing store the controller needs.
type Resources interface {
	GetResource(ctx context.Context, id string) (*data.Resource, error)
}

// Bookings is implemented by every booking store. InsertBooking must reject
// an overlapping holding booking atomically with data.ErrOverlap.
type Bookings interface {
	InsertBooking(ctx context.Context, b *data.Booking) error
	GetBooking(ctx context.Context, id string) (*data.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, from, to data.BookingStatus, paymentRef string, at time.Time) (*data.Booking, error)
	ListBookings(ctx context.Context, f data.BookingFilter) ([]*data.Booking, error)
}

// Publisher receives booking state changes. Failures never fail the operation.
type Publisher interface {
	PublishBooking(ctx context.Context, ev data.BookingEvent) error
}

// Request is a booking request as it crosses the service boundary.
type Request struct {
	ResourceID  string    `json:"resourceId" validate:"required"`
	RequesterID string    `json:"requesterId" validate:"required"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
	EndsAt      time.Time `json:"endsAt" validate:"required"`
	PartySize   int       `json:"partySize" validate:"gte=0"`
}

// Quote is a pricing preview for an interval on a resource.
type Quote struct {
	ResourceID    string    `json:"resourceId"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	BillableHours int64     `json:"billableHours"`
	PricePerHour  int64     `json:"pricePerHour"`
	TotalMinor    int64     `json:"totalMinorUnits"`
}

// ListQuery selects the bookings an actor can see. As is "requester" (default) or "owner".
type ListQuery struct {
	ActorID    string
	As         string `json:"as" validate:"omitempty,oneof=requester owner"`
	ResourceID string
	Statuses   []data.BookingStatus
	Limit      int `json:"limit" validate:"gte=0"`
}

// Controller owns booking admission and the booking state machine.
type Controller struct {
	resources Resources
	bookings  Bookings
	policy    Policy
	validate  *validation.Validator
	publisher Publisher
	now       func() time.Time
	log       *logrus.Logger
	tracer    trace.Tracer
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets where booking events go.
func WithPublisher(p Publisher) Option { return func(c *Controller) { c.publisher = p } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func NewController(resources Resources, bookings Bookings, policy Policy, logger *logrus.Logger, opts ...Option) *Controller {
	c := &Controller{
		resources: resources,
		bookings:  bookings,
		policy:    policy,
		validate:  validation.New(),
		now:       time.Now,
		log:       logger,
		tracer:    otel.Tracer("github.com/PaulBabatuyi/coova/internal/booking"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) clock() time.Time { return truncate(c.now()) }

// RequestBooking validates, prices and stores a pending booking.
func (c *Controller) RequestBooking(ctx context.Context, req Request) (*data.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.RequestBooking", trace.WithAttributes(
		attribute.String("resource.id", req.ResourceID),
	))
	defer span.End()

	req.ResourceID = normalize.ID(req.ResourceID)
	req.RequesterID = normalize.ID(req.RequesterID)
	if err := c.validate.Struct(req); err != nil {
		return nil, err
	}
	if req.PartySize == 0 {
		req.PartySize = 1
	}

	q, res, err := c.quote(ctx, req.ResourceID, req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, err
	}
	if !res.Visible {
		return nil, apperr.Field("resourceId", "is not accepting bookings")
	}
	if res.OwnerID == req.RequesterID {
		return nil, apperr.Field("requesterId", "cannot book your own listing")
	}
	if res.Capacity > 0 && req.PartySize > res.Capacity {
		return nil, apperr.Field("partySize", "exceeds the resource capacity")
	}

	now := c.clock()
	b := &data.Booking{
		ID:          uuid.NewString(),
		ResourceID:  res.ID,
		OwnerID:     res.OwnerID,
		RequesterID: req.RequesterID,
		StartsAt:    q.StartsAt,
		EndsAt:      q.EndsAt,
		PartySize:   req.PartySize,
		Status:      data.BookingPending,
		TotalMinor:  q.TotalMinor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := c.bookings.InsertBooking(ctx, b); err != nil {
		switch {
		case errors.Is(err, data.ErrOverlap):
			span.SetAttributes(attribute.Bool("booking.conflict", true))
			return nil, apperr.ErrSlotUnavailable
		case errors.Is(err, data.ErrLockBusy):
			span.SetAttributes(attribute.Bool("booking.lock_busy", true))
			return nil, apperr.Conflict("resource is busy with another booking request, try again")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert booking")
			return nil, apperr.Internal("insert booking", err)
		}
	}

	span.SetAttributes(attribute.String("booking.id", b.ID))
	c.log.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"resource_id": b.ResourceID,
		"total":       b.TotalMinor,
	}).Info("booking requested")
	c.publish(ctx, "booking.requested", b.RequesterID, b)
	return b, nil
}

// Quote prices an interval without persisting anything.
func (c *Controller) Quote(ctx context.Context, resourceID string, start, end time.Time) (*Quote, error) {
	q, res, err := c.quote(ctx, normalize.ID(resourceID), start, end)
	if err != nil {
		return nil, err
	}
	if !res.Visible {
		return nil, apperr.NotFound("resource")
	}
	return q, nil
}

func (c *Controller) quote(ctx context.Context, resourceID string, start, end time.Time) (*Quote, *data.Resource, error) {
	if resourceID == "" {
		return nil, nil, apperr.Field("resourceId", "is required")
	}
	r, err := c.policy.interval(start, end, c.clock())
	if err != nil {
		return nil, nil, err
	}
	res, err := c.resources.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, nil, apperr.NotFound("resource")
		}
		return nil, nil, apperr.Internal("load resource", err)
	}
	hours, err := timerange.BillableHours(r.Start, r.End)
	if err != nil {
		return nil, nil, apperr.Field("endsAt", "must be after startsAt")
	}
	if res.PricePerHour <= 0 || hours > math.MaxInt64/res.PricePerHour {
		c.log.WithFields(logrus.Fields{"resource_id": res.ID, "price_per_hour": res.PricePerHour, "hours": hours}).
			Warn("resource price cannot be billed")
		return nil, nil, apperr.Field("pricePerHour", "cannot be billed for this interval")
	}
	return &Quote{
		ResourceID:    res.ID,
		StartsAt:      r.Start,
		EndsAt:        r.End,
		BillableHours: hours,
		PricePerHour:  res.PricePerHour,
		TotalMinor:    hours * res.PricePerHour,
	}, res, nil
}

// TransitionBooking moves a booking on behalf of one of its parties. A
// status that changed underneath is re-read and re-checked a few times
// before giving up with a conflict.
func (c *Controller) TransitionBooking(ctx context.Context, bookingID, actorID string, next data.BookingStatus) (*data.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.TransitionBooking", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("booking.next", string(next)),
	))
	defer span.End()

	bookingID = normalize.ID(bookingID)
	actorID = normalize.ID(actorID)
	if actorID == "" {
		return nil, apperr.Field("actorId", "is required")
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		b, err := c.load(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if actorID != b.RequesterID && actorID != b.OwnerID {
			c.log.WithFields(logrus.Fields{
				"booking_id": bookingID,
				"actor_id":   actorID,
				"next":       next,
			}).Warn("security: transition attempted by non-party")
			return nil, apperr.Forbidden("not a party to this booking")
		}
		if err := checkTransition(b, actorID, next); err != nil {
			if apperr.KindOf(err) == apperr.KindForbidden {
				c.log.WithFields(logrus.Fields{"booking_id": bookingID, "actor_id": actorID, "next": next}).
					Warn("security: transition reserved for the owner")
			}
			return nil, err
		}

		updated, err := c.bookings.UpdateBookingStatus(ctx, bookingID, b.Status, next, "", c.clock())
		switch {
		case err == nil:
			c.log.WithFields(logrus.Fields{"booking_id": bookingID, "from": b.Status, "to": next}).Info("booking transitioned")
			c.publish(ctx, "booking."+string(next), actorID, updated)
			return updated, nil
		case errors.Is(err, data.ErrStaleStatus):
			continue
		case errors.Is(err, data.ErrNotFound):
			return nil, apperr.NotFound("booking")
		default:
			span.RecordError(err)
			return nil, apperr.Internal("update booking", err)
		}
	}
	return nil, apperr.Conflict("booking changed concurrently, try again")
}

// ConfirmPayment marks an accepted booking paid. Confirming an already paid
// booking succeeds without change so redelivered confirmations are harmless.
func (c *Controller) ConfirmPayment(ctx context.Context, bookingID, paymentRef string) (*data.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.ConfirmPayment", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer span.End()

	bookingID = normalize.ID(bookingID)
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		b, err := c.load(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if b.Status == data.BookingPaid {
			return b, nil
		}
		if b.Status != data.BookingAccepted {
			return nil, apperr.InvalidTransition("only accepted bookings can be paid, booking is " + string(b.Status))
		}
		updated, err := c.bookings.UpdateBookingStatus(ctx, bookingID, data.BookingAccepted, data.BookingPaid, paymentRef, c.clock())
		switch {
		case err == nil:
			c.log.WithFields(logrus.Fields{"booking_id": bookingID, "payment_ref": paymentRef}).Info("booking paid")
			c.publish(ctx, "booking.paid", "", updated)
			return updated, nil
		case errors.Is(err, data.ErrStaleStatus):
			continue
		case errors.Is(err, data.ErrNotFound):
			return nil, apperr.NotFound("booking")
		default:
			span.RecordError(err)
			return nil, apperr.Internal("update booking", err)
		}
	}
	return nil, apperr.Conflict("booking changed concurrently, try again")
}

// GetBooking returns a booking to its requester or owner.
func (c *Controller) GetBooking(ctx context.Context, bookingID, actorID string) (*data.Booking, error) {
	b, err := c.load(ctx, normalize.ID(bookingID))
	if err != nil {
		return nil, err
	}
	actorID = normalize.ID(actorID)
	if actorID != b.RequesterID && actorID != b.OwnerID {
		c.log.WithFields(logrus.Fields{"booking_id": b.ID, "actor_id": actorID}).Warn("security: booking read by non-party")
		return nil, apperr.Forbidden("not a party to this booking")
	}
	return b, nil
}

// ListBookings lists bookings where the actor is the requester or the owner.
func (c *Controller) ListBookings(ctx context.Context, q ListQuery) ([]*data.Booking, error) {
	if err := c.validate.Struct(q); err != nil {
		return nil, err
	}
	actor := normalize.ID(q.ActorID)
	if actor == "" {
		return nil, apperr.Field("actorId", "is required")
	}
	f := data.BookingFilter{
		ResourceID: normalize.ID(q.ResourceID),
		Statuses:   q.Statuses,
		Limit:      q.Limit,
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if q.As == "owner" {
		f.OwnerID = actor
	} else {
		f.RequesterID = actor
	}
	out, err := c.bookings.ListBookings(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list bookings", err)
	}
	return out, nil
}

// Availability returns the busy intervals of a resource inside [from, to).
// Only time ranges are exposed, never who holds them.
func (c *Controller) Availability(ctx context.Context, resourceID string, from, to time.Time) ([]timerange.Range, error) {
	window, err := timerange.New(truncate(from), truncate(to))
	if err != nil {
		return nil, apperr.Field("to", "must be after from")
	}
	if window.Duration() > maxAvailabilityWindow {
		return nil, apperr.Field("to", "window must not exceed 31 days")
	}
	resourceID = normalize.ID(resourceID)
	res, err := c.resources.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFound("resource")
		}
		return nil, apperr.Internal("load resource", err)
	}
	if !res.Visible {
		return nil, apperr.NotFound("resource")
	}
	bs, err := c.bookings.ListBookings(ctx, data.BookingFilter{
		ResourceID: resourceID,
		Statuses:   data.HoldingStatuses,
		From:       window.Start,
		To:         window.End,
	})
	if err != nil {
		return nil, apperr.Internal("list bookings", err)
	}
	busy := make([]timerange.Range, 0, len(bs))
	for _, b := range bs {
		busy = append(busy, b.Range())
	}
	return busy, nil
}

func (c *Controller) load(ctx context.Context, id string) (*data.Booking, error) {
	if id == "" {
		return nil, apperr.Field("bookingId", "is required")
	}
	b, err := c.bookings.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFound("booking")
		}
		return nil, apperr.Internal("load booking", err)
	}
	return b, nil
}

func (c *Controller) publish(ctx context.Context, typ, actorID string, b *data.Booking) {
	if c.publisher == nil {
		return
	}
	ev := data.BookingEvent{Type: typ, ActorID: actorID, Booking: b, OccurredAt: c.clock()}
	if err := c.publisher.PublishBooking(ctx, ev); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"booking_id": b.ID, "event": typ}).Warn("publish booking event failed")
	}
}
