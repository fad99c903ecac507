package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/booking"
	"github.com/PaulBabatuyi/coova/internal/chat"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/listing"
)

// actor resolves the user a call acts as from the claims injected by the
// auth interceptor and the optional id carried in the request.
func actor(ctx context.Context, requested string) (string, error) {
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, "missing auth claims")
	}
	return auth.ResolveActor(claims, requested)
}

// viewer is the caller's id, or "" on public methods.
func viewer(ctx context.Context) string {
	if claims, ok := auth.FromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}

func parseStatus(s string) (data.BookingStatus, error) {
	st, ok := data.ParseBookingStatus(s)
	if !ok {
		return "", apperr.Field("status", "must be one of pending accepted declined canceled paid")
	}
	return st, nil
}

// RequestBooking admits a booking request for the caller.
func (s *Server) RequestBooking(ctx context.Context, req *v1.RequestBookingRequest) (*v1.Booking, error) {
	requester, err := actor(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.RequestBooking(ctx, booking.Request{
		ResourceID:  req.ResourceID,
		RequesterID: requester,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		PartySize:   req.PartySize,
	})
	if err != nil {
		return nil, err
	}
	return v1.FromBooking(b), nil
}

func (s *Server) GetBooking(ctx context.Context, req *v1.GetBookingRequest) (*v1.Booking, error) {
	user, err := actor(ctx, "")
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetBooking(ctx, req.BookingID, user)
	if err != nil {
		return nil, err
	}
	return v1.FromBooking(b), nil
}

func (s *Server) ListBookings(ctx context.Context, req *v1.ListBookingsRequest) (*v1.ListBookingsResponse, error) {
	user, err := actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	q := booking.ListQuery{ActorID: user, As: req.As, ResourceID: req.ResourceID, Limit: req.Limit}
	for _, raw := range req.Statuses {
		st, err := parseStatus(raw)
		if err != nil {
			return nil, err
		}
		q.Statuses = append(q.Statuses, st)
	}
	out, err := s.bookings.ListBookings(ctx, q)
	if err != nil {
		return nil, err
	}
	return &v1.ListBookingsResponse{Bookings: v1.FromBookings(out)}, nil
}

// TransitionBooking moves a booking along its lifecycle on behalf of the caller.
func (s *Server) TransitionBooking(ctx context.Context, req *v1.TransitionBookingRequest) (*v1.Booking, error) {
	user, err := actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	next, err := parseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.TransitionBooking(ctx, req.BookingID, user, next)
	if err != nil {
		return nil, err
	}
	return v1.FromBooking(b), nil
}

func (s *Server) QuoteBooking(ctx context.Context, req *v1.QuoteRequest) (*v1.Quote, error) {
	q, err := s.bookings.Quote(ctx, req.ResourceID, req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, err
	}
	return v1.FromQuote(q), nil
}

func (s *Server) GetAvailability(ctx context.Context, req *v1.AvailabilityRequest) (*v1.AvailabilityResponse, error) {
	busy, err := s.bookings.Availability(ctx, req.ResourceID, req.From, req.To)
	if err != nil {
		return nil, err
	}
	return &v1.AvailabilityResponse{ResourceID: req.ResourceID, Busy: v1.FromRanges(busy)}, nil
}

func (s *Server) CreateResource(ctx context.Context, req *v1.CreateResourceRequest) (*v1.Resource, error) {
	owner, err := actor(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	r, err := s.listings.Create(ctx, listing.CreateRequest{
		OwnerID:      owner,
		Title:        req.Title,
		Kind:         req.Kind,
		PricePerHour: req.PricePerHour,
		Capacity:     req.Capacity,
		Visible:      req.Visible,
	})
	if err != nil {
		return nil, err
	}
	return v1.FromResource(r), nil
}

func (s *Server) GetResource(ctx context.Context, req *v1.GetResourceRequest) (*v1.Resource, error) {
	r, err := s.listings.Get(ctx, req.ResourceID, viewer(ctx))
	if err != nil {
		return nil, err
	}
	return v1.FromResource(r), nil
}

func (s *Server) UpdateResource(ctx context.Context, req *v1.UpdateResourceRequest) (*v1.Resource, error) {
	user, err := actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	r, err := s.listings.Update(ctx, req.ResourceID, user, listing.UpdateRequest{
		Title:        req.Title,
		PricePerHour: req.PricePerHour,
		Capacity:     req.Capacity,
		Visible:      req.Visible,
	})
	if err != nil {
		return nil, err
	}
	return v1.FromResource(r), nil
}

func (s *Server) ListResources(ctx context.Context, req *v1.ListResourcesRequest) (*v1.ListResourcesResponse, error) {
	out, err := s.listings.List(ctx, req.OwnerID, viewer(ctx))
	if err != nil {
		return nil, err
	}
	return &v1.ListResourcesResponse{Resources: v1.FromResources(out)}, nil
}

func (s *Server) OpenConversation(ctx context.Context, req *v1.OpenConversationRequest) (*v1.Conversation, error) {
	creator, err := actor(ctx, req.CreatorID)
	if err != nil {
		return nil, err
	}
	c, err := s.chat.OpenConversation(ctx, creator, req.Participants, req.ResourceID)
	if err != nil {
		return nil, err
	}
	return v1.FromConversation(c), nil
}

// SendMessage persists a message; the hub pushes it to connected participants.
func (s *Server) SendMessage(ctx context.Context, req *v1.SendMessageRequest) (*v1.Message, error) {
	sender, err := actor(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	m, err := s.chat.SendMessage(ctx, chat.SendRequest{
		ConversationID: req.ConversationID,
		SenderID:       sender,
		Body:           req.Body,
		Attachments:    v1.ToAttachments(req.Attachments),
		ClientRef:      req.ClientRef,
	})
	if err != nil {
		return nil, err
	}
	return v1.FromMessage(m), nil
}

func (s *Server) ListMessages(ctx context.Context, req *v1.ListMessagesRequest) (*v1.ListMessagesResponse, error) {
	user, err := actor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chat.History(ctx, req.ConversationID, user, req.Before, req.Limit)
	if err != nil {
		return nil, err
	}
	return &v1.ListMessagesResponse{Messages: v1.FromMessages(msgs)}, nil
}

func (s *Server) DeleteMessage(ctx context.Context, req *v1.DeleteMessageRequest) (*v1.DeleteMessageResponse, error) {
	user, err := actor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.chat.DeleteMessage(ctx, req.ConversationID, req.MessageID, user); err != nil {
		return nil, err
	}
	return &v1.DeleteMessageResponse{Deleted: true}, nil
}

func (s *Server) MarkRead(ctx context.Context, req *v1.MarkReadRequest) (*v1.MarkReadResponse, error) {
	user, err := actor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	at, err := s.chat.MarkRead(ctx, req.ConversationID, user)
	if err != nil {
		return nil, err
	}
	return &v1.MarkReadResponse{LastReadAt: at}, nil
}

func (s *Server) GetUnreadCount(ctx context.Context, req *v1.UnreadCountRequest) (*v1.UnreadCountResponse, error) {
	user, err := actor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	n, err := s.chat.UnreadCount(ctx, req.ConversationID, user)
	if err != nil {
		return nil, err
	}
	return &v1.UnreadCountResponse{Count: n}, nil
}

func (s *Server) ListInbox(ctx context.Context, req *v1.InboxRequest) (*v1.InboxResponse, error) {
	user, err := actor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	rows, err := s.chat.ListConversations(ctx, user)
	if err != nil {
		return nil, err
	}
	return &v1.InboxResponse{Conversations: v1.FromSummaries(rows), TotalUnread: chat.SumUnread(rows)}, nil
}

// Subscribe streams realtime events for the authenticated user until the
// client goes away. Events are queued per connection and written from this
// goroutine only.
func (s *Server) Subscribe(_ *v1.SubscribeRequest, stream v1.CoovaService_SubscribeServer) error {
	claims, ok := auth.FromContext(stream.Context())
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	q := newQueuedSender(subscribeBuffer)
	connID := s.hub.Register(claims.UserID, q)
	defer s.hub.Unregister(claims.UserID, connID)

	log := s.log.WithFields(logrus.Fields{"user_id": claims.UserID, "conn_id": connID})
	log.Debug("subscriber connected")
	for {
		select {
		case <-stream.Context().Done():
			log.Debug("subscriber disconnected")
			return nil
		case <-q.dropped:
			log.Warn("subscriber fell behind, closing stream")
			return status.Errorf(codes.ResourceExhausted, "subscriber fell behind, reconnect")
		case ev := <-q.events:
			if err := stream.Send(ev); err != nil {
				log.WithError(err).Info("subscriber send failed")
				return status.Errorf(codes.Unavailable, "failed to send event: %v", err)
			}
		}
	}
}
