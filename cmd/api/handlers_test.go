package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/booking"
	"github.com/PaulBabatuyi/coova/internal/chat"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/listing"
	"github.com/PaulBabatuyi/coova/internal/logging"
)

var slot = time.Date(2030, 3, 4, 13, 0, 0, 0, time.UTC)

// newTestServer wires a Server over the in-memory store the same way main does.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logging.Discard()
	be := memoryBackend()
	hub := NewConnectionHub(logger)
	bookings := booking.NewController(be.resources, be.bookings, booking.DefaultPolicy(), logger, booking.WithPublisher(hub))
	chatSvc := chat.NewService(be.chat, logger, chat.WithNotifier(hub))
	listings := listing.NewService(be.resources, logger)
	return newServer(bookings, chatSvc, listings, hub, logger)
}

func as(user string) context.Context {
	return auth.NewContext(context.Background(), &auth.Claims{UserID: user})
}

func createListing(t *testing.T, s *Server, owner string) *v1.Resource {
	t.Helper()
	r, err := s.CreateResource(as(owner), &v1.CreateResourceRequest{Title: "Loft", Kind: "space", PricePerHour: 2000, Visible: true})
	require.NoError(t, err)
	return r
}

func TestRequestBooking_ActsAsCaller(t *testing.T) {
	s := newTestServer(t)
	r := createListing(t, s, "owner")

	b, err := s.RequestBooking(as("guest"), &v1.RequestBookingRequest{
		ResourceID: r.ID,
		StartsAt:   slot,
		EndsAt:     slot.Add(150 * time.Minute),
	})
	require.NoError(t, err)
	require.Equal(t, "guest", b.RequesterID)
	require.Equal(t, "owner", b.OwnerID)
	require.Equal(t, "pending", b.Status)
	require.Equal(t, int64(6000), b.TotalMinorUnits)

	_, err = s.RequestBooking(as("guest"), &v1.RequestBookingRequest{
		ResourceID:  r.ID,
		RequesterID: "someone-else",
		StartsAt:    slot.Add(24 * time.Hour),
		EndsAt:      slot.Add(26 * time.Hour),
	})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestHandlers_RequireClaims(t *testing.T) {
	s := newTestServer(t)
	_, err := s.ListInbox(context.Background(), &v1.InboxRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestTransitionBooking_ParsesStatus(t *testing.T) {
	s := newTestServer(t)
	r := createListing(t, s, "owner")
	b, err := s.RequestBooking(as("guest"), &v1.RequestBookingRequest{ResourceID: r.ID, StartsAt: slot, EndsAt: slot.Add(2 * time.Hour)})
	require.NoError(t, err)

	_, err = s.TransitionBooking(as("owner"), &v1.TransitionBookingRequest{BookingID: b.BookingID, Status: "approved"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.TransitionBooking(as("guest"), &v1.TransitionBookingRequest{BookingID: b.BookingID, Status: "accepted"})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	got, err := s.TransitionBooking(as("owner"), &v1.TransitionBookingRequest{BookingID: b.BookingID, Status: "Accepted"})
	require.NoError(t, err)
	require.Equal(t, "accepted", got.Status)

	list, err := s.ListBookings(as("owner"), &v1.ListBookingsRequest{As: "owner", Statuses: []string{"accepted"}})
	require.NoError(t, err)
	require.Len(t, list.Bookings, 1)
}

func TestInboxFlow(t *testing.T) {
	s := newTestServer(t)
	r := createListing(t, s, "owner")

	conv, err := s.OpenConversation(as("guest"), &v1.OpenConversationRequest{Participants: []string{"owner"}, ResourceID: r.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"guest", "owner"}, conv.Participants)

	for _, body := range []string{"hi", "is it free friday?", "thanks"} {
		_, err := s.SendMessage(as("guest"), &v1.SendMessageRequest{ConversationID: conv.ConversationID, Body: body})
		require.NoError(t, err)
	}

	n, err := s.GetUnreadCount(as("owner"), &v1.UnreadCountRequest{ConversationID: conv.ConversationID})
	require.NoError(t, err)
	require.Equal(t, int64(3), n.Count)

	inbox, err := s.ListInbox(as("owner"), &v1.InboxRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(3), inbox.TotalUnread)
	require.Len(t, inbox.Conversations, 1)
	require.Equal(t, "thanks", inbox.Conversations[0].LastMessage.Text)
	require.Equal(t, "Loft", inbox.Conversations[0].Resource.Title)

	_, err = s.MarkRead(as("owner"), &v1.MarkReadRequest{ConversationID: conv.ConversationID})
	require.NoError(t, err)
	n, err = s.GetUnreadCount(as("owner"), &v1.UnreadCountRequest{ConversationID: conv.ConversationID})
	require.NoError(t, err)
	require.Zero(t, n.Count)

	_, err = s.ListMessages(as("stranger"), &v1.ListMessagesRequest{ConversationID: conv.ConversationID})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{apperr.Field("endsAt", "must be after startsAt"), codes.InvalidArgument},
		{apperr.ErrSlotUnavailable, codes.Aborted},
		{apperr.Forbidden("not a participant"), codes.PermissionDenied},
		{apperr.InvalidTransition("declined -> accepted"), codes.FailedPrecondition},
		{apperr.NotFound("booking"), codes.NotFound},
		{apperr.Internal("insert booking", errors.New("disk full")), codes.Internal},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Unauthenticated, "no token"), codes.Unauthenticated},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, status.Code(toStatus(tc.err)), "%v", tc.err)
	}

	st := status.Convert(toStatus(apperr.Internal("insert booking", errors.New("disk full"))))
	require.NotContains(t, st.Message(), "disk full")

	st = status.Convert(toStatus(apperr.Validation("bad", map[string]string{"startsAt": "is required", "endsAt": "is required"})))
	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, br.GetFieldViolations(), 2)
	require.Equal(t, "endsAt", br.GetFieldViolations()[0].GetField())
}

// fakeStream implements the server side of the Subscribe stream.
type fakeStream struct {
	ctx  context.Context
	sent chan *v1.Event
}

func (f *fakeStream) Send(ev *v1.Event) error { f.sent <- ev; return nil }
func (f *fakeStream) Context() context.Context { return f.ctx }

// The following methods are part of grpc.ServerStream.
func (f *fakeStream) SetHeader(md metadata.MD) error  { return nil }
func (f *fakeStream) SendHeader(md metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(md metadata.MD)       {}
func (f *fakeStream) RecvMsg(m any) error             { return nil }
func (f *fakeStream) SendMsg(m any) error {
	ev, ok := m.(*v1.Event)
	if !ok {
		return errors.New("SendMsg: unexpected type")
	}
	return f.Send(ev)
}

func TestSubscribe_DeliversAndUnregisters(t *testing.T) {
	s := newTestServer(t)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.log = logger
	ctx, cancel := context.WithCancel(as("owner"))
	stream := &fakeStream{ctx: ctx, sent: make(chan *v1.Event, 4)}

	done := make(chan error, 1)
	go func() { done <- s.Subscribe(&v1.SubscribeRequest{}, stream) }()

	// wait for the subscription to be registered
	require.Eventually(t, func() bool {
		s.hub.mu.RLock()
		defer s.hub.mu.RUnlock()
		return len(s.hub.streams["owner"]) == 1
	}, time.Second, 5*time.Millisecond)

	r := createListing(t, s, "owner")
	_, err := s.RequestBooking(as("guest"), &v1.RequestBookingRequest{ResourceID: r.ID, StartsAt: slot, EndsAt: slot.Add(time.Hour)})
	require.NoError(t, err)

	select {
	case ev := <-stream.sent:
		require.Equal(t, "booking.requested", ev.Type)
		require.Equal(t, r.ID, ev.Booking.ResourceID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	require.NoError(t, <-done)
	require.Error(t, s.hub.SendToUser("owner", &v1.Event{}), "owner should be unregistered after the stream ends")

	var msgs []string
	for _, e := range hook.AllEntries() {
		require.Equal(t, "owner", e.Data["user_id"])
		msgs = append(msgs, e.Message)
	}
	require.Equal(t, []string{"subscriber connected", "subscriber disconnected"}, msgs)
}

// chattyConversations lets a message arrive after the first inbox read of
// each call, the way a live sender would.
type chattyConversations struct {
	chat.Conversations
	messages chat.Messages
	convID   string
	reads    int
}

func (c *chattyConversations) ListConversationsFor(ctx context.Context, userID string) ([]*data.Conversation, error) {
	c.reads++
	if c.reads > 1 && c.convID != "" {
		_ = c.messages.InsertMessage(ctx, &data.Message{
			ID: fmt.Sprintf("late-%d", c.reads), ConversationID: c.convID, SenderID: "guest",
			Body: "still there?", CreatedAt: time.Now().UTC(),
		})
	}
	return c.Conversations.ListConversationsFor(ctx, userID)
}

func TestListInbox_TotalMatchesRows(t *testing.T) {
	logger := logging.Discard()
	be := memoryBackend()
	chatty := &chattyConversations{Conversations: be.chat.Conversations, messages: be.chat.Messages}
	stores := be.chat
	stores.Conversations = chatty
	hub := NewConnectionHub(logger)
	s := newServer(
		booking.NewController(be.resources, be.bookings, booking.DefaultPolicy(), logger),
		chat.NewService(stores, logger, chat.WithNotifier(hub)),
		listing.NewService(be.resources, logger),
		hub, logger,
	)

	conv, err := s.OpenConversation(as("guest"), &v1.OpenConversationRequest{Participants: []string{"owner"}})
	require.NoError(t, err)
	_, err = s.SendMessage(as("guest"), &v1.SendMessageRequest{ConversationID: conv.ConversationID, Body: "hello"})
	require.NoError(t, err)
	chatty.convID = conv.ConversationID
	chatty.reads = 0

	inbox, err := s.ListInbox(as("owner"), &v1.InboxRequest{})
	require.NoError(t, err)
	var sum int64
	for _, c := range inbox.Conversations {
		sum += c.UnreadCount
	}
	require.Equal(t, sum, inbox.TotalUnread)
	require.Equal(t, int64(1), inbox.TotalUnread)
}
