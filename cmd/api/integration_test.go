package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/logging"
	"github.com/PaulBabatuyi/coova/internal/middleware"
)

const bufSize = 1024 * 1024

// startBufServer runs the full interceptor chain over an in-memory listener.
func startBufServer(t *testing.T) (v1.CoovaServiceClient, *auth.JWTManager) {
	t.Helper()
	logger := logging.Discard()
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			authUnaryInterceptor(jwtMgr),
			middleware.RateLimitUnaryInterceptor(limiter, map[string]bool{v1.RequestBookingMethod: true}),
			errorsUnaryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(authStreamInterceptor(jwtMgr), errorsStreamInterceptor(logger)),
	)
	registerService(s, newTestServer(t))

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return v1.NewCoovaServiceClient(conn), jwtMgr
}

func withToken(t *testing.T, j *auth.JWTManager, user string) context.Context {
	t.Helper()
	tok, _, err := j.GenerateToken(user)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func TestBookingOverGRPC(t *testing.T) {
	client, j := startBufServer(t)
	owner, guest, rival := withToken(t, j, "owner"), withToken(t, j, "guest"), withToken(t, j, "rival")

	_, err := client.ListInbox(context.Background(), &v1.InboxRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	r, err := client.CreateResource(owner, &v1.CreateResourceRequest{Title: "Studio", Kind: "space", PricePerHour: 2000, Visible: true})
	require.NoError(t, err)

	// quotes are public
	q, err := client.QuoteBooking(context.Background(), &v1.QuoteRequest{ResourceID: r.ID, StartsAt: slot, EndsAt: slot.Add(150 * time.Minute)})
	require.NoError(t, err)
	require.Equal(t, int64(3), q.BillableHours)
	require.Equal(t, int64(6000), q.TotalMinorUnits)

	first, err := client.RequestBooking(guest, &v1.RequestBookingRequest{ResourceID: r.ID, StartsAt: slot.Add(-3 * time.Hour), EndsAt: slot.Add(-time.Hour)})
	require.NoError(t, err)
	require.Equal(t, "pending", first.Status)

	_, err = client.RequestBooking(rival, &v1.RequestBookingRequest{ResourceID: r.ID, StartsAt: slot.Add(-2 * time.Hour), EndsAt: slot})
	require.Equal(t, codes.Aborted, status.Code(err))

	// back to back is fine
	_, err = client.RequestBooking(rival, &v1.RequestBookingRequest{ResourceID: r.ID, StartsAt: slot.Add(-time.Hour), EndsAt: slot.Add(time.Hour)})
	require.NoError(t, err)

	_, err = client.RequestBooking(guest, &v1.RequestBookingRequest{ResourceID: r.ID, StartsAt: slot, EndsAt: slot})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	st := status.Convert(err)
	require.NotEmpty(t, st.Details())
	_, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)

	_, err = client.TransitionBooking(guest, &v1.TransitionBookingRequest{BookingID: first.BookingID, Status: "accepted"})
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.TransitionBooking(owner, &v1.TransitionBookingRequest{BookingID: first.BookingID, Status: "declined"})
	require.NoError(t, err)
	_, err = client.TransitionBooking(owner, &v1.TransitionBookingRequest{BookingID: first.BookingID, Status: "accepted"})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	avail, err := client.GetAvailability(context.Background(), &v1.AvailabilityRequest{ResourceID: r.ID, From: slot.Add(-24 * time.Hour), To: slot.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, avail.Busy, 1, "declined booking no longer holds its slot")
}

func TestSubscribeOverGRPC(t *testing.T) {
	client, j := startBufServer(t)
	alice, bob := withToken(t, j, "alice"), withToken(t, j, "bob")

	conv, err := client.OpenConversation(alice, &v1.OpenConversationRequest{Participants: []string{"bob"}})
	require.NoError(t, err)

	subCtx, cancel := context.WithCancel(bob)
	defer cancel()
	stream, err := client.Subscribe(subCtx, &v1.SubscribeRequest{})
	require.NoError(t, err)

	// the subscription is registered asynchronously; resend until it lands
	got := make(chan *v1.Event, 1)
	go func() {
		ev, err := stream.Recv()
		if err == nil {
			got <- ev
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		_, err := client.SendMessage(alice, &v1.SendMessageRequest{ConversationID: conv.ConversationID, Body: "ping"})
		require.NoError(t, err)
		select {
		case ev := <-got:
			require.Equal(t, "message.created", ev.Type)
			require.Equal(t, "ping", ev.Message.Body)
			require.Equal(t, "alice", ev.Message.SenderID)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no realtime event received")
		}
	}
}
