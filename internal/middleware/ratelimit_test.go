package middleware

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/logging"
)

func TestLimiterStore_AllowAndSweep(t *testing.T) {
	// allow 5 events immediately then the 6th should be rejected
	s := NewLimiterStore(5, 5, 100*time.Millisecond)
	defer s.Stop()

	key := "user:alice"
	for i := 0; i < 5; i++ {
		require.True(t, s.Allow(key), "expected allow at iteration %d", i)
	}
	require.False(t, s.Allow(key), "expected limiter to block after burst consumed")
	require.True(t, s.Allow("user:bob"), "keys are limited independently")
	require.Equal(t, 2, s.Len())

	// idle buckets are forgotten
	s.sweep(time.Now().Add(idleTTL + time.Second))
	require.Zero(t, s.Len())

	s.Stop()
}

func TestKeyFor(t *testing.T) {
	require.Equal(t, "unknown", KeyFor(context.Background()))

	addr := &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 4321}
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: addr})
	require.Equal(t, "peer:10.0.0.7:4321", KeyFor(ctx))

	ctx = auth.NewContext(ctx, &auth.Claims{UserID: "alice"})
	require.Equal(t, "user:alice", KeyFor(ctx))
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	s := NewLimiterStore(60, 1, time.Minute)
	defer s.Stop()

	const limited = "/coova.v1.CoovaService/SendMessage"
	icpt := RateLimitUnaryInterceptor(s, map[string]bool{limited: true})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	ctx := auth.NewContext(context.Background(), &auth.Claims{UserID: "alice"})

	_, err := icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: limited}, handler)
	require.NoError(t, err)
	_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: limited}, handler)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	// other methods are untouched
	for i := 0; i < 3; i++ {
		_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/coova.v1.CoovaService/ListInbox"}, handler)
		require.NoError(t, err)
	}
}

func TestJWTAuthAndRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := auth.NewJWTManager("secret", time.Hour)
	s := NewLimiterStore(60, 1, time.Minute)
	defer s.Stop()

	r := gin.New()
	r.Use(AccessLog(logging.Discard()))
	r.GET("/me", JWTAuth(j), RateLimit(s), func(c *gin.Context) {
		claims, _ := auth.FromContext(c.Request.Context())
		c.String(http.StatusOK, claims.UserID)
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusUnauthorized, do("").Code)
	require.Equal(t, http.StatusUnauthorized, do("Bearer nope").Code)

	tok, _, err := j.GenerateToken("alice")
	require.NoError(t, err)
	w := do("Bearer " + tok)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "alice", w.Body.String())
	require.Equal(t, http.StatusTooManyRequests, do("Bearer "+tok).Code)
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("bearer  abc "))
	require.Empty(t, BearerToken("Basic abc"))
	require.Empty(t, BearerToken(""))
}
