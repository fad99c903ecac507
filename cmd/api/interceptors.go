package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/middleware"
)

// publicMethods don't require authentication: pricing and busy intervals are
// shown to anonymous visitors.
var publicMethods = map[string]bool{
	v1.QuoteBookingMethod:    true,
	v1.GetAvailabilityMethod: true,
}

// authenticate verifies the bearer token in the incoming metadata and returns
// ctx carrying its claims.
func authenticate(ctx context.Context, j *auth.JWTManager) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	token := middleware.BearerToken(values[0])
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "malformed authorization header")
	}
	claims, err := j.VerifyToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return auth.NewContext(ctx, claims), nil
}

func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		authed, err := authenticate(ctx, j)
		if err != nil {
			return nil, err
		}
		return handler(authed, req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		authed, err := authenticate(ss.Context(), j)
		if err != nil {
			return err
		}
		return handler(srv, authedStream{ServerStream: ss, ctx: authed})
	}
}

// authedStream overrides Context so handlers see the verified claims.
type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s authedStream) Context() context.Context { return s.ctx }
