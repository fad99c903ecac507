package main

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/auth"
)

// grpcCode maps an error kind onto the status code clients see.
func grpcCode(k apperr.Kind) codes.Code {
	switch k {
	case apperr.KindValidation:
		return codes.InvalidArgument
	case apperr.KindConflict:
		return codes.Aborted
	case apperr.KindForbidden:
		return codes.PermissionDenied
	case apperr.KindInvalidTransition:
		return codes.FailedPrecondition
	case apperr.KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// toStatus converts a handler error into a gRPC status error. Errors that
// already carry a status pass through; validation failures get a
// BadRequest detail with one violation per field.
func toStatus(err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if st, ok := status.FromError(err); ok {
			return st.Err()
		}
	}
	code := grpcCode(apperr.KindOf(err))
	msg, fields := apperr.Public(err)
	st := status.New(code, msg)
	if code != codes.InvalidArgument || len(fields) == 0 {
		return st.Err()
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	br := &errdetails.BadRequest{}
	for _, f := range names {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: f, Description: fields[f]})
	}
	withDetails, derr := st.WithDetails(br)
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// logError records failures worth an operator's attention: internal errors
// and refused cross-user access.
func logError(ctx context.Context, logger *logrus.Logger, method string, err error) {
	fields := logrus.Fields{"method": method}
	if claims, ok := auth.FromContext(ctx); ok {
		fields["user_id"] = claims.UserID
	}
	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		if _, isStatus := status.FromError(err); !isStatus {
			logger.WithError(err).WithFields(fields).Error("request failed")
		}
	case apperr.KindForbidden:
		logger.WithError(err).WithFields(fields).Warn("forbidden")
	}
}

// errorsUnaryInterceptor sits innermost so handlers can return domain errors.
func errorsUnaryInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logError(ctx, logger, info.FullMethod, err)
			return nil, toStatus(err)
		}
		return resp, nil
	}
}

func errorsStreamInterceptor(logger *logrus.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := handler(srv, ss); err != nil {
			logError(ss.Context(), logger, info.FullMethod, err)
			return toStatus(err)
		}
		return nil
	}
}
