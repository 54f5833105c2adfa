// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts domain and infra errors into gRPC status errors.
// Infrastructure failures are reported without their internal details.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && KindOf(err) == KindInternal {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")
	}

	de, ok := As(err)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(GRPCCode(de.Kind), de.Code+": "+de.Message)
}

// GRPCCode maps an error kind to its gRPC code.
func GRPCCode(k Kind) codes.Code {
	switch k {
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.FailedPrecondition
	case KindRateLimited:
		return codes.ResourceExhausted
	case KindUnauthorized:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindInvalidArgument:
		return codes.InvalidArgument
	case KindUpstream, KindStorageUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// HTTPStatus maps err to the HTTP status the REST API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	}

	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this for malformed transport input.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
