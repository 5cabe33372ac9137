package errs

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ClassifyRPC maps a gRPC transport failure onto the taxonomy, mirroring
// ClassifyStatus/ClassifyTransport for the Gen3 streaming transport.
func ClassifyRPC(err error) Kind {
	if err == nil {
		return 0
	}
	st, ok := status.FromError(err)
	if !ok {
		return ClassifyTransport(err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Unauthenticated, codes.PermissionDenied:
		return Auth
	case codes.Unavailable:
		return Connection
	case codes.Internal:
		return Server
	default:
		return ApiError
	}
}
