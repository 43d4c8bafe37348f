package resilience

import (
	"context"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// redisRetryablePrefixes are server replies that signal a temporary condition.
var redisRetryablePrefixes = []string{
	"LOADING",
	"BUSY",
	"TRYAGAIN",
	"CLUSTERDOWN",
	"MASTERDOWN",
	"READONLY",
}

// IsNetworkError reports whether err comes from the network layer: timeouts,
// refused or reset connections and truncated reads.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// IsTransientRedisError classifies go-redis failures. Network failures and
// overload replies are transient; a closed client, a cancelled caller and
// command errors (WRONGTYPE, syntax) are not.
func IsTransientRedisError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, redis.ErrClosed) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		msg := replyErr.Error()
		for _, prefix := range redisRetryablePrefixes {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
		return false
	}
	return IsNetworkError(err)
}

// IsTransientGRPCError classifies failures from gRPC based clients such as Firestore.
func IsTransientGRPCError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
		return true
	}
	return IsNetworkError(err)
}

// AnyOf combines detectors; a failure is transient if any detector says so.
func AnyOf(detectors ...func(error) bool) func(error) bool {
	return func(err error) bool {
		for _, detect := range detectors {
			if detect != nil && detect(err) {
				return true
			}
		}
		return false
	}
}
