package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/classhub/classhub/pkg/observability"
)

// RequestIDHeader carries the request ID on responses and inbound
// requests from trusted proxies.
const RequestIDHeader = "X-Request-Id"

// RequestID attaches a request ID and a request-scoped logger to the
// context. An inbound X-Request-Id is honored so IDs survive proxy hops.
func RequestID(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			ctx := observability.WithRequestID(r.Context(), requestID)
			ctx = observability.WithLogger(ctx, logger.WithField("request_id", requestID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
