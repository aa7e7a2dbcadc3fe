package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ctxKey is unexported and zero-sized; context collisions with other
// packages are impossible by construction.
type ctxKey struct{}

const correlationHeader = "X-Correlation-ID"

// CorrelationID tags every request with a correlation identifier. An
// incoming X-Correlation-ID header is reused and echoed back; otherwise a
// fresh UUID is issued. The request logger and handlers read it back with
// GetCorrelationID to tie their log lines to one request.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), ctxKey{}, id),
		))
	})
}

// GetCorrelationID returns the request's correlation identifier, or an
// empty string outside the middleware.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
