// Package requestid carries a correlation id through a context. HTTP
// requests get one from the X-Request-ID header; processor runs derive one
// from the job attempt so outbound API calls can be traced and deduplicated.
package requestid

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Header is the HTTP header the id travels in, inbound and outbound.
const Header = "X-Request-ID"

type ctxKey struct{}

// New generates a random UUID v4 request ID.
func New() string {
	return uuid.NewString()
}

// ForAttempt is the stable id of one dispatch attempt of a job.
func ForAttempt(jobID string, attempt int) string {
	return fmt.Sprintf("%s-%d", jobID, attempt)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
