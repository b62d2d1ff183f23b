package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/journey-engine/internal/requestid"
)

type jobKey struct{}

type jobAttrs struct {
	jobID      string
	instanceID string
}

// WithJob attaches the job being processed to ctx so every record logged
// under it carries job_id and employee_journey_id.
func WithJob(ctx context.Context, jobID, instanceID string) context.Context {
	return context.WithValue(ctx, jobKey{}, jobAttrs{jobID: jobID, instanceID: instanceID})
}

// ContextHandler wraps an slog.Handler and automatically extracts
// request and job identifiers from the context of each log record.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler returns a handler that enriches every record with
// context values before delegating to inner.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if job, ok := ctx.Value(jobKey{}).(jobAttrs); ok {
		r.AddAttrs(slog.String("job_id", job.jobID), slog.String("employee_journey_id", job.instanceID))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
