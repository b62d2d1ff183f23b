package requestid_test

import (
	"context"
	"testing"

	"github.com/ErlanBelekov/journey-engine/internal/requestid"
)

func TestRoundTrip(t *testing.T) {
	ctx := requestid.WithRequestID(context.Background(), "abc")
	if got := requestid.FromContext(ctx); got != "abc" {
		t.Errorf("FromContext = %q, want abc", got)
	}
	if got := requestid.FromContext(context.Background()); got != "" {
		t.Errorf("FromContext on empty ctx = %q, want empty", got)
	}
}

func TestForAttempt(t *testing.T) {
	if got := requestid.ForAttempt("job_7", 2); got != "job_7-2" {
		t.Errorf("ForAttempt = %q, want job_7-2", got)
	}
}
