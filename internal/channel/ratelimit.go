package channel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type limitedAdapter struct {
	next    Adapter
	limiter *rate.Limiter
}

// RateLimited holds each dispatch of next until limiter grants a token. A
// dispatch whose context ends while waiting fails and may be retried.
func RateLimited(next Adapter, limiter *rate.Limiter) Adapter {
	if limiter == nil {
		return next
	}
	return limitedAdapter{next: next, limiter: limiter}
}

func (a limitedAdapter) Channel() domain.ChannelType { return a.next.Channel() }

func (a limitedAdapter) Dispatch(ctx context.Context, cfg domain.ActionConfig) Result {
	start := time.Now()
	if err := a.limiter.Wait(ctx); err != nil {
		return Result{Err: fmt.Errorf("%s rate limit: %w", a.next.Channel(), err), Duration: time.Since(start)}
	}
	return a.next.Dispatch(ctx, cfg)
}

// PerSecond builds a limiter allowing perSecond dispatches with a burst of
// one second's worth. Zero or negative disables limiting.
func PerSecond(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}
