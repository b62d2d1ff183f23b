// Package channel dispatches journey actions to the outside world. Each
// channel type has one Adapter; the Registry picks it by the action's type.
package channel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

var ErrNoAdapter = errors.New("no adapter registered for channel")

// Result is the outcome of one dispatch. A zero Err means success.
type Result struct {
	Err        error
	StatusCode int // 0 when the channel reports none
	Duration   time.Duration
	// Permanent marks failures that retrying cannot fix.
	Permanent bool
}

func (r Result) OK() bool { return r.Err == nil }

type Adapter interface {
	Channel() domain.ChannelType
	Dispatch(ctx context.Context, cfg domain.ActionConfig) Result
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// resultOf builds a Result from a sender error and the dispatch start time.
func resultOf(err error, statusCode int, start time.Time) Result {
	return Result{
		Err:        err,
		StatusCode: statusCode,
		Duration:   time.Since(start),
		Permanent:  IsPermanent(err),
	}
}

type Registry struct {
	adapters map[domain.ChannelType]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.ChannelType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Channel()] = a
	}
	return r
}

// Channels lists the registered channel types.
func (r *Registry) Channels() []domain.ChannelType {
	out := make([]domain.ChannelType, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Dispatch sends action through the adapter registered for its type.
func (r *Registry) Dispatch(ctx context.Context, action domain.Action) Result {
	a, ok := r.adapters[action.Type]
	if !ok {
		return Result{Err: Permanent(fmt.Errorf("%w: %s", ErrNoAdapter, action.Type)), Permanent: true}
	}
	if action.Config == nil || action.Config.Channel() != action.Type {
		return Result{Err: Permanent(fmt.Errorf("%w: config does not match %s", domain.ErrInvalidAction, action.Type)), Permanent: true}
	}
	return a.Dispatch(ctx, action.Config)
}
