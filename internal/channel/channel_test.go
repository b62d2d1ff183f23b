package channel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/ErlanBelekov/journey-engine/internal/channel"
	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type fakeEmail struct {
	sendFn func(ctx context.Context, to, subject, body string) error
	calls  int
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, body string) error {
	f.calls++
	return f.sendFn(ctx, to, subject, body)
}

type fakeAPI struct {
	callFn func(ctx context.Context, cfg domain.APIConfig) (int, error)
}

func (f *fakeAPI) Call(ctx context.Context, cfg domain.APIConfig) (int, error) {
	return f.callFn(ctx, cfg)
}

var welcome = domain.Action{
	Type:   domain.ChannelEmail,
	Config: domain.EmailConfig{To: "ada@example.com", Subject: "Welcome", Body: "Hello"},
}

func TestRegistryDispatchesByChannel(t *testing.T) {
	var gotTo, gotSubject string
	sender := &fakeEmail{sendFn: func(_ context.Context, to, subject, _ string) error {
		gotTo, gotSubject = to, subject
		return nil
	}}
	r := channel.NewRegistry(channel.Email(sender))

	res := r.Dispatch(context.Background(), welcome)
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if gotTo != "ada@example.com" || gotSubject != "Welcome" {
		t.Fatalf("unexpected send args: %q %q", gotTo, gotSubject)
	}
}

func TestRegistryUnknownChannelIsPermanent(t *testing.T) {
	r := channel.NewRegistry()

	res := r.Dispatch(context.Background(), welcome)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !res.Permanent {
		t.Fatal("expected a permanent failure")
	}
	if !errors.Is(res.Err, channel.ErrNoAdapter) {
		t.Fatalf("expected ErrNoAdapter, got %v", res.Err)
	}
}

func TestRegistryMismatchedConfigIsPermanent(t *testing.T) {
	sender := &fakeEmail{sendFn: func(context.Context, string, string, string) error { return nil }}
	r := channel.NewRegistry(channel.Email(sender))

	res := r.Dispatch(context.Background(), domain.Action{
		Type:   domain.ChannelEmail,
		Config: domain.ChatConfig{To: "+14155550100", Message: "hi"},
	})
	if !res.Permanent {
		t.Fatalf("expected permanent failure, got %+v", res)
	}
	if sender.calls != 0 {
		t.Fatalf("sender must not be called, got %d calls", sender.calls)
	}
}

func TestDispatchFailureKinds(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"transient", errors.New("connection reset"), false},
		{"permanent", channel.Permanent(errors.New("mailbox does not exist")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeEmail{sendFn: func(context.Context, string, string, string) error { return tt.err }}
			res := channel.NewRegistry(channel.Email(sender)).Dispatch(context.Background(), welcome)
			if res.OK() {
				t.Fatal("expected failure")
			}
			if res.Permanent != tt.wantPermanent {
				t.Fatalf("expected permanent=%v, got %v", tt.wantPermanent, res.Permanent)
			}
		})
	}
}

func TestAPIAdapterReportsStatus(t *testing.T) {
	caller := &fakeAPI{callFn: func(context.Context, domain.APIConfig) (int, error) {
		return 503, errors.New("unexpected status code: 503")
	}}
	res := channel.NewRegistry(channel.API(caller)).Dispatch(context.Background(), domain.Action{
		Type:   domain.ChannelAPI,
		Config: domain.APIConfig{URL: "https://hr.example.com", Method: "POST"},
	})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.StatusCode != 503 {
		t.Fatalf("expected status 503, got %d", res.StatusCode)
	}
	if res.Permanent {
		t.Fatal("a 503 should be retried")
	}
}

func TestRateLimitedGivesUpWithContext(t *testing.T) {
	sender := &fakeEmail{sendFn: func(context.Context, string, string, string) error { return nil }}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	a := channel.RateLimited(channel.Email(sender), limiter)

	if res := a.Dispatch(context.Background(), welcome.Config); !res.OK() {
		t.Fatalf("first dispatch should use the burst token: %v", res.Err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := a.Dispatch(ctx, welcome.Config)
	if res.OK() {
		t.Fatal("expected the second dispatch to fail waiting for a token")
	}
	if res.Permanent {
		t.Fatal("rate limit failures must be retryable")
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 send, got %d", sender.calls)
	}
}

func TestPerSecondDisabled(t *testing.T) {
	if channel.PerSecond(0) != nil {
		t.Fatal("expected nil limiter for zero rate")
	}
	sender := &fakeEmail{sendFn: func(context.Context, string, string, string) error { return nil }}
	a := channel.Email(sender)
	if channel.RateLimited(a, nil) != a {
		t.Fatal("nil limiter should return the adapter unchanged")
	}
}
