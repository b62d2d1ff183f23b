package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type ChatSender interface {
	SendMessage(ctx context.Context, to, message string) error
}

// APICaller performs an outbound call and reports the response status.
// A status outside 2xx must come back as an error.
type APICaller interface {
	Call(ctx context.Context, cfg domain.APIConfig) (statusCode int, err error)
}

type emailAdapter struct{ sender EmailSender }

func Email(s EmailSender) Adapter { return emailAdapter{sender: s} }

func (emailAdapter) Channel() domain.ChannelType { return domain.ChannelEmail }

func (a emailAdapter) Dispatch(ctx context.Context, cfg domain.ActionConfig) Result {
	start := time.Now()
	c, ok := cfg.(domain.EmailConfig)
	if !ok {
		return mismatch(cfg, domain.ChannelEmail)
	}
	return resultOf(a.sender.Send(ctx, c.To, c.Subject, c.Body), 0, start)
}

type chatAdapter struct{ sender ChatSender }

func Chat(s ChatSender) Adapter { return chatAdapter{sender: s} }

func (chatAdapter) Channel() domain.ChannelType { return domain.ChannelChat }

func (a chatAdapter) Dispatch(ctx context.Context, cfg domain.ActionConfig) Result {
	start := time.Now()
	c, ok := cfg.(domain.ChatConfig)
	if !ok {
		return mismatch(cfg, domain.ChannelChat)
	}
	return resultOf(a.sender.SendMessage(ctx, c.To, c.Message), 0, start)
}

type apiAdapter struct{ caller APICaller }

func API(c APICaller) Adapter { return apiAdapter{caller: c} }

func (apiAdapter) Channel() domain.ChannelType { return domain.ChannelAPI }

func (a apiAdapter) Dispatch(ctx context.Context, cfg domain.ActionConfig) Result {
	start := time.Now()
	c, ok := cfg.(domain.APIConfig)
	if !ok {
		return mismatch(cfg, domain.ChannelAPI)
	}
	status, err := a.caller.Call(ctx, c)
	return resultOf(err, status, start)
}

func mismatch(cfg domain.ActionConfig, want domain.ChannelType) Result {
	return resultOf(Permanent(fmt.Errorf("%w: %T is not a %s config", domain.ErrInvalidAction, cfg, want)), 0, time.Now())
}
