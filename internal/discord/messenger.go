package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/fadebot/internal/voice"
	"github.com/keshon/fadebot/pkg/ratelimit"
	"golang.org/x/time/rate"
)

// MessageSender is the subset of *discordgo.Session used for chat output.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Messenger posts plain text, paced by an adaptive limiter. A failed
// send is returned to the caller and never retried.
type Messenger struct {
	sender  MessageSender
	limiter *ratelimit.AdaptiveLimiter
}

func NewMessenger(sender MessageSender, perSecond float64) *Messenger {
	return &Messenger{
		sender:  sender,
		limiter: ratelimit.NewAdaptiveLimiter(rateOf(perSecond), 1, rateOf(perSecond*2), 1, 0.5),
	}
}

func (m *Messenger) Send(ctx context.Context, channelID, text string) error {
	err := m.limiter.Do(ctx, func() error {
		_, err := m.sender.ChannelMessageSend(channelID, text)
		return statusOf(err)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", voice.ErrSendFailed, err)
	}
	return nil
}

// restStatus exposes the HTTP status of a discordgo REST failure.
type restStatus struct {
	*discordgo.RESTError
}

func (r restStatus) StatusCode() int { return r.Response.StatusCode }
func (r restStatus) Unwrap() error   { return r.RESTError }

func statusOf(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return restStatus{rest}
	}
	return err
}

func rateOf(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return 1
	}
	return rate.Limit(perSecond)
}
