// Package slack connects formbot to Slack: the outbound notifier and the
// Events API endpoint.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/colonyops/formbot/internal/core/notify"
)

// Client posts messages and reactions through the Slack Web API.
type Client struct {
	api     *goslack.Client
	timeout time.Duration
}

var _ notify.Notifier = (*Client)(nil)

// NewClient creates a Client for the bot token. Every call is bounded by
// timeout.
func NewClient(token string, timeout time.Duration, opts ...goslack.Option) *Client {
	opts = append([]goslack.Option{goslack.OptionHTTPClient(&http.Client{Timeout: timeout})}, opts...)
	return &Client{
		api:     goslack.New(token, opts...),
		timeout: timeout,
	}
}

// Send posts text to channel, threaded under thread when it is set. Links
// and mentions are not expanded.
func (c *Client) Send(ctx context.Context, channel, text, thread string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []goslack.MsgOption{goslack.MsgOptionText(text, false)}
	if thread != "" {
		opts = append(opts, goslack.MsgOptionTS(thread))
	}

	if _, _, err := c.api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("post message to %s: %w", channel, err)
	}
	return nil
}

// AddMarker adds the reaction named marker to a message. A reaction that is
// already present is not an error.
func (c *Client) AddMarker(ctx context.Context, channel, messageTS, marker string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.api.AddReactionContext(ctx, marker, goslack.NewRefToMessage(channel, messageTS))
	if err != nil && !isAlreadyReacted(err) {
		return fmt.Errorf("add reaction to %s/%s: %w", channel, messageTS, err)
	}
	return nil
}

// Identify verifies the token and returns "user@team".
func (c *Client) Identify(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", err
	}
	return resp.User + "@" + resp.Team, nil
}

func isAlreadyReacted(err error) bool {
	var slackErr goslack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err == "already_reacted"
	}
	return err.Error() == "already_reacted"
}
