package doctor

import (
	"context"
	"fmt"
)

// Identify resolves the identity behind the bot token, e.g. "formbot@acme".
type Identify func(ctx context.Context) (string, error)

// SlackCheck verifies the chat credentials.
type SlackCheck struct {
	botToken      string
	signingSecret string
	identify      Identify
}

// NewSlackCheck creates a new Slack credentials check. identify may be nil,
// in which case the token is not verified against the API.
func NewSlackCheck(botToken, signingSecret string, identify Identify) *SlackCheck {
	return &SlackCheck{botToken: botToken, signingSecret: signingSecret, identify: identify}
}

func (c *SlackCheck) Name() string {
	return "Slack"
}

func (c *SlackCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	switch {
	case c.botToken == "":
		result.Items = append(result.Items, CheckItem{
			Label:  "bot token",
			Status: StatusWarn,
			Detail: "not set, messages will not be delivered",
		})
	case c.identify == nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "bot token",
			Status: StatusPass,
			Detail: "set",
		})
	default:
		who, err := c.identify(ctx)
		if err != nil {
			result.Items = append(result.Items, CheckItem{
				Label:  "bot token",
				Status: StatusFail,
				Detail: fmt.Sprintf("rejected: %v", err),
			})
		} else {
			result.Items = append(result.Items, CheckItem{
				Label:  "bot token",
				Status: StatusPass,
				Detail: who,
			})
		}
	}

	if c.signingSecret == "" {
		result.Items = append(result.Items, CheckItem{
			Label:  "signing secret",
			Status: StatusWarn,
			Detail: "not set, inbound events are not verified",
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "signing secret",
			Status: StatusPass,
			Detail: "set",
		})
	}

	return result
}
