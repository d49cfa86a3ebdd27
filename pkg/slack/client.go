package slack

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	slackgo "github.com/slack-go/slack"

	"github.com/sells-group/lead-intake/internal/resilience"
)

// Client posts messages with a bot token.
type Client interface {
	PostMessage(ctx context.Context, msg Message) (string, error)
}

// Message is a chat.postMessage request.
type Message struct {
	Channel  string
	Text     string
	ThreadTS string
	Mrkdwn   bool
}

// Option configures the client.
type Option func(*apiClient)

// WithBaseURL overrides the Web API base URL.
func WithBaseURL(url string) Option {
	return func(c *apiClient) {
		if url != "" {
			c.opts = append(c.opts, slackgo.OptionAPIURL(strings.TrimRight(url, "/")+"/"))
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *apiClient) {
		c.opts = append(c.opts, slackgo.OptionHTTPClient(hc))
	}
}

// apiClient wraps the slack-go Web API client.
type apiClient struct {
	api  *slackgo.Client
	opts []slackgo.Option
}

// NewClient creates a Web API client for the given bot token.
func NewClient(token string, opts ...Option) Client {
	c := &apiClient{
		opts: []slackgo.Option{slackgo.OptionHTTPClient(&http.Client{Timeout: 15 * time.Second})},
	}
	for _, o := range opts {
		o(c)
	}
	c.api = slackgo.New(token, c.opts...)
	return c
}

// PostMessage sends msg and returns the posted message timestamp.
func (c *apiClient) PostMessage(ctx context.Context, msg Message) (string, error) {
	options := []slackgo.MsgOption{slackgo.MsgOptionText(msg.Text, false)}
	if msg.ThreadTS != "" {
		options = append(options, slackgo.MsgOptionTS(msg.ThreadTS))
	}
	if !msg.Mrkdwn {
		options = append(options, slackgo.MsgOptionDisableMarkdown())
	}

	_, ts, err := c.api.PostMessageContext(ctx, msg.Channel, options...)
	if err != nil {
		return "", eris.Wrap(classify(err), "slack: chat.postMessage")
	}
	return ts, nil
}

// classify marks throttling and server errors as transient.
func classify(err error) error {
	var rl *slackgo.RateLimitedError
	if errors.As(err, &rl) {
		return resilience.NewTransientError(err, http.StatusTooManyRequests)
	}
	var sc slackgo.StatusCodeError
	if errors.As(err, &sc) && resilience.IsTransientHTTPStatus(sc.Code) {
		return resilience.NewTransientError(err, sc.Code)
	}
	return err
}
