// Package transport streams advisor answers from the chat-completion
// endpoint. It owns the HTTP request lifecycle and drives the sse reader until
// the stream terminates, ends, or fails.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/logger"
	"github.com/papercomputeco/advisor/pkg/sse"
)

// Config is the chat endpoint configuration.
type Config struct {
	// Endpoint is the full URL of the chat-completion endpoint
	// (e.g. "https://<project>.supabase.co/functions/v1/career-advisor").
	Endpoint string

	// Credential is sent as "Authorization: Bearer <Credential>".
	Credential string

	// Timeout bounds a whole exchange including the stream. Zero means no
	// timeout beyond the request context.
	Timeout time.Duration
}

// Option configures a Client created with New.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Config.Timeout is ignored when
// an HTTP client is supplied.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the client logger. Defaults to logger.Nop().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Client streams chat completions. A Client may be shared, but each call to
// Stream owns its own decoder and parser state.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ chat.Streamer = (*Client)(nil)

// chatRequest is the request body sent to the endpoint.
type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// New creates a Client. It returns an error if the endpoint is missing or is
// not an absolute http(s) URL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing chat endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("chat endpoint must be an absolute http(s) URL: %q", cfg.Endpoint)
	}

	c := &Client{
		config: cfg,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	return c, nil
}

// Stream posts messages as the conversation history and calls onDelta with
// every text delta of the answer, in arrival order. It returns nil once the
// endpoint sends [DONE] or closes the stream.
//
// Any failure is returned as an *Error. There is no retry: deltas delivered
// before a mid-stream failure are not taken back.
func (c *Client) Stream(ctx context.Context, messages []chat.Message, onDelta func(string)) error {
	body, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Not required by the endpoint; lets intermediaries skip buffering.
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.config.Credential)

	c.logger.Debug("sending chat request",
		"endpoint", c.config.Endpoint,
		"message_count", len(messages),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: DefaultErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := newStatusError(resp)
		c.logger.Warn("chat endpoint returned error",
			"status", resp.StatusCode,
			"message", terr.Message,
		)
		return terr
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return &Error{StatusCode: resp.StatusCode, Message: DefaultErrorMessage}
	}

	return c.readStream(resp, onDelta, start)
}

// readStream is the read loop: it pulls deltas until the stream terminates or
// ends, forwarding each one to onDelta.
func (c *Client) readStream(resp *http.Response, onDelta func(string), start time.Time) error {
	r := sse.NewReader(resp.Body)

	var deltas int
	for {
		delta, err := r.Next()
		if errors.Is(err, io.EOF) {
			c.logger.Debug("chat stream finished",
				"deltas", deltas,
				"terminated", r.Terminated(),
				"duration", time.Since(start),
			)
			return nil
		}
		if err != nil {
			c.logger.Warn("chat stream interrupted",
				"error", err,
				"deltas", deltas,
			)
			return &Error{
				StatusCode: resp.StatusCode,
				Message:    streamInterruptedMessage,
				Err:        err,
			}
		}

		deltas++
		onDelta(delta)
	}
}
