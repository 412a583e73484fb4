// Package relay serves the career-advisor chat endpoint. It validates the
// client's conversation, prepends the advisor system prompt and streams the
// answer of an OpenAI-compatible upstream back to the client byte for byte,
// while assembling the answer text to publish a completed-turn event.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/eventstream"
	"github.com/papercomputeco/advisor/pkg/logger"
	"github.com/papercomputeco/advisor/pkg/relay/header"
	"github.com/papercomputeco/advisor/pkg/relay/worker"
	"github.com/papercomputeco/advisor/pkg/sse"
	"github.com/papercomputeco/advisor/pkg/utils"
)

const (
	// ChatPath is the path of the hosted career-advisor function, kept so
	// clients can switch between the hosted function and the relay by host.
	ChatPath = "/functions/v1/career-advisor"

	// ChatAliasPath is a short alias of ChatPath.
	ChatAliasPath = "/chat"

	defaultUpstreamTimeout = 5 * time.Minute

	// maxLoggedBody bounds upstream error bodies in logs.
	maxLoggedBody = 512
)

// Error bodies returned to the client.
const (
	errUnauthorized     = "Unauthorized"
	errMessagesRequired = "messages are required"
	errRateLimited      = "Rate limits exceeded, please try again later."
	errPaymentRequired  = "Payment required, please add funds to your workspace."
	errGateway          = "AI gateway error"
)

const roleSystem chat.Role = "system"

// ErrorResponse is the JSON error body of a failed relay request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// chatRequest is the body a client posts.
type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// upstreamRequest is the OpenAI-compatible chat completion request.
type upstreamRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// Relay is the career-advisor chat endpoint backed by an upstream model.
type Relay struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Relay. Completed turns are published through publisher
// by a background worker pool; the caller keeps ownership of publisher and
// closes it after Close returns.
func New(config Config, publisher eventstream.Publisher, log *slog.Logger) (*Relay, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if config.Model == "" {
		return nil, errors.New("model is required")
	}
	if config.UpstreamTimeout == 0 {
		config.UpstreamTimeout = defaultUpstreamTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	wp, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:    header.RequestIDHeader,
		Generator: uuid.NewString,
	}))
	// The hosted function is called from browsers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
	}))

	r := &Relay{
		config:        config,
		workerPool:    wp,
		logger:        log,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			Timeout: config.UpstreamTimeout,
		},
	}

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	app.Post(ChatPath, r.handleChat)
	app.Post(ChatAliasPath, r.handleChat)

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"upstream", r.config.UpstreamURL,
		"model", r.config.Model,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"upstream", r.config.UpstreamURL,
		"model", r.config.Model,
	)

	return r.server.Listener(listener)
}

// Close stops accepting requests and then waits for queued turn events to be
// published.
func (r *Relay) Close() error {
	err := r.server.Shutdown()
	r.workerPool.Close()
	return err
}

// handleChat validates the client request and forwards it upstream.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	if r.config.Credential != "" {
		token, ok := header.BearerToken(c)
		if !ok || token != r.config.Credential {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: errUnauthorized})
		}
	}

	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: errMessagesRequired})
	}

	body, err := json.Marshal(upstreamRequest{
		Model:    r.config.Model,
		Messages: r.withSystemPrompt(req.Messages),
		Stream:   true,
	})
	if err != nil {
		r.logger.Error("failed to encode upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errGateway})
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the answer is streamed by a
	// separate goroutine that needs the upstream connection to remain open.
	upstreamURL := strings.TrimSuffix(r.config.UpstreamURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		r.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errGateway})
	}

	r.headerHandler.SetUpstreamRequestHeaders(c, httpReq, r.config.UpstreamKey)

	// fiber strings point into recycled buffers unless copied.
	requestID := strings.Clone(c.GetRespHeader(header.RequestIDHeader))
	r.logger.Debug("forwarding chat request to upstream",
		"request_id", requestID,
		"url", upstreamURL,
		"message_count", len(req.Messages),
	)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		r.logger.Error("upstream request failed", "request_id", requestID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errGateway})
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return r.handleUpstreamError(c, httpResp, requestID)
	}

	r.headerHandler.SetClientResponseHeaders(c, httpResp)
	if httpResp.Header.Get(fiber.HeaderContentType) == "" {
		c.Set(fiber.HeaderContentType, "text/event-stream")
	}

	// io.Pipe + SetBodyStream rather than SetBodyStreamWriter: pw.Write blocks
	// until fasthttp's chunked body writer has consumed the data and flushed
	// it to the socket, so every upstream chunk reaches the client as it
	// arrives.
	pr, pw := io.Pipe()
	go r.streamToPipe(httpResp, pw, turnContext{
		requestID: requestID,
		path:      strings.Clone(c.Path()),
		messages:  req.Messages,
		startTime: startTime,
	})

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// handleUpstreamError maps an upstream failure status to the client response.
func (r *Relay) handleUpstreamError(c *fiber.Ctx, httpResp *http.Response, requestID string) error {
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxLoggedBody+1))
	r.logger.Error("upstream returned error",
		"request_id", requestID,
		"status", httpResp.StatusCode,
		"body", utils.Truncate(string(respBody), maxLoggedBody),
	)

	switch httpResp.StatusCode {
	case http.StatusTooManyRequests:
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: errRateLimited})
	case http.StatusPaymentRequired:
		return c.Status(fiber.StatusPaymentRequired).JSON(ErrorResponse{Error: errPaymentRequired})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errGateway})
	}
}

// turnContext is what the stream goroutine needs to describe the turn once
// the answer is complete.
type turnContext struct {
	requestID string
	path      string
	messages  []chat.Message
	startTime time.Time
}

// streamToPipe forwards the upstream body verbatim to pw while assembling the
// answer from the same bytes, then enqueues the completed turn.
func (r *Relay) streamToPipe(httpResp *http.Response, pw *io.PipeWriter, turn turnContext) {
	defer httpResp.Body.Close()
	defer pw.Close()

	var answer strings.Builder
	var deltas int

	tr := sse.NewTeeReader(httpResp.Body, pw)
	for {
		delta, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.logger.Error("error relaying answer stream",
				"request_id", turn.requestID,
				"deltas", deltas,
				"error", err,
			)
			return
		}

		deltas++
		answer.WriteString(delta)
	}

	// The reader stops at [DONE]; anything the upstream sends afterwards is
	// still passed through untouched.
	if tr.Terminated() {
		if _, err := io.Copy(pw, httpResp.Body); err != nil {
			r.logger.Debug("error relaying stream tail", "request_id", turn.requestID, "error", err)
		}
	}

	completedAt := time.Now()
	r.logger.Debug("answer stream complete",
		"request_id", turn.requestID,
		"deltas", deltas,
		"terminated", tr.Terminated(),
		"content_preview", utils.Truncate(answer.String(), 120),
		"duration", completedAt.Sub(turn.startTime),
	)

	r.workerPool.Enqueue(worker.Job{
		Event: eventstream.NewTurnCompletedEvent(
			eventstream.EventSource{
				Model:    r.config.Model,
				Upstream: r.config.UpstreamURL,
			},
			eventstream.TurnRequestMeta{
				RequestID:   turn.requestID,
				Path:        turn.path,
				StartedAt:   turn.startTime.UTC(),
				CompletedAt: completedAt.UTC(),
				DurationMs:  completedAt.Sub(turn.startTime).Milliseconds(),
				HTTPStatus:  httpResp.StatusCode,
				Terminated:  tr.Terminated(),
			},
			eventstream.Turn{
				Messages: turn.messages,
				Response: chat.NewAssistantMessage(answer.String()),
			},
		),
	})
}

// withSystemPrompt returns messages with the system prompt in front. The
// client's slice is not modified.
func (r *Relay) withSystemPrompt(messages []chat.Message) []chat.Message {
	if r.config.SystemPrompt == "" {
		return messages
	}

	out := make([]chat.Message, 0, len(messages)+1)
	out = append(out, chat.Message{Role: roleSystem, Content: r.config.SystemPrompt})
	return append(out, messages...)
}
