package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/advisor/pkg/logger"
)

// State is the position of a Session within the current turn.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateStreamingAssistant
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateStreamingAssistant:
		return "streaming_assistant"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Streamer sends the conversation history to the chat endpoint and calls
// onDelta for every text delta of the answer, in order. Stream returns once
// the answer is complete or the exchange failed.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, onDelta func(string)) error
}

// SessionOption configures a Session created with NewSession.
type SessionOption func(*Session)

// WithLogger sets the session logger. Defaults to logger.Nop().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithConversation sets the conversation the session appends to.
// Defaults to a new, empty Conversation.
func WithConversation(c *Conversation) SessionOption {
	return func(s *Session) {
		s.conv = c
	}
}

// Session runs advisor turns against a Streamer. Only one turn may be in
// flight at a time: a submission made while a response is streaming is
// rejected with ErrBusy rather than queued.
type Session struct {
	streamer Streamer
	conv     *Conversation
	logger   *slog.Logger

	busy atomic.Bool

	mu        sync.Mutex
	state     State
	listeners []func(from, to State)
}

// NewSession creates a Session in StateIdle.
func NewSession(streamer Streamer, opts ...SessionOption) *Session {
	s := &Session{
		streamer: streamer,
		logger:   logger.Nop(),
		state:    StateIdle,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.conv == nil {
		s.conv = NewConversation()
	}

	return s
}

// Conversation returns the conversation owned by the session.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// OnStateChange registers fn to be called on every state transition.
func (s *Session) OnStateChange(fn func(from, to State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

// Submit runs one turn: it appends text as a user message, streams the full
// history to the endpoint and grows an assistant message from the deltas.
//
// Whitespace-only text is ignored and no request is made. If the stream
// fails, text received so far is kept and FailureNotice is appended as a
// separate assistant message; the error is returned for logging.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	s.conv.StartUserTurn(text)
	s.transition(StateAwaitingResponse)

	history := s.conv.Messages()
	s.logger.Debug("submitting turn", "message_count", len(history))

	streaming := false
	err := s.streamer.Stream(ctx, history, func(delta string) {
		if !streaming {
			streaming = true
			s.transition(StateStreamingAssistant)
		}
		s.conv.AppendDelta(delta)
	})
	if err != nil {
		s.logger.Error("advisor turn failed", "error", err, "partial", streaming)
		s.transition(StateFailed)
		s.conv.AppendAssistant(FailureNotice)
		s.transition(StateIdle)
		return fmt.Errorf("streaming advisor response: %w", err)
	}

	s.transition(StateCompleted)
	s.transition(StateIdle)
	return nil
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	listeners := append([]func(from, to State){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Debug("turn state changed", "from", from.String(), "to", to.String())

	for _, fn := range listeners {
		fn(from, to)
	}
}
