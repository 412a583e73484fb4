package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/advisor/pkg/chat"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after the relay finished streaming an
	// advisor answer.
	EventTypeTurnCompleted = "advisor.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a completed turn.
type TurnCompletedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	RequestMeta   TurnRequestMeta `json:"request_meta"`
	Turn          Turn            `json:"turn"`
}

// EventSource identifies the upstream that produced the answer.
type EventSource struct {
	Model    string `json:"model"`
	Upstream string `json:"upstream,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	RequestID   string    `json:"request_id,omitempty"`
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`

	// Terminated reports whether the upstream sent the [DONE] sentinel.
	Terminated bool `json:"terminated"`
}

// Turn is the conversation as the client sent it plus the assembled answer.
type Turn struct {
	Messages []chat.Message `json:"messages"`
	Response chat.Message   `json:"response"`
}

// NewTurnCompletedEvent stamps a new event with a fresh ID and the current
// time.
func NewTurnCompletedEvent(source EventSource, meta TurnRequestMeta, turn Turn) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Turn:          turn,
	}
}
