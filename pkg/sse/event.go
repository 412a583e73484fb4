// Package sse provides a minimal, purpose-built reader for the chat-completion
// event stream used by the advisor. It turns an arbitrarily chunked byte stream
// into complete lines, classifies each line as a frame, and extracts the
// assistant text delta carried by each frame.
//
// The wire format is a sequence of newline terminated lines:
//
//	data: {"choices":[{"delta":{"content":"Hel"}}]}
//	: keep-alive
//	data: [DONE]
//
// Lines beginning with ':' are comments, blank lines are ignored, and the
// literal payload [DONE] terminates the stream.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
package sse

const (
	// DataPrefix is the literal prefix of a data frame, including the space.
	DataPrefix = "data: "

	// DoneSentinel is the payload that marks the end of the stream.
	DoneSentinel = "[DONE]"

	// commentPrefix marks a comment line (e.g. ": keep-alive").
	commentPrefix = ":"
)

// Action is the classification of a single decoded line.
type Action int

const (
	// ActionIgnore means the line carried nothing for the caller: blank lines,
	// comments, non-data fields and frames without content.
	ActionIgnore Action = iota

	// ActionDelta means the line carried a non-empty text delta.
	ActionDelta

	// ActionTerminate means the line was the [DONE] sentinel. No further
	// lines of the stream may be processed.
	ActionTerminate

	// ActionRetry means the line looked like a data frame but its payload was
	// not valid JSON. The line is held and re-prefixed onto the next line.
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionDelta:
		return "delta"
	case ActionTerminate:
		return "terminate"
	case ActionRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Result is the outcome of parsing one line.
type Result struct {
	Action Action

	// Delta is the assistant text fragment. Only set for ActionDelta.
	Delta string
}

// Frame is the JSON payload of a data frame. Only choices[0].delta.content is
// consumed; every other field is ignored.
type Frame struct {
	Choices []Choice `json:"choices"`
}

// Choice is a single completion choice within a Frame.
type Choice struct {
	Delta Delta `json:"delta"`
}

// Delta is the incremental message fragment of a Choice.
type Delta struct {
	Content string `json:"content,omitempty"`
}

// Content returns choices[0].delta.content, or an empty string when the frame
// has no choices.
func (f *Frame) Content() string {
	if len(f.Choices) == 0 {
		return ""
	}
	return f.Choices[0].Delta.Content
}
