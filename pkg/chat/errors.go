package chat

import "errors"

var (
	// ErrBusy is returned by Session.Submit while a previous turn is still
	// streaming.
	ErrBusy = errors.New("a response is already streaming")

	// ErrEmptyInput indicates whitespace-only input. Session.Submit treats it
	// as a no-op; advisor ask reports it.
	ErrEmptyInput = errors.New("empty input")
)

// FailureNotice is the assistant message appended when a turn fails.
const FailureNotice = "Sorry, I encountered an error. Please try again."
