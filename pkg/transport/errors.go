package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultErrorMessage is used when an error response carries no usable
	// message.
	DefaultErrorMessage = "Failed to get response"

	// streamInterruptedMessage describes a failure after the stream started.
	streamInterruptedMessage = "Response stream interrupted"

	// maxErrorBodySize bounds how much of an error response body is read.
	maxErrorBodySize = 64 * 1024
)

// ErrNoEndpoint is returned by New when no endpoint is configured.
var ErrNoEndpoint = errors.New("chat endpoint is required")

// Error is a terminal failure of one streaming exchange: a non-success
// status, a missing response body, or a network failure before or during the
// stream.
type Error struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is a human readable description, taken from the endpoint's
	// {"error": "..."} body when available.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d): %v", e.Message, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, an *Error.
func IsTransportError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

// errorResponse is the best-effort shape of a non-success response body.
type errorResponse struct {
	Error string `json:"error"`
}

// newStatusError builds an *Error from a non-success response, extracting the
// message from a JSON error body if one can be parsed.
func newStatusError(resp *http.Response) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Message:    DefaultErrorMessage,
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return e
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return e
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		e.Message = parsed.Error
	}

	return e
}
