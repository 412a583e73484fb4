package sse

import (
	"encoding/json"
	"strings"
)

// Parser classifies decoded lines and extracts text deltas.
//
// A data frame whose JSON payload does not parse is never reported as an
// error. Instead the line is held and, together with a newline, prefixed onto
// the next line before that line is classified. This recovers a payload that
// was split across exactly two lines. If the combined text still does not
// parse, the held line is dropped and the next line is classified on its own.
// Payloads split across three or more lines are not recovered.
//
// A Parser is owned by a single read loop and is not safe for concurrent use.
type Parser struct {
	retry    string
	hasRetry bool
}

// NewParser returns a Parser with an empty retry buffer.
func NewParser() *Parser {
	return &Parser{}
}

// Parse classifies a single complete line.
func (p *Parser) Parse(line string) Result {
	if p.hasRetry {
		held := p.retry
		p.Reset()

		if res, ok := classify(held + "\n" + line); ok {
			return res
		}
	}

	res, ok := classify(line)
	if !ok {
		p.retry = line
		p.hasRetry = true
		return Result{Action: ActionRetry}
	}

	return res
}

// Pending returns the held line awaiting a retry, if any.
func (p *Parser) Pending() (string, bool) {
	return p.retry, p.hasRetry
}

// Reset clears the retry buffer.
func (p *Parser) Reset() {
	p.retry = ""
	p.hasRetry = false
}

// classify applies the frame rules to line. ok is false only when line is a
// data frame whose payload is not valid JSON.
func classify(line string) (res Result, ok bool) {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, commentPrefix) {
		return Result{Action: ActionIgnore}, true
	}

	payload, found := strings.CutPrefix(line, DataPrefix)
	if !found {
		return Result{Action: ActionIgnore}, true
	}

	payload = strings.TrimSpace(payload)
	if payload == DoneSentinel {
		return Result{Action: ActionTerminate}, true
	}

	var frame Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return Result{}, false
	}

	content := frame.Content()
	if content == "" {
		return Result{Action: ActionIgnore}, true
	}

	return Result{Action: ActionDelta, Delta: content}, true
}
