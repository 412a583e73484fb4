package sse

import (
	"errors"
	"io"
)

// defaultChunkSize is the size of each read from the source.
const defaultChunkSize = 4 * 1024

// Reader reads text deltas from an event stream. Each call to Next pulls
// chunks from the source as needed, feeds them through a LineDecoder and
// hands every completed line to a Parser, strictly in arrival order.
//
// When constructed with NewTeeReader, every byte read from the source is also
// written verbatim to a destination io.Writer, so a downstream client can
// receive an exact copy of the stream while the caller inspects the deltas.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │    text delta    │
// └──────────────────┘
type Reader struct {
	src  io.Reader
	dest io.Writer
	buf  []byte

	decoder *LineDecoder
	parser  *Parser

	// lines holds decoded lines not yet handed to the parser.
	lines []string

	// deferred is set when the parser held a line for retry. The remaining
	// lines of the batch wait until the next chunk has been read.
	deferred bool

	// eof is set once the source is exhausted.
	eof bool

	// terminated is set once the [DONE] sentinel was seen.
	terminated bool
}

// NewReader returns a Reader that parses deltas from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses deltas from src and writes all raw
// bytes through to dest. The dest writer typically backs an io.Pipe connected
// to a downstream HTTP response. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		src:     src,
		dest:    dest,
		buf:     make([]byte, defaultChunkSize),
		decoder: NewLineDecoder(),
		parser:  NewParser(),
	}
}

// Next returns the next non-empty text delta. It blocks until a delta is
// available, the stream is terminated by [DONE], or the source is exhausted.
// Next returns "", io.EOF once the stream is over; a terminated stream stays
// over even if more lines were buffered. Any other error comes from reading
// the source or writing the tee destination.
//
// A final line without a terminating newline is never parsed.
func (r *Reader) Next() (string, error) {
	for {
		if r.terminated {
			return "", io.EOF
		}

		if !r.deferred {
			delta, ok := r.drainLines()
			if ok {
				return delta, nil
			}
			if r.terminated {
				return "", io.EOF
			}
		}

		if r.eof {
			if r.deferred {
				// No further chunk will arrive. Parse what was held back.
				r.deferred = false
				continue
			}
			return "", io.EOF
		}

		if err := r.readChunk(); err != nil {
			return "", err
		}
	}
}

// Terminated reports whether the [DONE] sentinel was seen.
func (r *Reader) Terminated() bool {
	return r.terminated
}

// drainLines parses buffered lines until one yields a delta, the stream
// terminates, or the parser asks to wait for the next chunk.
func (r *Reader) drainLines() (string, bool) {
	for len(r.lines) > 0 {
		line := r.lines[0]
		r.lines = r.lines[1:]

		res := r.parser.Parse(line)
		switch res.Action {
		case ActionDelta:
			return res.Delta, true
		case ActionTerminate:
			r.terminated = true
			r.lines = nil
			r.parser.Reset()
			return "", false
		case ActionRetry:
			r.deferred = true
			return "", false
		case ActionIgnore:
		}
	}

	return "", false
}

// readChunk performs a single read from the source and decodes it.
func (r *Reader) readChunk() error {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		if r.dest != nil {
			if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
				return werr
			}
		}

		r.lines = append(r.lines, r.decoder.Write(r.buf[:n])...)
		r.deferred = false
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		return err
	}

	return nil
}
