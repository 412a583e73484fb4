package sse

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineDecoder converts a stream of arbitrarily sized byte chunks into
// complete lines. Network chunks do not align with line boundaries, so a line
// is only emitted once its terminating newline has been seen.
//
// Bytes are decoded as UTF-8 before being split: a multi-byte character split
// across two chunks is held back until the rest of it arrives, invalid bytes
// become U+FFFD and a leading byte order mark is dropped.
//
// A LineDecoder is owned by a single read loop and is not safe for concurrent
// use.
type LineDecoder struct {
	utf8 *encoding.Decoder

	// carry holds an incomplete trailing UTF-8 sequence from the last chunk.
	carry []byte

	// pending holds decoded text received since the last complete line.
	// It never contains a newline.
	pending []byte
}

// NewLineDecoder returns an empty LineDecoder.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{
		utf8: unicode.UTF8BOM.NewDecoder(),
	}
}

// Write appends chunk to the pending text and returns every line completed by
// it, in arrival order. A single trailing carriage return is stripped from
// each line. Text after the last newline stays pending.
func (d *LineDecoder) Write(chunk []byte) []string {
	d.pending = append(d.pending, d.decode(chunk)...)

	var (
		lines []string
		start int
	)
	for {
		i := bytes.IndexByte(d.pending[start:], '\n')
		if i < 0 {
			break
		}

		line := d.pending[start : start+i]
		line = bytes.TrimSuffix(line, []byte("\r"))
		lines = append(lines, string(line))
		start += i + 1
	}

	if start > 0 {
		d.pending = append(d.pending[:0], d.pending[start:]...)
	}

	return lines
}

// Pending returns the unterminated text received after the last newline.
func (d *LineDecoder) Pending() string {
	return string(d.pending)
}

// Reset discards all buffered text and decoder state.
func (d *LineDecoder) Reset() {
	d.utf8.Reset()
	d.carry = nil
	d.pending = d.pending[:0]
}

// decode runs chunk through the streaming UTF-8 decoder. An incomplete
// multi-byte sequence at the end of the input is kept in carry and prefixed
// to the next chunk.
func (d *LineDecoder) decode(chunk []byte) []byte {
	src := append(d.carry, chunk...)
	d.carry = nil

	if len(src) == 0 {
		return nil
	}

	// Every invalid byte may expand to the 3 byte replacement character.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	out := make([]byte, 0, len(src))

	for {
		nDst, nSrc, err := d.utf8.Transform(dst, src, false)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.carry = append([]byte(nil), src...)
		}

		return out
	}
}
