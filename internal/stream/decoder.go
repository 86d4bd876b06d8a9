// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readSize is the buffer handed to each read. The UTF-8 transform returns at
// most its own 4 KiB window per read, so a single record often spans reads.
const readSize = 4 * 1024

// maxLineSize bounds an unterminated line. Longer text is decoded as it is.
const maxLineSize = 16 << 20

// doneSentinel terminates a server-sent event stream.
const doneSentinel = "[DONE]"

// carryState tracks whether a line that failed to parse is waiting to be
// joined with the next one.
type carryState int

const (
	carryClean carryState = iota
	carryPending
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a response body into chunks. It is not safe for concurrent
// use and cannot be restarted; cancel its context to stop it from another
// goroutine.
type Decoder struct {
	// OnDecodeError, when set, receives a *DecodeError for text that could
	// not be decoded and a *ProviderError for error records. Decoding
	// continues in both cases.
	OnDecodeError func(error)

	ctx    context.Context
	src    io.Reader
	closer io.Closer
	buf    []byte

	lines   []string // complete lines not yet decoded
	partial string   // text after the last newline, still arriving
	readErr error    // error of the last read, handled once lines are drained

	carry     carryState
	stash     string // raw line kept while carryPending
	stashErr  error
	current   Chunk
	err       error
	canceled  bool
	finished  bool
	closeOnce bool
}

// NewDecoder creates a decoder reading r. If r is an io.Closer, Close closes
// it.
func NewDecoder(ctx context.Context, r io.Reader) *Decoder {
	d := &Decoder{
		ctx: ctx,
		src: transform.NewReader(r, unicode.UTF8.NewDecoder()),
		buf: make([]byte, readSize),
	}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// Next advances to the next chunk. It returns false when the stream ends,
// fails or is canceled.
func (d *Decoder) Next() bool {
	for !d.finished {
		if d.ctx.Err() != nil {
			d.cancel()
			return false
		}

		if len(d.lines) > 0 {
			line := d.lines[0]
			d.lines = d.lines[1:]
			if chunk, ok := d.decodeLine(line); ok {
				d.current = chunk
				return true
			}
			continue
		}

		if d.readErr != nil {
			d.finish(d.readErr)
			return false
		}

		n, err := d.src.Read(d.buf)
		if n > 0 {
			d.lines = d.splitRead(string(d.buf[:n]))
		}
		if err != nil {
			// An unterminated last line is complete once the body ends.
			d.lines = append(d.lines, splitLines(d.partial)...)
			d.partial = ""
		}
		d.readErr = err
	}
	return false
}

// Chunk returns the chunk produced by the last successful call to Next.
func (d *Decoder) Chunk() Chunk {
	return d.current
}

// Chunks returns an iterator over the remaining chunks.
func (d *Decoder) Chunks() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for d.Next() {
			if !yield(d.current) {
				return
			}
		}
	}
}

// Err returns the read error that ended the stream, if any. Decode errors
// and cancellation are not reported here.
func (d *Decoder) Err() error {
	return d.err
}

// Canceled reports whether the stream ended because its context was done.
func (d *Decoder) Canceled() bool {
	return d.canceled
}

// Close releases the underlying reader. It is safe to call more than once.
func (d *Decoder) Close() error {
	d.finished = true
	if d.closer == nil || d.closeOnce {
		return nil
	}
	d.closeOnce = true
	return d.closer.Close()
}

// decodeLine decodes one non-empty raw line. It returns false when the line
// yields no chunk.
func (d *Decoder) decodeLine(raw string) (Chunk, bool) {
	if strings.TrimSpace(stripData(raw)) == "" {
		// Empty data field, same as a blank line.
		return Chunk{}, false
	}

	line := raw
	if d.carry == carryPending {
		line = d.stash + raw
	} else if strings.HasPrefix(raw, ":") {
		// SSE comment, e.g. keep-alive
		return Chunk{}, false
	}

	payload := stripData(line)
	if payload == doneSentinel {
		d.resetCarry()
		d.finished = true
		return Chunk{}, false
	}

	rec, err := parseRecord(payload)
	if err == nil {
		d.resetCarry()
		if rec.Error != nil {
			d.report(rec.Error)
			return Chunk{}, false
		}
		return rec.chunk(), true
	}

	if d.carry == carryPending {
		d.report(&DecodeError{Line: d.stash, Err: d.stashErr})
		d.resetCarry()
		return d.decodeLine(raw)
	}

	d.carry = carryPending
	d.stash = raw
	d.stashErr = err
	return Chunk{}, false
}

func (d *Decoder) resetCarry() {
	d.carry = carryClean
	d.stash = ""
	d.stashErr = nil
}

// finish ends the stream after the last read. A line still waiting for its
// continuation is reported.
func (d *Decoder) finish(err error) {
	d.finished = true
	if d.ctx.Err() != nil {
		d.cancel()
		return
	}
	if d.carry == carryPending {
		d.report(&DecodeError{Line: d.stash, Err: d.stashErr})
		d.resetCarry()
	}
	if !errors.Is(err, io.EOF) {
		d.err = err
	}
}

// cancel ends the stream silently, discarding any kept line.
func (d *Decoder) cancel() {
	d.finished = true
	d.canceled = true
	d.lines = nil
	d.partial = ""
	d.resetCarry()
}

func (d *Decoder) report(err error) {
	if d.OnDecodeError != nil {
		d.OnDecodeError(err)
	}
}

// splitRead returns the newline-terminated lines completed by text. The
// text after the last newline is kept until a later read completes it.
func (d *Decoder) splitRead(text string) []string {
	text = d.partial + text
	i := strings.LastIndexByte(text, '\n')
	if i < 0 {
		d.partial = text
		if len(text) > maxLineSize {
			d.partial = ""
			return splitLines(text)
		}
		return nil
	}
	d.partial = text[i+1:]
	return splitLines(text[:i])
}

// splitLines splits text into non-empty lines with any
// trailing carriage return removed.
func splitLines(text string) []string {
	parts := strings.Split(text, "\n")
	lines := parts[:0]
	for _, p := range parts {
		p = strings.TrimSuffix(p, "\r")
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// stripData removes the SSE "data:" field name.
func stripData(line string) string {
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		return strings.TrimPrefix(rest, " ")
	}
	return line
}
