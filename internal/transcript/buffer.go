// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/jeranaias/aichat/internal/model"
)

var newline = regexp.MustCompile(`\r?\n`)

// Edit describes one buffer mutation.
type Edit struct {
	// Tail is the new content of the line that was last before the edit.
	Tail string
	// NewLines are appended after it.
	NewLines []string
	// Reset means the whole buffer was replaced by NewLines and Tail is
	// unused.
	Reset bool
}

// Listener receives every buffer mutation in order. It is called with the
// buffer locked and must not call back into the buffer.
type Listener func(Edit)

// Buffer is an in-memory transcript. It always holds at least one line.
// Buffer is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	lines    []string
	listener Listener
}

// NewBuffer creates a buffer holding a single empty line.
func NewBuffer() *Buffer {
	return &Buffer{lines: []string{""}}
}

// SetListener installs l, replacing any previous listener. Nil removes it.
func (b *Buffer) SetListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

// Append appends text to the last line. Line breaks in text start new lines.
func (b *Buffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(text)
}

func (b *Buffer) appendLocked(text string) {
	parts := newline.Split(text, -1)
	last := len(b.lines) - 1
	b.lines[last] += parts[0]
	b.lines = append(b.lines, parts[1:]...)
	b.emitLocked(Edit{Tail: b.lines[last], NewLines: slices.Clone(parts[1:])})
}

// OpenSection starts a new message with marker. The marker is separated from
// the previous text by one blank line and followed by a blank line and a
// fresh, empty cursor line.
func (b *Buffer) OpenSection(marker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openSectionLocked(marker)
}

// WriteParagraph writes text starting on an empty line. When the last line
// holds text a blank separator line is inserted first.
func (b *Buffer) WriteParagraph(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lines[len(b.lines)-1] != "" {
		b.appendLocked("\n\n")
	}
	b.appendLocked(text)
}

// AppendMessage writes a complete message of role.
func (b *Buffer) AppendMessage(role model.Role, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.openSectionLocked(Marker(role))
	b.appendLocked(content)
}

func (b *Buffer) openSectionLocked(marker string) {
	switch {
	case len(b.lines) == 1 && b.lines[0] == "":
		b.appendLocked(marker + "\n\n")
	case b.lines[len(b.lines)-1] == "":
		b.appendLocked("\n" + marker + "\n\n")
	default:
		b.appendLocked("\n\n" + marker + "\n\n")
	}
}

// SetLines replaces the whole buffer. An empty slice leaves a single empty
// line.
func (b *Buffer) SetLines(lines []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(lines) == 0 {
		b.lines = []string{""}
	} else {
		b.lines = slices.Clone(lines)
	}
	b.emitLocked(Edit{NewLines: slices.Clone(b.lines), Reset: true})
}

// SetText replaces the whole buffer with text split into lines.
func (b *Buffer) SetText(text string) {
	b.SetLines(newline.Split(text, -1))
}

// Clear resets the buffer to a single empty line.
func (b *Buffer) Clear() {
	b.SetLines(nil)
}

// Lines returns a copy of the buffer lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.lines)
}

// LastLine returns the last line.
func (b *Buffer) LastLine() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines[len(b.lines)-1]
}

// Len returns the number of lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// String returns the buffer text.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

func (b *Buffer) emitLocked(e Edit) {
	if b.listener != nil {
		b.listener(e)
	}
}
