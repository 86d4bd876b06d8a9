// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/model"
)

// HeaderTag is the first line of a transcript header block.
const HeaderTag = "[chat-options]"

// Role marker tokens. A line starting with one of them opens a message.
const (
	MarkerSystem    = ">>> system"
	MarkerUser      = ">>> user"
	MarkerInclude   = ">>> include"
	MarkerAssistant = "<<< assistant"
)

// markers is checked in order against each line.
var markers = []struct {
	prefix string
	role   model.Role
}{
	{MarkerSystem, model.RoleSystem},
	{MarkerUser, model.RoleUser},
	{MarkerInclude, model.RoleInclude},
	{MarkerAssistant, model.RoleAssistant},
}

// Marker returns the marker token that opens a message of role.
func Marker(role model.Role) string {
	for _, m := range markers {
		if m.role == role {
			return m.prefix
		}
	}
	return ">>> " + role.String()
}

// numericKeys are header keys parsed as numbers.
var numericKeys = map[string]bool{
	"maxTokens":      true,
	"temperature":    true,
	"requestTimeout": true,
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is a parsed transcript.
type Document struct {
	// Header holds the [chat-options] block. Nil when the block is absent or
	// malformed.
	Header config.Options
	// HeaderErr is set when a [chat-options] block was present but malformed.
	HeaderErr error
	// Messages in transcript order, contents trimmed.
	Messages []model.Message
}

// HeaderError describes a malformed [chat-options] line.
type HeaderError struct {
	Line   int // 1-based line number in the transcript
	Text   string
	Reason string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("invalid [chat-options] at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// Parse parses transcript lines. It never fails: a malformed header is
// reported in HeaderErr and otherwise ignored.
func Parse(lines []string) *Document {
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, ">>>") {
			start = i
			break
		}
	}

	headerEnd := start
	if headerEnd == -1 {
		headerEnd = len(lines)
		start = 0
	}

	doc := &Document{}
	doc.Header, doc.HeaderErr = parseHeader(lines[:headerEnd])
	doc.Messages = parseMessages(lines[start:])
	return doc
}

// parseHeader parses the candidate header block. It returns nil options and
// a nil error when the block does not start with HeaderTag.
func parseHeader(lines []string) (config.Options, error) {
	tagSeen := false
	opts := config.Options{}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !tagSeen {
			if line != HeaderTag {
				return nil, nil
			}
			tagSeen = true
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, ok := strings.Cut(trimmed, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch {
		case !ok:
			return nil, &HeaderError{Line: i + 1, Text: line, Reason: "expected key = value"}
		case key == "":
			return nil, &HeaderError{Line: i + 1, Text: line, Reason: "empty key"}
		case numericKeys[key]:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, &HeaderError{Line: i + 1, Text: line, Reason: fmt.Sprintf("%s must be a number", key)}
			}
			opts[key] = n
		case key == "pasteMode":
			opts[key] = strings.EqualFold(value, "true")
		default:
			opts[key] = value
		}
	}

	if !tagSeen {
		return nil, nil
	}
	return opts, nil
}

func parseMessages(lines []string) []model.Message {
	var msgs []model.Message
	var content []*strings.Builder

lines:
	for _, line := range lines {
		for _, m := range markers {
			if strings.HasPrefix(line, m.prefix) {
				msgs = append(msgs, model.Message{Role: m.role})
				content = append(content, &strings.Builder{})
				continue lines
			}
		}
		if len(msgs) == 0 {
			continue
		}
		b := content[len(content)-1]
		b.WriteByte('\n')
		b.WriteString(line)
	}

	for i := range msgs {
		msgs[i].Content = strings.TrimSpace(content[i].String())
	}
	return msgs
}

// ResolveIncludes replaces every include message with the user message
// produced by inc.
func (d *Document) ResolveIncludes(inc *Includer) {
	for i, msg := range d.Messages {
		if msg.Role == model.RoleInclude {
			d.Messages[i] = inc.Resolve(msg)
		}
	}
}
