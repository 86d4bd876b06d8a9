// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// CHUNK
// =============================================================================

// Kind distinguishes reasoning output from the answer itself.
type Kind int

const (
	KindContent Kind = iota
	KindReasoning
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindReasoning:
		return "reasoning"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Chunk is one decoded piece of a response.
type Chunk struct {
	Kind Kind
	Text string
}

// =============================================================================
// WIRE RECORD
// =============================================================================

// record is the subset of a chat-completion record the decoder reads.
// Streaming records carry "delta", complete bodies carry "message".
type record struct {
	Choices []struct {
		Delta   *recordMessage `json:"delta"`
		Message *recordMessage `json:"message"`
	} `json:"choices"`
	Error *ProviderError `json:"error"`
}

type recordMessage struct {
	Content          *string `json:"content"`
	ReasoningContent *string `json:"reasoning_content"`
}

func parseRecord(line string) (record, error) {
	var rec record
	err := json.Unmarshal([]byte(line), &rec)
	return rec, err
}

// chunk converts the first choice of rec. Records without choices yield
// empty content.
func (rec record) chunk() Chunk {
	if len(rec.Choices) == 0 {
		return Chunk{Kind: KindContent}
	}
	msg := rec.Choices[0].Delta
	if msg == nil {
		msg = rec.Choices[0].Message
	}
	switch {
	case msg == nil:
		return Chunk{Kind: KindContent}
	case msg.ReasoningContent != nil:
		return Chunk{Kind: KindReasoning, Text: *msg.ReasoningContent}
	case msg.Content != nil:
		return Chunk{Kind: KindContent, Text: *msg.Content}
	default:
		return Chunk{Kind: KindContent}
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// DecodeError reports text that could not be decoded. Decoding continues
// after it.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error during decoding: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ProviderError is an error object sent by the API inside the stream.
type ProviderError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider error (%s): %s", e.Type, e.Message)
	}
	return "provider error: " + e.Message
}
