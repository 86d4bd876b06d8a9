// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns one part per Read call.
type chunkReader struct {
	parts  []string
	err    error // returned after the last part, io.EOF when nil
	onRead func(i int)
	reads  int
	closed bool
}

func newChunkReader(parts ...string) *chunkReader {
	return &chunkReader{parts: parts}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.onRead != nil {
		r.onRead(r.reads)
	}
	r.reads++
	if len(r.parts) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	if n < len(r.parts[0]) {
		r.parts[0] = r.parts[0][n:]
	} else {
		r.parts = r.parts[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

func contentLine(s string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, s) + "\n\n"
}

func reasoningLine(s string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"reasoning_content":%q,"content":null}}]}`, s) + "\n\n"
}

// collect drains d and returns its chunks and reported errors.
func collect(d *Decoder) ([]Chunk, []error) {
	var reported []error
	d.OnDecodeError = func(err error) { reported = append(reported, err) }
	var chunks []Chunk
	for c := range d.Chunks() {
		chunks = append(chunks, c)
	}
	return chunks, reported
}

const sampleStream = `data: {"choices":[{"delta":{"reasoning_content":"thïnk"}}]}

data: {"choices":[{"delta":{"content":"héllo "}}]}

data: {"choices":[{"delta":{"content":"wörld ✓"}}]}

data: [DONE]

`

var sampleChunks = []Chunk{
	{Kind: KindReasoning, Text: "thïnk"},
	{Kind: KindContent, Text: "héllo "},
	{Kind: KindContent, Text: "wörld ✓"},
}

func TestDecoder_SSE(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(sampleStream))
	chunks, reported := collect(d)

	assert.Equal(t, sampleChunks, chunks)
	assert.Empty(t, reported)
	assert.NoError(t, d.Err())
	assert.False(t, d.Canceled())
}

func TestDecoder_SplitAtEveryOffset(t *testing.T) {
	for i := 0; i <= len(sampleStream); i++ {
		t.Run(fmt.Sprintf("offset_%d", i), func(t *testing.T) {
			r := newChunkReader(sampleStream[:i], sampleStream[i:])
			chunks, reported := collect(NewDecoder(context.Background(), r))

			assert.Equal(t, sampleChunks, chunks)
			assert.Empty(t, reported)
		})
	}
}

func TestDecoder_LargeRecord(t *testing.T) {
	text := strings.Repeat("x", 9000)
	stream := contentLine(text) + "data: [DONE]\n"
	want := []Chunk{{Kind: KindContent, Text: text}}

	chunks, reported := collect(NewDecoder(context.Background(), strings.NewReader(stream)))
	assert.Equal(t, want, chunks)
	assert.Empty(t, reported)

	for i := 0; i <= len(stream); i += 611 {
		r := newChunkReader(stream[:i], stream[i:])
		chunks, reported := collect(NewDecoder(context.Background(), r))
		assert.Equal(t, want, chunks, "split at %d", i)
		assert.Empty(t, reported, "split at %d", i)
	}
}

func TestDecoder_RecordsAcrossReadWindows(t *testing.T) {
	first := strings.Repeat("a", 4000)
	second := strings.Repeat("b", 4500)
	stream := contentLine(first) + contentLine(second) + "data: [DONE]\n"

	chunks, reported := collect(NewDecoder(context.Background(), strings.NewReader(stream)))
	assert.Equal(t, []Chunk{{Kind: KindContent, Text: first}, {Kind: KindContent, Text: second}}, chunks)
	assert.Empty(t, reported)
}

func TestDecoder_LargeCompleteBody(t *testing.T) {
	text := strings.Repeat("long answer ", 1000)
	body := fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, text)

	chunks, reported := collect(NewDecoder(context.Background(), strings.NewReader(body)))
	assert.Equal(t, []Chunk{{Kind: KindContent, Text: text}}, chunks)
	assert.Empty(t, reported)
}

func TestDecoder_EmptyDataField(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		"data:\n\ndata: \n\n"+contentLine("a")+"data: [DONE]\n",
	))
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}}, chunks)
	assert.Empty(t, reported)
}

func TestDecoder_DoneEndsStream(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		contentLine("a")+"data: [DONE]\n\n"+contentLine("ignored")))
	chunks, _ := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}}, chunks)
}

func TestDecoder_DoneWithoutPrefix(t *testing.T) {
	chunks, reported := collect(NewDecoder(context.Background(), newChunkReader("[DONE]\n")))
	assert.Empty(t, chunks)
	assert.Empty(t, reported)
}

func TestDecoder_CarryFailureReportsAndContinues(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		"data: {broken\n\n",
		contentLine("next"),
	))
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "next"}}, chunks)
	require.Len(t, reported, 1)
	var derr *DecodeError
	require.True(t, errors.As(reported[0], &derr))
	assert.Equal(t, "data: {broken", derr.Line)
}

func TestDecoder_CarryFailureWithinOneRead(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		"not json\n"+contentLine("a")+contentLine("b"),
	))
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}, {Kind: KindContent, Text: "b"}}, chunks)
	assert.Len(t, reported, 1)
}

func TestDecoder_PendingAtEOFIsReported(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		contentLine("a")+`data: {"choices":[{"del`,
	))
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}}, chunks)
	require.Len(t, reported, 1)
	assert.NoError(t, d.Err())
}

func TestDecoder_CancelBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newChunkReader(sampleStream)
	d := NewDecoder(ctx, r)
	chunks, reported := collect(d)

	assert.Empty(t, chunks)
	assert.Empty(t, reported)
	assert.True(t, d.Canceled())
	assert.NoError(t, d.Err())
	assert.Equal(t, 0, r.reads)
}

func TestDecoder_CancelMidStreamDiscardsCarry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newChunkReader(contentLine("a")+`data: {"partial`, `":1}`+"\n\n")
	r.onRead = func(i int) {
		if i == 1 {
			cancel()
		}
	}
	d := NewDecoder(ctx, r)
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}}, chunks)
	assert.Empty(t, reported)
	assert.True(t, d.Canceled())
	assert.NoError(t, d.Err())
}

func TestDecoder_CancelBetweenLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDecoder(ctx, newChunkReader(contentLine("a")+contentLine("b")))
	require.True(t, d.Next())
	cancel()
	assert.False(t, d.Next())
	assert.True(t, d.Canceled())
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := newChunkReader(contentLine("a"))
	r.err = boom

	d := NewDecoder(context.Background(), r)
	chunks, _ := collect(d)

	assert.Len(t, chunks, 1)
	assert.ErrorIs(t, d.Err(), boom)
	assert.False(t, d.Canceled())
}

func TestDecoder_ProviderError(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		`data: {"error":{"message":"quota exceeded","type":"insufficient_quota"}}`+"\n\n"+contentLine("a"),
	))
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}}, chunks)
	require.Len(t, reported, 1)
	var perr *ProviderError
	require.True(t, errors.As(reported[0], &perr))
	assert.Equal(t, "quota exceeded", perr.Message)
}

func TestDecoder_CompleteBody(t *testing.T) {
	body := `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"full answer"}}]}`
	chunks, reported := collect(NewDecoder(context.Background(), newChunkReader(body)))

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "full answer"}}, chunks)
	assert.Empty(t, reported)
}

func TestDecoder_EmptyDeltas(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		`data: {"choices":[]}`+"\n\n"+
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n\n",
	))
	chunks, _ := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent}, {Kind: KindContent}}, chunks)
}

func TestDecoder_IgnoresCommentsAndBlankLines(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(
		": keep-alive\r\n\r\n   \n"+contentLine("a"),
	))
	chunks, reported := collect(d)

	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "a"}}, chunks)
	assert.Empty(t, reported)
}

func TestDecoder_DataWithoutSpace(t *testing.T) {
	chunks, _ := collect(NewDecoder(context.Background(), newChunkReader(
		`data:{"choices":[{"delta":{"content":"x"}}]}`+"\n",
	)))
	assert.Equal(t, []Chunk{{Kind: KindContent, Text: "x"}}, chunks)
}

func TestDecoder_ReasoningChunk(t *testing.T) {
	chunks, _ := collect(NewDecoder(context.Background(), newChunkReader(reasoningLine("hmm"))))
	assert.Equal(t, []Chunk{{Kind: KindReasoning, Text: "hmm"}}, chunks)
}

func TestDecoder_InvalidUTF8IsReplaced(t *testing.T) {
	chunks, _ := collect(NewDecoder(context.Background(), newChunkReader(
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\xffb\"}}]}\n",
	)))
	require.Len(t, chunks, 1)
	assert.Equal(t, "a�b", chunks[0].Text)
}

func TestDecoder_Close(t *testing.T) {
	r := newChunkReader(sampleStream)
	d := NewDecoder(context.Background(), r)

	require.True(t, d.Next())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, r.closed)
	assert.False(t, d.Next())
}

func TestDecoder_ChunksBreak(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkReader(sampleStream))
	for range d.Chunks() {
		break
	}
	// The iterator can be resumed after an early break.
	rest, _ := collect(d)
	assert.Equal(t, sampleChunks[1:], rest)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "content", KindContent.String())
	assert.Equal(t, "reasoning", KindReasoning.String())
	assert.True(t, strings.HasPrefix(Kind(7).String(), "Kind("))
}
