// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/model"
)

func lines(s string) []string {
	return strings.Split(s, "\n")
}

func TestParse_Header(t *testing.T) {
	doc := Parse(lines(`[chat-options]
model = gpt-4o
# a comment
temperature = 0.2
maxTokens = 512
pasteMode = TRUE
proxy =
initialPrompt = a = b

>>> user

hi`))

	require.NoError(t, doc.HeaderErr)
	assert.Equal(t, config.Options{
		"model":         "gpt-4o",
		"temperature":   0.2,
		"maxTokens":     512.0,
		"pasteMode":     true,
		"proxy":         "",
		"initialPrompt": "a = b",
	}, doc.Header)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "hi"}}, doc.Messages)
}

func TestParse_HeaderMustStartWithTag(t *testing.T) {
	doc := Parse(lines("model = gpt-4o\n[chat-options]\n>>> user\nhi"))
	assert.Nil(t, doc.Header)
	assert.NoError(t, doc.HeaderErr)
}

func TestParse_HeaderOnlyTranscript(t *testing.T) {
	doc := Parse(lines("\n[chat-options]\nmodel = x\n"))
	assert.Equal(t, config.Options{"model": "x"}, doc.Header)
	assert.Empty(t, doc.Messages)
}

func TestParse_MalformedHeader(t *testing.T) {
	tests := []struct {
		name string
		line string
		want int
	}{
		{"no equals", "model gpt-4o", 2},
		{"empty key", " = 3", 2},
		{"bad number", "temperature = warm", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := Parse(lines("[chat-options]\n" + tc.line + "\n>>> user\nhello"))

			var herr *HeaderError
			require.True(t, errors.As(doc.HeaderErr, &herr))
			assert.Equal(t, tc.want, herr.Line)
			assert.Nil(t, doc.Header)
			// Messages still parse.
			assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "hello"}}, doc.Messages)
		})
	}
}

func TestParse_Segmentation(t *testing.T) {
	doc := Parse(lines(`stray text before any marker
>>> system

  be brief  

>>> include

a.txt
<<< assistant
first
second

>>> user
`))

	assert.Equal(t, []model.Message{
		{Role: model.RoleSystem, Content: "be brief"},
		{Role: model.RoleInclude, Content: "a.txt"},
		{Role: model.RoleAssistant, Content: "first\nsecond"},
		{Role: model.RoleUser, Content: ""},
	}, doc.Messages)
}

func TestParse_AssistantBeforeFirstUserMarkerIsHeaderRegion(t *testing.T) {
	doc := Parse(lines("<<< assistant\nignored\n>>> user\nhi"))
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "hi"}}, doc.Messages)
}

func TestParse_NoMarkers(t *testing.T) {
	doc := Parse(lines("just text\nmore"))
	assert.Empty(t, doc.Messages)
	assert.Nil(t, doc.Header)
}

func TestParse_Empty(t *testing.T) {
	doc := Parse(nil)
	assert.Empty(t, doc.Messages)
	assert.Nil(t, doc.Header)
	assert.NoError(t, doc.HeaderErr)
}

func TestMarker(t *testing.T) {
	assert.Equal(t, ">>> user", Marker(model.RoleUser))
	assert.Equal(t, "<<< assistant", Marker(model.RoleAssistant))
	assert.Equal(t, ">>> system", Marker(model.RoleSystem))
	assert.Equal(t, ">>> include", Marker(model.RoleInclude))
}

func TestParse_RoundTrip(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "be brief"},
		{Role: model.RoleUser, Content: "line one\n\nline three"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleUser, Content: "again"},
	}

	buf := NewBuffer()
	for _, m := range msgs {
		buf.AppendMessage(m.Role, m.Content)
	}

	assert.Equal(t, msgs, Parse(buf.Lines()).Messages)
}

func TestParse_RoundTripAfterHeader(t *testing.T) {
	buf := NewBuffer()
	buf.SetText("[chat-options]\nmodel = x\n")
	buf.AppendMessage(model.RoleUser, "hi")

	doc := Parse(buf.Lines())
	assert.Equal(t, config.Options{"model": "x"}, doc.Header)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "hi"}}, doc.Messages)
}
