// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript parses and edits chat transcripts.
//
// A transcript is plain text. An optional [chat-options] header is followed by
// messages, each opened by a role marker line:
//
//	[chat-options]
//	model = gpt-4o
//	temperature = 0.2
//
//	>>> system
//
//	You are a helpful assistant.
//
//	>>> include
//
//	README.md
//	internal/**/*.go
//
//	>>> user
//
//	Summarize the code above.
//
//	<<< assistant
//
//	The code ...
//
// # Key Types
//
//   - Document: the result of Parse (header options and messages)
//   - Includer: expands include messages into file contents
//   - FileCache: LRU cache of included files, invalidated by mtime
//   - Buffer: the in-memory transcript, publishing every edit to a Listener
package transcript
