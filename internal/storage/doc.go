// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat transcripts.
//
// A transcript is stored verbatim as a plain text file named
// <name>.aichat, so it can be edited with any editor and loaded back into a
// chat unchanged.
//
// # Usage
//
//	store, err := storage.NewTranscriptStore()
//	err = store.Save("review", buf.String())
//	text, err := store.Load("review")
//	metas, err := store.List() // most recent first
//
// # Storage Location
//
// Transcripts are stored in ~/.aichat/chats/.
package storage
