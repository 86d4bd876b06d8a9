// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs conversation turns against a transcript buffer.
//
// A turn reads the transcript, resolves role directives in the raw prompt,
// merges the effective options, sends the conversation and streams the
// assistant reply back into the buffer:
//
//	c := chat.New(chat.Config{
//	    Base:     file.ForTask(config.TaskChat),
//	    Roles:    store,
//	    Client:   cloud.NewClient(logger),
//	    Notifier: logging.NewConsole(os.Stderr, true),
//	})
//	res, err := c.Run(ctx, selection, "/reviewer fix this")
//
// Only one turn runs per chat. Starting a turn cancels the one in flight and
// waits for it to unwind before touching the buffer.
package chat
