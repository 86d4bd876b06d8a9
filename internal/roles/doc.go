// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package roles resolves role directives in a raw prompt.
//
// A raw prompt may start with one or more "/name" tokens. Each name selects a
// role from the role table; the roles compose left to right and contribute a
// prompt prefix and option overrides:
//
//	/reviewer /terse fix this
//
// # Role File
//
// The role table is a TOML file whose top-level tables are role names:
//
//	[reviewer]
//	prompt = "review the following code"
//
//	[reviewer.options]
//	temperature = 0.2
//
//	[reviewer.options-chat]
//	model = "gpt-4o"
//
// Store keeps the current table in memory and Watcher reloads it when the
// file changes on disk.
package roles
