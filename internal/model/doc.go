// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the transcript parser,
// the conversation orchestrator and the API client.
//
// # Key Types
//
//   - Role: message role enumeration (system, user, assistant, include)
//   - Message: a role-tagged message in conversation order
//
// The include role is transient. The transcript parser rewrites include
// messages into user messages carrying the referenced file contents before
// anything is handed to the network layer.
package model
