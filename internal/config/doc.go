// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides layered option records and configuration loading
// for aichat.
//
// Options are loose maps so that the same merge rule can be applied to the
// built-in defaults, the per-task tables of the config file, the
// [chat-options] header of a transcript and the options of a role.
//
// # Key Types
//
//   - Options: nested option record (map[string]any)
//   - Engine: typed view of an effective option record
//   - File: the parsed config file with global and per-task scopes
//   - Token: API credential read from the token file
//
// # Configuration Precedence
//
// The effective options of a request are built from (lowest first):
//   - Built-in defaults
//   - [global] table of ~/.aichat/config.toml and AICHAT_* environment variables
//   - the task table ([chat], [edit], [complete])
//   - the transcript's [chat-options] header
//   - role options
//
// Each layer is applied with Merge, which ignores empty-string values unless
// the key is listed in AlwaysOverride.
//
// # Usage
//
//	f, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	opts := config.Merge(f.ForTask(config.TaskChat), header)
//	engine, err := config.Decode(opts)
package config
