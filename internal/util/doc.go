// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the aichat packages.
//
// String Utilities:
//   - TruncateWidth: display-width aware truncation with ellipsis
//   - PadRight: pad to a display width
//   - OneLine: collapse whitespace for single-line previews
//
// File Operations:
//   - AtomicWrite, AtomicWriteFile: replace a file in one rename, keeping
//     the mode of an existing file
package util
