// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up diagnostic logging and prints user notices.
//
// Diagnostics go through log/slog and are meant for debugging the tool.
// Notices are the short messages a user needs to see, such as a skipped turn
// or a request timeout, and are printed by Console with a colored level
// prefix.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// =============================================================================
// DIAGNOSTIC LOGGING
// =============================================================================

// ParseLevel converts a level name to a slog level. Unknown names are an
// error.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Setup creates a text logger writing to w at the given level and installs
// it as the slog default.
func Setup(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}

// =============================================================================
// NOTICES
// =============================================================================

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Console prints notices to a writer, one line each.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	prefix map[Level]*color.Color
}

// NewConsole creates a console writing to w. Colors are only used when
// colorize is true.
func NewConsole(w io.Writer, colorize bool) *Console {
	c := &Console{
		out: w,
		prefix: map[Level]*color.Color{
			LevelInfo:  color.New(color.FgBlue),
			LevelWarn:  color.New(color.FgYellow),
			LevelError: color.New(color.FgRed),
		},
	}
	for _, p := range c.prefix {
		if colorize {
			p.EnableColor()
		} else {
			p.DisableColor()
		}
	}
	return c
}

// Notify prints msg with a level prefix such as "[WARN]".
func (c *Console) Notify(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := "[" + strings.ToUpper(level.String()) + "]"
	if p, ok := c.prefix[level]; ok {
		tag = p.Sprint(tag)
	}
	fmt.Fprintln(c.out, tag+" "+msg)
}
