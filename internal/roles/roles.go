// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package roles

import (
	"strings"
	"unicode"

	"github.com/jeranaias/aichat/internal/config"
)

// Table maps role names to role definitions. A definition may carry "prompt",
// "options" and "options-<task>" keys.
type Table map[string]config.Options

// Resolved is the outcome of Resolve.
type Resolved struct {
	// Prompt is the literal prompt, prefixed with the composed role prompt.
	Prompt string
	// Options are the composed role options. Never nil.
	Options config.Options
}

// Resolve strips leading "/name" role tokens from rawPrompt and composes the
// named roles from table. Unknown names are skipped. When task is non-empty
// the roles' "options-<task>" group is merged over their "options" group.
//
// Tokens are split on horizontal whitespace only, so a newline stays inside
// the token it appears in.
func Resolve(rawPrompt string, table Table, task string) Resolved {
	prompt := strings.TrimSpace(rawPrompt)
	if !strings.HasPrefix(prompt, "/") {
		return Resolved{Prompt: prompt, Options: config.Options{}}
	}

	parts := strings.FieldsFunc(prompt, isHorizontalSpace)
	var names []string
	i := 0
	for ; i < len(parts) && strings.HasPrefix(parts[i], "/"); i++ {
		names = append(names, parts[i][1:])
	}
	prompt = strings.Join(parts[i:], " ")

	composed := config.Options{}
	for _, name := range names {
		if def, ok := table[name]; ok {
			composed = config.Merge(composed, def)
		}
	}

	options := config.Options{}
	if len(composed) == 0 {
		return Resolved{Prompt: prompt, Options: options}
	}

	if p := composed.String("prompt"); p != "" {
		prompt = p + ":\n" + prompt
	}
	if group, ok := composed.Group("options"); ok {
		options = group.Clone()
	}
	if task != "" {
		if group, ok := composed.Group("options-" + task); ok {
			options = config.Merge(options, group)
		}
	}
	return Resolved{Prompt: prompt, Options: options}
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && r != '\r' && unicode.IsSpace(r)
}
