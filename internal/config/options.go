// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Options is a nested option record. Nested groups are Options or
// map[string]any values; both are accepted everywhere.
type Options map[string]any

// AlwaysOverride lists the keys whose empty-string values still replace the
// base value during Merge. Clearing a prompt must be possible.
var AlwaysOverride = map[string]bool{
	"prompt":        true,
	"initialPrompt": true,
	"systemPrompt":  true,
}

// Merge returns a deep copy of base with override applied on top of it.
//
// Nested groups are merged key by key and groups missing in base are created.
// A leaf present in override replaces the base value, except that the empty
// string and nil never replace anything unless the key is in AlwaysOverride.
// Neither input is modified.
func Merge(base, override Options) Options {
	out := base.Clone()
	if out == nil {
		out = Options{}
	}
	mergeInto(out, override)
	return out
}

func mergeInto(dst Options, src map[string]any) {
	for key, value := range src {
		if group, ok := asGroup(value); ok {
			target, ok := asGroup(dst[key])
			if !ok {
				target = Options{}
			}
			next := Options(target)
			mergeInto(next, group)
			dst[key] = next
			continue
		}
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" && !AlwaysOverride[key] {
			continue
		}
		dst[key] = cloneValue(value)
	}
}

// Clone returns a structural deep copy of o. Nested groups become Options.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = cloneValue(v)
	}
	return out
}

// Keys returns the top-level keys in sorted order.
func (o Options) Keys() []string {
	return slices.Sorted(maps.Keys(o))
}

// String returns the string value of key, or "" when it is missing or not a
// string.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Group returns the nested group stored under key.
func (o Options) Group(key string) (Options, bool) {
	g, ok := asGroup(o[key])
	return Options(g), ok
}

func asGroup(v any) (map[string]any, bool) {
	switch g := v.(type) {
	case Options:
		return g, true
	case map[string]any:
		return g, true
	}
	return nil, false
}

func cloneValue(v any) any {
	if g, ok := asGroup(v); ok {
		return Options(g).Clone()
	}
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

// =============================================================================
// PATH NORMALIZATION
// =============================================================================

// pathKeys are expanded by Normalize.
var pathKeys = []string{"tokenPath", "rolesConfigPath"}

// Normalize returns a copy of o with a leading ~ in path options replaced by
// the home directory.
func Normalize(o Options) Options {
	out := o.Clone()
	if out == nil {
		return Options{}
	}
	for _, key := range pathKeys {
		if p, ok := out[key].(string); ok {
			out[key] = ExpandHome(p)
		}
	}
	return out
}

// ExpandHome replaces a leading "~" with the user's home directory. The path
// is returned unchanged when the home directory cannot be determined.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
