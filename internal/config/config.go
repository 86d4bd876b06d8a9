// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG FILE
// =============================================================================

// File holds the scopes of a config file. Global is already merged over the
// built-in defaults; Sections hold the raw per-task tables.
type File struct {
	Global   Options
	Sections map[string]Options

	// Path is the file the scopes were read from, empty for defaults.
	Path string
}

// Default returns a File containing only the built-in defaults.
func Default() *File {
	return &File{
		Global:   Defaults(),
		Sections: map[string]Options{},
	}
}

// ForTask returns the normalized base options of task: the global scope with
// the task table merged over it.
func (f *File) ForTask(task string) Options {
	return Normalize(Merge(f.Global, f.Sections[task]))
}

// Engine decodes the base options of task.
func (f *File) Engine(task string) (Engine, error) {
	return Decode(f.ForTask(task))
}

// Validate decodes and validates every task scope.
func (f *File) Validate() error {
	var errs ValidateErrors
	for _, task := range Tasks {
		e, err := f.Engine(task)
		if err != nil {
			errs = append(errs, ValidationError{Field: task, Message: err.Error()})
			continue
		}
		var verrs ValidateErrors
		if errors.As(e.Validate(), &verrs) {
			for _, v := range verrs {
				v.Field = task + "." + v.Field
				errs = append(errs, v)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the aichat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aichat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path, or ~/.aichat/config.toml when path is
// empty. A missing file yields the built-in defaults. Environment overrides
// are applied last and the result is validated.
func Load(path string) (*File, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	f, err := LoadFromPath(path)
	if errors.Is(err, fs.ErrNotExist) {
		f = Default()
	} else if err != nil {
		return nil, err
	}

	f.ApplyEnvOverrides()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return f, nil
}

// LoadFromPath decodes a TOML config file without applying environment
// overrides or validation.
func LoadFromPath(path string) (*File, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}

	f := Default()
	f.Path = path
	for key, value := range raw {
		table, ok := asGroup(value)
		if !ok {
			return nil, ValidationError{Field: key, Message: "expected a table"}
		}
		switch {
		case key == "global":
			f.Global = Merge(f.Global, table)
		case IsTask(key):
			f.Sections[key] = Options(table).Clone()
		default:
			return nil, ValidationError{
				Field:   key,
				Message: fmt.Sprintf("unknown table, must be one of: global, %s", strings.Join(Tasks, ", ")),
			}
		}
	}
	return f, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envOverrides maps environment variables to global option keys.
var envOverrides = []struct {
	env string
	key string
}{
	{"AICHAT_MODEL", "model"},
	{"AICHAT_ENDPOINT_URL", "endpointUrl"},
	{"AICHAT_TOKEN_PATH", "tokenPath"},
	{"AICHAT_PROXY", "proxy"},
	{"AICHAT_ROLES_PATH", "rolesConfigPath"},
}

// ApplyEnvOverrides applies AICHAT_* environment variables to the global
// scope. Unset or empty variables are ignored.
//
// Supported environment variables:
//   - AICHAT_MODEL: overrides model
//   - AICHAT_ENDPOINT_URL: overrides endpointUrl
//   - AICHAT_TOKEN_PATH: overrides tokenPath
//   - AICHAT_PROXY: overrides proxy
//   - AICHAT_ROLES_PATH: overrides rolesConfigPath
func (f *File) ApplyEnvOverrides() {
	override := Options{}
	for _, o := range envOverrides {
		if v := os.Getenv(o.env); v != "" {
			override[o.key] = v
		}
	}
	f.Global = Merge(f.Global, override)
}
