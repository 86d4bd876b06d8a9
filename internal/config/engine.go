// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// =============================================================================
// TASKS
// =============================================================================

// Task names select a per-task scope of the config file and the
// options-<task> group of a role.
const (
	TaskChat     = "chat"
	TaskEdit     = "edit"
	TaskComplete = "complete"
)

// Tasks lists every known task.
var Tasks = []string{TaskChat, TaskEdit, TaskComplete}

// IsTask reports whether name is a known task.
func IsTask(name string) bool {
	for _, t := range Tasks {
		if t == name {
			return true
		}
	}
	return false
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the typed view of an effective option record.
type Engine struct {
	// Request settings
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"maxTokens"`
	Temperature    float64 `mapstructure:"temperature"`
	RequestTimeout float64 `mapstructure:"requestTimeout"` // seconds
	EndpointURL    string  `mapstructure:"endpointUrl"`
	RequiresAuth   bool    `mapstructure:"requiresAuth"`
	Proxy          string  `mapstructure:"proxy"`
	Stream         bool    `mapstructure:"stream"`

	// Files
	TokenPath       string `mapstructure:"tokenPath"`
	RolesConfigPath string `mapstructure:"rolesConfigPath"`

	// UI layer settings, carried through untouched
	ScratchBufferKeepOpen bool   `mapstructure:"scratchBufferKeepOpen"`
	PreserveFocus         bool   `mapstructure:"preserveFocus"`
	OpenChatCommand       string `mapstructure:"openChatCommand"`
	CodeSyntaxEnabled     bool   `mapstructure:"codeSyntaxEnabled"`
	PasteMode             bool   `mapstructure:"pasteMode"`
}

// Defaults returns the built-in global option record.
func Defaults() Options {
	return Options{
		"model":                 "gpt-4o-mini",
		"maxTokens":             2000,
		"temperature":           1.0,
		"requestTimeout":        20,
		"endpointUrl":           "https://api.openai.com/v1/chat/completions",
		"requiresAuth":          true,
		"proxy":                 "",
		"stream":                true,
		"tokenPath":             "~/.config/openai.token",
		"rolesConfigPath":       "~/.aichat/roles.toml",
		"scratchBufferKeepOpen": false,
		"preserveFocus":         false,
		"openChatCommand":       "preset_below",
		"codeSyntaxEnabled":     true,
		"pasteMode":             false,
	}
}

// Decode converts an option record into an Engine. Keys missing from opts keep
// their built-in default; unknown keys are ignored. Values are weakly typed so
// "2000" decodes into MaxTokens.
func Decode(opts Options) (Engine, error) {
	var e Engine
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &e,
	})
	if err != nil {
		return Engine{}, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(Merge(Defaults(), opts))); err != nil {
		return Engine{}, fmt.Errorf("invalid options: %w", err)
	}
	return e, nil
}

// Timeout returns RequestTimeout as a duration. Zero means no timeout.
func (e Engine) Timeout() time.Duration {
	if e.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(e.RequestTimeout * float64(time.Second))
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the request settings of e.
func (e Engine) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(e.Model) == "" {
		errs = append(errs, ValidationError{Field: "model", Message: "must not be empty"})
	}

	if u, err := url.Parse(e.EndpointURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "endpointUrl",
			Message: fmt.Sprintf("invalid URL '%s', must be http or https", e.EndpointURL),
		})
	}

	if e.Proxy != "" {
		if u, err := url.Parse(e.Proxy); err != nil || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "proxy",
				Message: fmt.Sprintf("invalid proxy URL '%s'", e.Proxy),
			})
		}
	}

	if e.RequestTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "requestTimeout", Message: "must be greater than 0"})
	}

	if e.Temperature < 0 || e.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("%g out of range [0, 2]", e.Temperature),
		})
	}

	if e.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "maxTokens", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
