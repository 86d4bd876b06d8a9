// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"strings"
)

// ErrMissingAPIKey is returned when the token file is missing, unreadable or
// empty.
var ErrMissingAPIKey = errors.New("missing API key")

// Token is the credential sent with authenticated requests.
type Token struct {
	APIKey string
	OrgID  string
}

// ReadToken reads a token file of the form "apiKey[,orgId]".
func ReadToken(path string) (Token, error) {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return Token{}, ErrMissingAPIKey
	}
	key, org, _ := strings.Cut(strings.TrimSpace(string(data)), ",")
	key = strings.TrimSpace(key)
	if key == "" {
		return Token{}, ErrMissingAPIKey
	}
	return Token{APIKey: key, OrgID: strings.TrimSpace(org)}, nil
}

// String redacts the API key.
func (t Token) String() string {
	if t.OrgID == "" {
		return "Token{APIKey: [REDACTED]}"
	}
	return "Token{APIKey: [REDACTED], OrgID: " + t.OrgID + "}"
}
