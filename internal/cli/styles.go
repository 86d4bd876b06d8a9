// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Styling for transcript output.

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/aichat/internal/model"
)

// styles holds the lipgloss styles bound to one output.
type styles struct {
	roles map[model.Role]lipgloss.Style
	dim   lipgloss.Style
	title lipgloss.Style
}

// newStyles creates styles rendering for w. Colors follow colorProfile(w).
func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(colorProfile(w))

	return &styles{
		roles: map[model.Role]lipgloss.Style{
			model.RoleSystem:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")), // Orange
			model.RoleUser:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),  // Cyan
			model.RoleAssistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),  // Green
			model.RoleInclude:   r.NewStyle().Foreground(lipgloss.Color("245")),            // Gray
		},
		dim:   r.NewStyle().Foreground(lipgloss.Color("242")),
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}
}

// roleHeader renders the header line shown above a message.
func (s *styles) roleHeader(role model.Role, width int) string {
	label := " " + role.DisplayName() + " "
	rule := strings.Repeat("─", max(width-len(label)-2, 4))
	style, ok := s.roles[role]
	if !ok {
		style = s.dim
	}
	return style.Render("──" + label + rule)
}
