// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/aichat/internal/roles"
	"github.com/jeranaias/aichat/internal/storage"
	"github.com/jeranaias/aichat/internal/util"
)

func newListCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transcripts, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			metas, err := s.Search(query)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), strings.TrimSuffix(storage.FormatList(metas), "\n")+"\n")
			return err
		},
	}
	cmd.Flags().StringVarP(&query, "search", "q", "", "only list transcripts containing this text")
	return cmd
}

func newRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the roles defined in the roles file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			names := a.roles.Names()
			if len(names) == 0 {
				fmt.Fprintf(out, "No roles defined in %s\n", a.roles.Path())
				return nil
			}
			_, err := io.WriteString(out, formatRoles(a.roles.Table(), names))
			return err
		},
	}
}

// formatRoles lists names with a one-line preview of each role's prompt.
func formatRoles(table roles.Table, names []string) string {
	width := 0
	for _, name := range names {
		width = max(width, util.StringWidth(name)+1)
	}

	var b strings.Builder
	for _, name := range names {
		preview := util.TruncateWidth(util.OneLine(table[name].String("prompt")), 60)
		b.WriteString(util.PadRight("/"+name, width))
		b.WriteString("  ")
		b.WriteString(preview)
		b.WriteString("\n")
	}
	return b.String()
}
