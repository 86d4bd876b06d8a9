// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/aichat/internal/config"
)

func newChatCmd(a *app) *cobra.Command {
	var name, file, selectionFile string

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Run one chat turn against a transcript",
		Long: "Loads the transcript, sends the conversation and streams the reply into it.\n" +
			"The prompt may start with /role directives. Without a prompt the transcript's\n" +
			"trailing user message is sent. Ctrl-C aborts the reply.",
		Example: "  aichat chat --name review /reviewer check this function\n" +
			"  aichat chat --file notes.aichat --selection-file main.go explain",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.resolveTarget(name, file)
			if err != nil {
				return err
			}
			text, err := t.load()
			if err != nil {
				return fmt.Errorf("loading %s: %w", t, err)
			}

			var selection string
			if selectionFile != "" {
				data, err := os.ReadFile(config.ExpandHome(selectionFile))
				if err != nil {
					return fmt.Errorf("reading selection: %w", err)
				}
				selection = string(data)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c := a.newChat(config.TaskChat, t.String())
			c.Buffer().SetText(text)
			_, err = a.turn(ctx, c, t, cmd.OutOrStdout(), false, selection, strings.Join(args, " "))
			return err
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "stored transcript name (default \""+defaultTranscript+"\")")
	cmd.Flags().StringVarP(&file, "file", "f", "", "transcript file path")
	cmd.Flags().StringVarP(&selectionFile, "selection-file", "s", "", "file whose contents are appended to the prompt")
	return cmd
}

func newCompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [prompt...]",
		Short: "Send a single prompt and print the reply",
		Long: "Sends one prompt with the complete task options. When stdin is not a\n" +
			"terminal its contents are used as the selection.",
		Example: "  git diff | aichat complete /reviewer summarize",
		RunE: func(cmd *cobra.Command, args []string) error {
			var selection string
			if in := cmd.InOrStdin(); !isTerminal(in) {
				s, err := readInput(in)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				selection = strings.TrimRight(s, "\n")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c := a.newChat(config.TaskComplete, "complete")
			_, err := a.turn(ctx, c, nil, cmd.OutOrStdout(), true, selection, strings.Join(args, " "))
			return err
		},
	}
}
