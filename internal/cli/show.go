// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/model"
	"github.com/jeranaias/aichat/internal/transcript"
)

func newShowCmd(a *app) *cobra.Command {
	var name, file string
	var raw, expand bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a transcript",
		Long: "Prints a transcript. On a terminal messages are rendered as markdown.\n" +
			"With --expand the files named by include messages are shown, highlighted\n" +
			"when codeSyntaxEnabled is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.resolveTarget(name, file)
			if err != nil {
				return err
			}
			text, err := t.load()
			if err != nil {
				return fmt.Errorf("loading %s: %w", t, err)
			}

			out := cmd.OutOrStdout()
			if raw || !isTerminal(out) {
				_, err = io.WriteString(out, text)
				return err
			}

			e, err := a.file.Engine(config.TaskChat)
			if err != nil {
				return err
			}
			v := &view{
				styles: newStyles(out),
				width:  terminalWidth(out),
				syntax: e.CodeSyntaxEnabled && colorsEnabled(out),
			}
			if expand {
				v.includer = &transcript.Includer{Cache: a.cache}
			}
			v.markdown, err = newMarkdownRenderer(glamour.WithAutoStyle(), v.width)
			if err != nil {
				a.logger.Debug("markdown renderer unavailable", "error", err)
				v.markdown = nil
			}
			_, err = io.WriteString(out, v.render(text))
			return err
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "stored transcript name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "transcript file path")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the transcript text unchanged")
	cmd.Flags().BoolVarP(&expand, "expand", "e", false, "show the contents of included files")
	return cmd
}

// newMarkdownRenderer creates a glamour renderer wrapping at width.
func newMarkdownRenderer(style glamour.TermRendererOption, width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(max(width-4, MinTerminalWidth)))
}

// view renders a transcript for the terminal.
type view struct {
	styles *styles
	width  int
	// markdown renders message contents. Nil prints them as they are.
	markdown *glamour.TermRenderer
	// includer expands include messages. Nil shows their path list.
	includer *transcript.Includer
	// syntax enables highlighting of included files.
	syntax bool
}

// render formats every message under a styled role header.
func (v *view) render(text string) string {
	doc := transcript.Parse(strings.Split(text, "\n"))

	var b strings.Builder
	for _, key := range doc.Header.Keys() {
		fmt.Fprintf(&b, "%s\n", v.styles.dim.Render(fmt.Sprintf("%s = %v", key, doc.Header[key])))
	}
	if len(doc.Header) > 0 {
		b.WriteString("\n")
	}

	for _, msg := range doc.Messages {
		b.WriteString(v.styles.roleHeader(msg.Role, v.width))
		b.WriteString("\n")
		b.WriteString(v.content(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *view) content(msg model.Message) string {
	if msg.IsBlank() {
		return ""
	}
	if msg.Role == model.RoleInclude {
		if v.includer == nil {
			return msg.Content + "\n"
		}
		return v.includes(msg)
	}
	if v.markdown == nil {
		return msg.Content + "\n"
	}
	out, err := v.markdown.Render(msg.Content)
	if err != nil {
		return msg.Content + "\n"
	}
	return out
}

func (v *view) includes(msg model.Message) string {
	var b strings.Builder
	for _, f := range v.includer.Files(msg) {
		b.WriteString(v.styles.dim.Render("==> " + f.Path + " <=="))
		b.WriteString("\n")
		switch {
		case f.Err != nil:
			b.WriteString(transcript.BinaryPlaceholder)
		case v.syntax:
			b.WriteString(highlightFile(f.Path, f.Content))
		default:
			b.WriteString(f.Content)
		}
		b.WriteString("\n")
	}
	return b.String()
}
