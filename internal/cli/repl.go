// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/aichat/internal/chat"
	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/logging"
	"github.com/jeranaias/aichat/internal/roles"
)

const replHelp = `Each line is sent as a prompt; start it with /role to apply roles.
Commands:
  :new            start a new chat
  :chats          list open chats
  :switch N       switch to chat N of :chats
  :show           print the current transcript
  :save [NAME]    store the current transcript
  :hide           clear the current transcript
  :help           show this help
  :quit           exit (also Ctrl-D)
`

func newReplCmd(a *app) *cobra.Command {
	var name, file string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat interactively",
		Long:  "Starts an interactive session. Each line is a prompt; Ctrl-C aborts a reply.\n\n" + replHelp,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.resolveTarget(name, file)
			if err != nil {
				return err
			}
			text, err := t.load()
			if err != nil {
				return fmt.Errorf("loading %s: %w", t, err)
			}

			if w, err := roles.NewWatcher(a.roles, roles.DefaultDebounce, a.logger); err == nil {
				if err := w.Watch(); err != nil {
					a.logger.Warn("watching roles", "error", err)
				}
				defer w.Close()
			}

			r := newRepl(a, cmd.OutOrStdout())
			defer r.registry.Close()

			first := r.registry.New()
			first.Buffer().SetText(text)
			r.targets[first.ID()] = t

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			history := historyPath()
			if f, err := os.Open(history); err == nil {
				line.ReadHistory(f)
				f.Close()
			}
			defer saveHistory(line, history)

			fmt.Fprintf(r.out, "aichat %s - %s (:help for commands)\n", Version, t)
			for {
				input, err := line.Prompt(r.prompt())
				if err != nil {
					// Ctrl-C, Ctrl-D or a closed stdin end the session.
					fmt.Fprintln(r.out)
					return nil
				}
				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}
				line.AppendHistory(input)

				if strings.HasPrefix(input, ":") {
					if quit := r.command(input); quit {
						return nil
					}
					continue
				}
				r.send(cmd, input)
			}
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "stored transcript name (default \""+defaultTranscript+"\")")
	cmd.Flags().StringVarP(&file, "file", "f", "", "transcript file path")
	return cmd
}

// repl is the state of an interactive session.
type repl struct {
	a        *app
	out      io.Writer
	registry *chat.Registry
	targets  map[uuid.UUID]*target
}

func newRepl(a *app, out io.Writer) *repl {
	return &repl{
		a:   a,
		out: out,
		registry: chat.NewRegistry(chat.DefaultCapacity, func(name string) *chat.Chat {
			return a.newChat(config.TaskChat, name)
		}),
		targets: make(map[uuid.UUID]*target),
	}
}

func (r *repl) prompt() string {
	return strings.TrimPrefix(r.registry.Current().Name(), ">>> ") + "> "
}

// send runs a turn on the current chat. Ctrl-C aborts it.
func (r *repl) send(cmd *cobra.Command, input string) {
	c := r.registry.Current()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Turn failures were already shown as notices.
	_, _ = r.a.turn(ctx, c, r.targets[c.ID()], r.out, true, "", input)
}

// command handles a ":" command. It reports whether the session should end.
func (r *repl) command(input string) bool {
	verb, arg, _ := strings.Cut(strings.TrimPrefix(input, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "q", "quit", "exit":
		return true
	case "h", "help":
		io.WriteString(r.out, replHelp)
	case "new":
		c := r.registry.New()
		fmt.Fprintf(r.out, "Started %s\n", c.Name())
	case "chats":
		for i, c := range r.registry.List() {
			mark := " "
			if i == 0 {
				mark = "*"
			}
			fmt.Fprintf(r.out, "%s %d  %s  (%d lines)\n", mark, i+1, c.Name(), c.Buffer().Len())
		}
	case "switch":
		if err := r.switchTo(arg); err != nil {
			r.a.console.Notify(logging.LevelError, err.Error())
		}
	case "show":
		io.WriteString(r.out, strings.TrimRight(r.registry.Current().Buffer().String(), "\n")+"\n")
	case "save":
		if err := r.save(arg); err != nil {
			r.a.console.Notify(logging.LevelError, err.Error())
		}
	case "hide":
		if r.registry.Current().Hide() {
			fmt.Fprintln(r.out, "Transcript cleared")
		} else {
			fmt.Fprintln(r.out, "Transcript kept (scratchBufferKeepOpen)")
		}
	default:
		r.a.console.Notify(logging.LevelWarn, fmt.Sprintf("unknown command :%s (:help lists commands)", verb))
	}
	return false
}

func (r *repl) switchTo(arg string) error {
	n, err := strconv.Atoi(arg)
	chats := r.registry.List()
	if err != nil || n < 1 || n > len(chats) {
		return fmt.Errorf("no chat %q, see :chats", arg)
	}
	c, ok := r.registry.Get(chats[n-1].ID())
	if !ok {
		return errors.New("chat was closed")
	}
	fmt.Fprintf(r.out, "Switched to %s\n", c.Name())
	return nil
}

// save stores the current transcript. A chat that already has a transcript
// keeps writing to it unless a new name is given.
func (r *repl) save(name string) error {
	c := r.registry.Current()
	t := r.targets[c.ID()]
	if name != "" || t == nil {
		if name == "" {
			return errors.New("usage: :save NAME")
		}
		s, err := r.a.store()
		if err != nil {
			return err
		}
		t = &target{name: name, path: s.Path(name), store: s}
	}
	if err := t.save(c.Buffer().String()); err != nil {
		return err
	}
	r.targets[c.ID()] = t
	fmt.Fprintf(r.out, "Saved to %s\n", t.path)
	return nil
}

// historyPath returns the REPL history file.
func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "repl_history")
}

// saveHistory writes the liner history with owner-only permissions.
func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
