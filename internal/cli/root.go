// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/aichat/internal/chat"
	"github.com/jeranaias/aichat/internal/cloud"
	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/logging"
	"github.com/jeranaias/aichat/internal/roles"
	"github.com/jeranaias/aichat/internal/storage"
	"github.com/jeranaias/aichat/internal/transcript"
	"github.com/jeranaias/aichat/internal/util"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// errTurnFailed is returned after a failure was already shown as a notice.
var errTurnFailed = errors.New("turn failed")

// app holds what every command needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	rolesPath  string
	logLevel   string

	file    *config.File
	roles   *roles.Store
	logger  *slog.Logger
	console *logging.Console
	client  *cloud.Client
	cache   *transcript.FileCache

	transcripts *storage.TranscriptStore
}

// Execute runs the aichat command line and returns the process exit code.
func Execute() int {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errTurnFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "aichat",
		Short: "Chat with a language model inside a plain-text transcript",
		Long: "aichat keeps a multi-turn conversation in a plain-text transcript.\n" +
			"Role markers (>>> user, <<< assistant, >>> system, >>> include) structure\n" +
			"the text; replies are streamed back into the same file.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.aichat/config.toml)")
	flags.StringVar(&a.rolesPath, "roles", "", "roles file (default: rolesConfigPath option)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "diagnostic log level: debug, info, warn, error")

	root.AddCommand(
		newChatCmd(a),
		newReplCmd(a),
		newCompleteCmd(a),
		newShowCmd(a),
		newListCmd(a),
		newRolesCmd(a),
	)
	return root
}

// setup loads configuration and builds the shared services.
func (a *app) setup(cmd *cobra.Command) error {
	stderr := cmd.ErrOrStderr()

	logger, err := logging.Setup(a.logLevel, stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.console = logging.NewConsole(stderr, colorsEnabled(stderr))

	a.file, err = config.Load(a.configPath)
	if err != nil {
		return err
	}

	path := a.rolesPath
	if path == "" {
		e, err := a.file.Engine(config.TaskChat)
		if err != nil {
			return err
		}
		path = e.RolesConfigPath
	}
	a.roles = roles.NewStore(path)
	if err := a.roles.Reload(); err != nil {
		a.logger.Warn("roles not loaded", "path", a.roles.Path(), "error", err)
	}

	a.client = cloud.NewClient(logger).WithUserAgent("aichat/" + Version)
	a.cache = transcript.NewFileCache(0, 0)
	return nil
}

// store returns the transcript store, creating its directory on first use.
func (a *app) store() (*storage.TranscriptStore, error) {
	if a.transcripts == nil {
		s, err := storage.NewTranscriptStore()
		if err != nil {
			return nil, fmt.Errorf("transcript store: %w", err)
		}
		a.transcripts = s
	}
	return a.transcripts, nil
}

// newChat creates a chat for task.
func (a *app) newChat(task, name string) *chat.Chat {
	return chat.New(chat.Config{
		Name:     name,
		Task:     task,
		Base:     a.file.ForTask(task),
		Roles:    a.roles,
		Client:   a.client,
		Notifier: a.console,
		Logger:   a.logger.With("component", "chat"),
		Includer: &transcript.Includer{Cache: a.cache},
	})
}

// =============================================================================
// TRANSCRIPT TARGETS
// =============================================================================

// defaultTranscript is used when neither --name nor --file is given.
const defaultTranscript = "default"

// target is where a command's transcript lives: a named transcript in the
// store or a plain file.
type target struct {
	name  string
	path  string
	store *storage.TranscriptStore
}

// resolveTarget picks the transcript named by the --name and --file flags.
func (a *app) resolveTarget(name, path string) (*target, error) {
	if name != "" && path != "" {
		return nil, errors.New("--name and --file are mutually exclusive")
	}
	if path != "" {
		return &target{path: config.ExpandHome(path)}, nil
	}
	if name == "" {
		name = defaultTranscript
	}
	s, err := a.store()
	if err != nil {
		return nil, err
	}
	return &target{name: name, path: s.Path(name), store: s}, nil
}

// String returns the name shown to the user.
func (t *target) String() string {
	if t.name != "" {
		return t.name
	}
	return t.path
}

// load returns the transcript text. A transcript that does not exist yet is
// empty.
func (t *target) load() (string, error) {
	if t.store != nil {
		text, err := t.store.Load(t.name)
		if errors.Is(err, storage.ErrTranscriptNotFound) {
			return "", nil
		}
		return text, err
	}
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}

// save writes the transcript text atomically.
func (t *target) save(text string) error {
	if t.store != nil {
		return t.store.Save(t.name, text)
	}
	return util.AtomicWriteFile(t.path, []byte(text), 0644)
}

// readInput reads all of r.
func readInput(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
