// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/aichat/internal/cloud"
	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/logging"
	"github.com/jeranaias/aichat/internal/model"
	"github.com/jeranaias/aichat/internal/roles"
	"github.com/jeranaias/aichat/internal/stream"
	"github.com/jeranaias/aichat/internal/transcript"
)

// Notices shown to the user.
const (
	NoticeSkipped  = "No new incoming user message found, skipped."
	NoticeTimeout  = "Request timeout..."
	NoticeCanceled = "Request canceled"
	NoticeNoAPIKey = "Missing API key, check tokenPath"
)

// Reasoning output is written between these lines.
const (
	ReasonStart  = "<think>"
	ReasonFinish = "</think>"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(level logging.Level, msg string)
}

// Streamer opens a chat-completion request. *cloud.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, e config.Engine, req cloud.ChatRequest) (*stream.Decoder, error)
}

// RoleSource provides the current role table. *roles.Store implements it.
type RoleSource interface {
	Table() roles.Table
}

type nopNotifier struct{}

func (nopNotifier) Notify(logging.Level, string) {}

// Config configures a Chat.
type Config struct {
	// Name is shown to the user. Registry assigns one when empty.
	Name string
	// Task selects the role option scope. Defaults to config.TaskChat.
	Task string
	// Base are the task options the transcript header and roles are merged
	// over, usually config.File.ForTask.
	Base config.Options

	Roles    RoleSource
	Client   Streamer
	Notifier Notifier
	Logger   *slog.Logger
	Includer *transcript.Includer
}

// =============================================================================
// CHAT
// =============================================================================

// State is the outcome of a turn.
type State int

const (
	StateSent State = iota
	StateSkipped
	StateError
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateSkipped:
		return "skipped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Result describes a finished turn.
type Result struct {
	State State
	// Engine is the effective configuration of the turn. Zero when the turn
	// failed before the options were decoded.
	Engine config.Engine
	// Reply is the assistant content streamed during the turn, without
	// reasoning output.
	Reply string
	// Canceled is set when the reply was cut short by Abort or by the
	// caller's context.
	Canceled bool
}

// Chat is one conversation bound to a transcript buffer.
type Chat struct {
	id       uuid.UUID
	name     string
	task     string
	buf      *transcript.Buffer
	base     config.Options
	keepOpen bool

	roles    RoleSource
	client   Streamer
	notifier Notifier
	logger   *slog.Logger
	includer *transcript.Includer

	turnMu sync.Mutex // held for the whole turn

	tokenMu sync.Mutex
	token   *requestToken
	gen     uint64
}

// New creates a chat with an empty transcript.
func New(cfg Config) *Chat {
	c := &Chat{
		id:       uuid.New(),
		name:     cfg.Name,
		task:     cfg.Task,
		buf:      transcript.NewBuffer(),
		base:     cfg.Base.Clone(),
		roles:    cfg.Roles,
		client:   cfg.Client,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		includer: cfg.Includer,
	}
	if c.task == "" {
		c.task = config.TaskChat
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.includer == nil {
		c.includer = &transcript.Includer{}
	}
	if e, err := config.Decode(c.base); err == nil {
		c.keepOpen = e.ScratchBufferKeepOpen
	}
	return c
}

// ID returns the chat's unique id.
func (c *Chat) ID() uuid.UUID { return c.id }

// Name returns the display name.
func (c *Chat) Name() string { return c.name }

// Buffer returns the transcript buffer.
func (c *Chat) Buffer() *transcript.Buffer { return c.buf }

// Busy reports whether a request is in flight.
func (c *Chat) Busy() bool {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.token != nil
}

// Abort cancels the in-flight request, if any.
func (c *Chat) Abort() {
	c.abortCurrent(ErrCanceled)
}

// Hide aborts the in-flight request and clears the transcript, unless the
// chat is configured with scratchBufferKeepOpen. It reports whether the
// transcript was cleared.
func (c *Chat) Hide() bool {
	if c.keepOpen {
		return false
	}
	c.Abort()
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	c.buf.Clear()
	return true
}

// Close aborts the in-flight request and waits for its turn to unwind.
func (c *Chat) Close() {
	c.Abort()
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
}

func (c *Chat) abortCurrent(cause error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != nil {
		c.token.abort(cause)
	}
}

// =============================================================================
// TURN
// =============================================================================

// Run executes one turn: it reads the transcript, sends the conversation
// and streams the reply into the buffer.
//
// A turn that has nothing to send returns StateSkipped and leaves the
// buffer untouched. Failures are reported to the Notifier and returned.
// Canceling a streaming reply is not an error: the turn is StateSent with
// Result.Canceled set.
func (c *Chat) Run(ctx context.Context, selection, rawPrompt string) (Result, error) {
	// Cancel the running turn, then wait for it.
	c.tokenMu.Lock()
	c.gen++
	gen := c.gen
	if c.token != nil {
		c.token.abort(ErrSuperseded)
	}
	c.tokenMu.Unlock()

	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	c.tokenMu.Lock()
	superseded := gen != c.gen
	c.tokenMu.Unlock()
	if superseded {
		return Result{State: StateError}, ErrSuperseded
	}

	resolved := roles.Resolve(rawPrompt, c.roleTable(), c.task)
	prompt := resolved.Prompt
	if prompt != "" && selection != "" {
		prompt += ":\n" + selection
	} else {
		prompt += selection
	}

	doc := transcript.Parse(c.buf.Lines())
	if doc.HeaderErr != nil {
		c.logger.Warn("ignoring transcript header", "chat", c.id, "error", doc.HeaderErr)
		c.notifier.Notify(logging.LevelWarn, doc.HeaderErr.Error())
	}

	msgs := doc.Messages
	openUser := true
	if last, ok := model.Last(msgs); ok && last.Role == model.RoleUser {
		openUser = false
		if last.IsBlank() {
			msgs = msgs[:len(msgs)-1]
		}
	}
	doc.Messages = msgs
	doc.ResolveIncludes(c.includer)
	msgs = doc.Messages

	engine, err := c.effectiveEngine(doc.Header, resolved.Options)
	if err != nil {
		c.notifier.Notify(logging.LevelError, err.Error())
		return Result{State: StateError}, err
	}

	if prompt != "" {
		msgs = append(msgs, model.NewUserMessage(prompt))
	}
	if last, ok := model.Last(msgs); !ok || last.Role != model.RoleUser {
		c.notifier.Notify(logging.LevelInfo, NoticeSkipped)
		return Result{State: StateSkipped, Engine: engine}, nil
	}

	req := cloud.NewChatRequest(engine, payload(msgs))

	if openUser {
		c.buf.OpenSection(transcript.MarkerUser)
	}
	if prompt != "" {
		c.buf.WriteParagraph(prompt)
	}

	token := c.begin(ctx, engine, gen)
	defer c.end(token)

	c.logger.Info("sending turn",
		"chat", c.id,
		"request", token.id,
		"model", engine.Model,
		"messages", len(req.Messages))

	dec, err := c.client.Stream(token.ctx, engine, req)
	if err != nil {
		return Result{State: StateError, Engine: engine}, c.requestFailed(token, err)
	}
	token.disarm()

	reply, canceled, err := c.receive(token, dec)
	c.buf.OpenSection(transcript.MarkerUser)

	res := Result{State: StateSent, Engine: engine, Reply: reply, Canceled: canceled}
	if err != nil {
		c.logger.Error("reply interrupted", "chat", c.id, "request", token.id, "error", err)
		c.notifier.Notify(logging.LevelError, err.Error())
		res.State = StateError
		return res, err
	}
	if canceled {
		c.logger.Info("reply canceled", "chat", c.id, "request", token.id, "cause", token.cause())
		if !errors.Is(token.cause(), ErrSuperseded) {
			c.notifier.Notify(logging.LevelInfo, NoticeCanceled)
		}
	}
	return res, nil
}

// effectiveEngine merges task defaults, the transcript header and role
// options, in increasing precedence.
func (c *Chat) effectiveEngine(header, roleOpts config.Options) (config.Engine, error) {
	opts := config.Merge(config.Merge(c.base, header), roleOpts)
	engine, err := config.Decode(config.Normalize(opts))
	if err != nil {
		return config.Engine{}, err
	}
	if err := engine.Validate(); err != nil {
		return config.Engine{}, fmt.Errorf("invalid options: %w", err)
	}
	return engine, nil
}

// receive streams the decoder into the buffer. Reasoning output is wrapped
// in ReasonStart/ReasonFinish lines.
func (c *Chat) receive(token *requestToken, dec *stream.Decoder) (string, bool, error) {
	defer dec.Close()

	dec.OnDecodeError = func(err error) {
		var perr *stream.ProviderError
		if errors.As(err, &perr) {
			c.logger.Error("provider error", "chat", c.id, "request", token.id, "error", err)
			c.notifier.Notify(logging.LevelError, err.Error())
			return
		}
		c.logger.Warn("decode error", "chat", c.id, "request", token.id, "error", err)
		c.notifier.Notify(logging.LevelWarn, err.Error())
	}

	c.buf.OpenSection(transcript.MarkerAssistant)

	var reply strings.Builder
	reasoning := false
	for chunk := range dec.Chunks() {
		if chunk.Text == "" {
			continue
		}
		switch chunk.Kind {
		case stream.KindReasoning:
			if !reasoning {
				c.buf.Append(ReasonStart + "\n")
				reasoning = true
			}
		case stream.KindContent:
			if reasoning {
				c.buf.Append("\n" + ReasonFinish + "\n\n")
				reasoning = false
			}
			reply.WriteString(chunk.Text)
		}
		c.buf.Append(chunk.Text)
	}
	if reasoning {
		c.buf.Append("\n" + ReasonFinish)
	}

	if err := dec.Err(); err != nil {
		return reply.String(), false, fmt.Errorf("reading reply: %w", err)
	}
	return reply.String(), dec.Canceled(), nil
}

// requestFailed reports a request that produced no response.
func (c *Chat) requestFailed(token *requestToken, err error) error {
	if cause := token.cause(); cause != nil {
		switch {
		case errors.Is(cause, ErrTimeout):
			c.logger.Warn("request timed out", "chat", c.id, "request", token.id)
			c.notifier.Notify(logging.LevelError, NoticeTimeout)
		case errors.Is(cause, ErrSuperseded):
			c.logger.Info("request superseded", "chat", c.id, "request", token.id)
		default:
			c.logger.Info("request canceled", "chat", c.id, "request", token.id)
			c.notifier.Notify(logging.LevelInfo, NoticeCanceled)
		}
		return cause
	}

	c.logger.Error("request failed", "chat", c.id, "request", token.id, "error", err)
	if errors.Is(err, config.ErrMissingAPIKey) {
		c.notifier.Notify(logging.LevelError, NoticeNoAPIKey)
	} else {
		c.notifier.Notify(logging.LevelError, err.Error())
	}
	return err
}

// begin installs the token of turn gen. A turn started after gen cancels it
// right away.
func (c *Chat) begin(ctx context.Context, engine config.Engine, gen uint64) *requestToken {
	token := newRequestToken(ctx, engine.Timeout())
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
	if gen != c.gen {
		token.abort(ErrSuperseded)
	}
	return token
}

func (c *Chat) end(token *requestToken) {
	c.tokenMu.Lock()
	if c.token == token {
		c.token = nil
	}
	c.tokenMu.Unlock()
	token.release()
}

func (c *Chat) roleTable() roles.Table {
	if c.roles == nil {
		return nil
	}
	return c.roles.Table()
}

// payload prepares messages for sending. Reasoning blocks of earlier replies
// are not sent back.
func payload(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleAssistant {
			m.Content = strings.TrimSpace(thinkBlock.ReplaceAllString(m.Content, ""))
		}
		out = append(out, m)
	}
	return out
}
