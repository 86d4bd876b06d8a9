// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/aichat/internal/chat"
	"github.com/jeranaias/aichat/internal/transcript"
)

// flushInterval is the minimum time between transcript writes while a reply
// streams in.
const flushInterval = 250 * time.Millisecond

// =============================================================================
// ECHO
// =============================================================================

// echo writes the text appended to a buffer to w as it arrives.
type echo struct {
	w io.Writer
	// replyOnly limits output to the assistant reply.
	replyOnly bool
	inReply   bool
	lastLen   int // length of the buffer's last line already seen
}

// onEdit is a transcript.Listener.
func (e *echo) onEdit(ed transcript.Edit) {
	switch {
	case ed.Reset:
	case !e.replyOnly:
		e.write(ed)
	case !e.inReply:
		e.inReply = slices.Contains(ed.NewLines, transcript.MarkerAssistant)
	case slices.Contains(ed.NewLines, transcript.MarkerUser):
		e.inReply = false
		io.WriteString(e.w, "\n")
	default:
		e.write(ed)
	}
	e.track(ed)
}

func (e *echo) write(ed transcript.Edit) {
	if len(ed.Tail) > e.lastLen {
		io.WriteString(e.w, ed.Tail[e.lastLen:])
	}
	for _, line := range ed.NewLines {
		io.WriteString(e.w, "\n"+line)
	}
}

func (e *echo) track(ed transcript.Edit) {
	if n := len(ed.NewLines); n > 0 {
		e.lastLen = len(ed.NewLines[n-1])
	} else {
		e.lastLen = len(ed.Tail)
	}
}

// =============================================================================
// TURN
// =============================================================================

// turn runs one chat turn with its output echoed to out. When t is not nil
// the transcript is written to it at most every flushInterval while the
// reply streams and once more at the end.
func (a *app) turn(ctx context.Context, c *chat.Chat, t *target, out io.Writer, replyOnly bool, selection, prompt string) (chat.Result, error) {
	buf := c.Buffer()
	e := &echo{w: out, replyOnly: replyOnly, lastLen: len(buf.LastLine())}

	dirty := make(chan struct{}, 1)
	buf.SetListener(func(ed transcript.Edit) {
		e.onEdit(ed)
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer buf.SetListener(nil)

	flush := func() {
		if err := t.save(buf.String()); err != nil {
			a.logger.Error("saving transcript", "transcript", t.String(), "error", err)
		}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	if t != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			every := rate.Sometimes{Interval: flushInterval}
			for {
				select {
				case <-done:
					return
				case <-dirty:
					every.Do(flush)
				}
			}
		}()
	}

	res, err := c.Run(ctx, selection, prompt)
	close(done)
	wg.Wait()

	if t != nil && res.State != chat.StateSkipped {
		flush()
	}
	if !replyOnly && res.State == chat.StateSent {
		io.WriteString(out, "\n")
	}
	if err != nil {
		a.logger.Debug("turn failed", "chat", c.Name(), "error", err)
		return res, errTurnFailed
	}
	return res, nil
}
