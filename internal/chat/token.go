// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Causes attached to a canceled request.
var (
	// ErrTimeout means no response arrived within requestTimeout.
	ErrTimeout = errors.New("request timeout")

	// ErrCanceled means the request was aborted by the user.
	ErrCanceled = errors.New("request canceled")

	// ErrSuperseded means a newer turn replaced the request.
	ErrSuperseded = errors.New("request superseded by a newer turn")
)

// requestToken is the cancellation handle of one request.
type requestToken struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelCauseFunc
	timer  *time.Timer
}

// newRequestToken derives a token from parent. When timeout is positive the
// token is canceled with ErrTimeout unless disarmed first.
func newRequestToken(parent context.Context, timeout time.Duration) *requestToken {
	ctx, cancel := context.WithCancelCause(parent)
	t := &requestToken{id: uuid.New(), ctx: ctx, cancel: cancel}
	if timeout > 0 {
		t.timer = time.AfterFunc(timeout, func() { cancel(ErrTimeout) })
	}
	return t
}

// disarm stops the timeout. It is called once the response is accepted.
func (t *requestToken) disarm() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

// abort cancels the request with cause. Later calls do not change the
// cause.
func (t *requestToken) abort(cause error) {
	t.cancel(cause)
}

// release frees the token's resources once its turn is over.
func (t *requestToken) release() {
	t.disarm()
	t.cancel(context.Canceled)
}

// cause returns why the token was canceled, or nil while it is live.
func (t *requestToken) cause() error {
	if t.ctx.Err() == nil {
		return nil
	}
	return context.Cause(t.ctx)
}
