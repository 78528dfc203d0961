// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// View presents snapshots and reports submissions.
type View interface {
	// Render is called after every state change, from the driver goroutine.
	Render(Snapshot)

	// OnSubmit registers the function the view calls with each line the
	// user enters. The function blocks until the driver has taken the line
	// and may be called from any goroutine.
	OnSubmit(func(text string))
}

// Interceptor handles a line before it is submitted. It returns handled=true
// to stop the line from being sent as a prompt, and may return a command to
// run. Slash commands are implemented this way.
type Interceptor func(c *Controller, line string) (cmd tea.Cmd, handled bool)

// RunOption configures Run.
type RunOption func(*runner)

// WithInterceptor installs fn ahead of Submit.
func WithInterceptor(fn Interceptor) RunOption {
	return func(r *runner) {
		r.intercept = fn
	}
}

// WithMessageHandler passes messages the controller does not recognise,
// such as notices from slash commands, to fn. Such a message ends its chain.
func WithMessageHandler(fn func(tea.Msg)) RunOption {
	return func(r *runner) {
		r.other = fn
	}
}

// WithIdleHandler calls fn each time a line's command chain has finished
// and the driver is ready for the next one.
func WithIdleHandler(fn func()) RunOption {
	return func(r *runner) {
		r.idle = fn
	}
}

type runner struct {
	ctrl      *Controller
	view      View
	intercept Interceptor
	other     func(tea.Msg)
	idle      func()
}

// Run binds view to c and processes submissions until ctx is done. Each
// submission's command chain (latency, request, reveal ticks) runs to
// completion on the calling goroutine, rendering after every step, before
// the next line is taken.
func Run(ctx context.Context, c *Controller, view View, opts ...RunOption) error {
	r := &runner{ctrl: c, view: view}
	for _, opt := range opts {
		opt(r)
	}

	lines := make(chan string)
	view.OnSubmit(func(text string) {
		select {
		case lines <- text:
		case <-ctx.Done():
		}
	})

	view.Render(c.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-lines:
			r.process(ctx, line)
			if r.idle != nil {
				r.idle()
			}
		}
	}
}

func (r *runner) process(ctx context.Context, line string) {
	var cmd tea.Cmd
	handled := false
	if r.intercept != nil {
		cmd, handled = r.intercept(r.ctrl, line)
	}
	if !handled {
		cmd = r.ctrl.Submit(line)
	}
	r.view.Render(r.ctrl.Snapshot())
	r.drain(ctx, cmd)
}

// drain runs cmd and every command it leads to. Messages the controller
// does not recognise end the chain.
func (r *runner) drain(ctx context.Context, cmd tea.Cmd) {
	for cmd != nil {
		if ctx.Err() != nil {
			return
		}
		msg := cmd()
		if !IsControllerMsg(msg) {
			if msg != nil && r.other != nil {
				r.other(msg)
			}
			return
		}
		cmd = r.ctrl.Handle(msg)
		r.view.Render(r.ctrl.Snapshot())
	}
}

// Drain runs cmd synchronously to completion against c, calling render after
// each step. It is Run's inner loop, exposed for one-shot callers.
func Drain(ctx context.Context, c *Controller, cmd tea.Cmd, render func(Snapshot)) {
	r := &runner{ctrl: c, view: renderFunc(render)}
	r.drain(ctx, cmd)
}

type renderFunc func(Snapshot)

func (f renderFunc) Render(s Snapshot) {
	if f != nil {
		f(s)
	}
}

func (renderFunc) OnSubmit(func(string)) {}
