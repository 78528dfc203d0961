// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the TUI and the
// plain REPL.
//
// # Key Types
//
//   - Registry: the available commands
//   - Parser / ParseResult: split a line into a command and its arguments
//   - Dispatcher: runs commands against a session.Controller; its Intercept
//     method is a session.Interceptor
//   - Completer: tab completion for commands, arguments, titles and
//     suggestion prompts
//
// # Usage
//
//	d := commands.NewDispatcher(commands.NewRegistry(), &commands.Context{})
//	session.Run(ctx, ctrl, view,
//	    session.WithInterceptor(d.Intercept),
//	    session.WithMessageHandler(printNotice))
//
// Handlers return tea.Cmds. Feedback is delivered as NoticeMsg.
package commands
