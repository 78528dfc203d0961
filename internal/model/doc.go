// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat data structures: messages and transcripts.
//
// Transcripts persist as structured records ({id, role, content, timestamp,
// error}); presentation is derived from them at render time and is never
// stored.
//
// # Key Types
//
//   - Role: user (outgoing) or assistant (incoming)
//   - Message: one chat bubble's data, plus transient loading/revealing flags
//   - Transcript: ordered messages with lookup, insert and removal by ID
//
// # Usage
//
//	t := model.NewTranscript()
//	t.Append(model.NewUserMessage("Hello!"))
//	data, err := model.EncodeTranscript(t)
//	restored, err := model.DecodeTranscript(data)
package model
