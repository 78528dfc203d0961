// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrConfirmationRequired is returned when a destructive action needs --yes
// and no prompt is possible.
var ErrConfirmationRequired = errors.New("confirmation required: re-run with --yes")

// ConfirmationOptions controls RequireConfirmation.
type ConfirmationOptions struct {
	// Yes is the --yes flag; it skips the prompt.
	Yes bool
	// Interactive reports whether In is a terminal that can answer.
	Interactive bool
	In          io.Reader
	Out         io.Writer
}

// RequireConfirmation asks "<action>? [y/N]" and reports the answer.
//
//  1. --yes confirms without prompting
//  2. without a terminal, ErrConfirmationRequired is returned
//  3. otherwise only "y" or "yes" confirms
func RequireConfirmation(action string, opts ConfirmationOptions) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if !opts.Interactive || opts.In == nil {
		return false, ErrConfirmationRequired
	}
	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "%s %s? [y/N] ", WarningStyle.Render("[!]"), action)
	}
	return readYes(bufio.NewReader(opts.In)), nil
}

func readYes(r *bufio.Reader) bool {
	answer, err := r.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return isYes(answer)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
