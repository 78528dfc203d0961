// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			fmt.Fprintln(cmd.OutOrStdout(), RenderLabel("Commit:", GitCommit))
			fmt.Fprintln(cmd.OutOrStdout(), RenderLabel("Built:", BuildDate))
			fmt.Fprintln(cmd.OutOrStdout(), RenderLabel("Go:", runtime.Version()))
			fmt.Fprintln(cmd.OutOrStdout(), RenderLabel("Platform:", runtime.GOOS+"/"+runtime.GOARCH))
		},
	}
}

func versionString() string {
	return "ravenx " + Version
}
