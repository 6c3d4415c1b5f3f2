// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the mediabrokerd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mediabrokerd",
		Short: "mediabrokerd - multi-client media playback broker",
		Long: `mediabrokerd arbitrates media playback between clients. It hands out
playback sessions, authorizes every open-uri request against the client's
security context, and reclaims sessions whose clients go away.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newCheckURICmd())
	cmd.AddCommand(newParseContextCmd())

	return cmd
}
