// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediabroker/mediabroker/internal/config"
	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/internal/transport"
)

// sessionsConfig holds configuration for the sessions command.
type sessionsConfig struct {
	socket     string
	jsonOutput bool
	timeout    time.Duration
}

// newSessionsCmd creates the sessions subcommand.
func newSessionsCmd() *cobra.Command {
	cfg := &sessionsConfig{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions of a running broker",
		Long: `List every session held by a running broker, marking the current
player, by connecting to the broker socket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessions(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.socket, "socket", "", "broker socket path (default: from config)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output sessions as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "time allowed to reach the broker")

	return cmd
}

func runSessions(cmd *cobra.Command, cfg *sessionsConfig) error {
	socket := cfg.socket
	if socket == "" {
		loaded, err := config.Load(configFile, nil)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		socket = loaded.Socket
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.timeout)
	defer cancel()

	client, err := transport.Dial(ctx, socket, transport.DefaultDialOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to broker at %s: %w", socket, err)
	}
	defer func() { _ = client.Close() }()

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if cfg.jsonOutput {
		out, err := formatSessionsJSON(sessions)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(out)
		return nil
	}
	cmd.Print(formatSessionsTable(sessions))
	return nil
}

func formatSessionsJSON(sessions []core.SessionInfo) (string, error) {
	if sessions == nil {
		sessions = []core.SessionInfo{}
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatSessionsTable(sessions []core.SessionInfo) string {
	if len(sessions) == 0 {
		return "no sessions\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tKEY\tCLIENT\tROLE\tLIFETIME\tSTATE\tSTATUS\tURI")
	for _, s := range sessions {
		marker := ""
		if s.Current {
			marker = "*"
		}
		uri := s.URI
		if uri == "" {
			uri = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, s.Key, s.Client, s.Role, s.Lifetime, s.State, s.Status, uri)
	}
	_ = w.Flush()
	return b.String()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
