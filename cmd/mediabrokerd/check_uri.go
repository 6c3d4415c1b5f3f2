// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mediabroker/mediabroker/internal/access"
)

// errDenied is returned by check-uri when the request would be denied.
var errDenied = errors.New("access denied")

// checkURIConfig holds configuration for the check-uri command.
type checkURIConfig struct {
	context string
	euid    int
}

// decisionDoc is the YAML form of a dry-run decision.
type decisionDoc struct {
	Context string `yaml:"context"`
	URI     string `yaml:"uri"`
	Allowed bool   `yaml:"allowed"`
	Rule    string `yaml:"rule"`
	Reason  string `yaml:"reason"`
}

// newCheckURICmd creates the check-uri subcommand.
func newCheckURICmd() *cobra.Command {
	cfg := &checkURIConfig{}

	cmd := &cobra.Command{
		Use:   "check-uri --context NAME URI",
		Short: "Dry-run an open-uri authorization",
		Long: `Evaluate whether a client with the given security context may open
URI, using the same rules as the daemon. Exits non-zero when denied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckURI(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.context, "context", access.Unconfined, "security context label of the client")
	cmd.Flags().IntVar(&cfg.euid, "euid", -1, "uid whose runtime directory counts as app data (default: current)")

	return cmd
}

func runCheckURI(cmd *cobra.Command, cfg *checkURIConfig, rawURI string) error {
	c, err := access.ParseContext(cfg.context)
	if err != nil {
		return fmt.Errorf("invalid context: %w", err)
	}
	rules, err := loadRules(cfg.euid)
	if err != nil {
		return err
	}

	d := access.NewAuthorizer(rules).Authorize(commandContext(cmd), c, rawURI)

	out, err := yaml.Marshal(decisionDoc{
		Context: c.Name(),
		URI:     rawURI,
		Allowed: d.Allowed,
		Rule:    d.Rule,
		Reason:  d.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to format decision: %w", err)
	}
	cmd.Print(string(out))

	if !d.Allowed {
		return errDenied
	}
	return nil
}
