// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mediabroker/mediabroker/internal/access"
	"github.com/mediabroker/mediabroker/internal/config"
)

// ruleDoc is the YAML form of one rule.
type ruleDoc struct {
	Order       int    `yaml:"order"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// rulesDoc is the YAML form of the effective policy.
type rulesDoc struct {
	Rules    []ruleDoc `yaml:"rules"`
	Fallback string    `yaml:"fallback"`
}

// newRulesCmd creates the rules subcommand.
func newRulesCmd() *cobra.Command {
	var euid int

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective open-uri rule set",
		Long: `Print the ordered allow rules the broker evaluates for open-uri,
including extra rules from the config file, as YAML. The first matching
rule allows the request; a request no rule matches is denied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := loadRules(euid)
			if err != nil {
				return err
			}
			out, err := formatRulesYAML(rules)
			if err != nil {
				return fmt.Errorf("failed to format rules: %w", err)
			}
			cmd.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&euid, "euid", -1, "uid whose runtime directory counts as app data (default: current)")

	return cmd
}

// loadRules builds the rule set the daemon would run with.
func loadRules(euid int) (access.RuleSet, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	rules, err := cfg.Rules(access.RuleOptions{EUID: euid})
	if err != nil {
		return nil, fmt.Errorf("failed to build rule set: %w", err)
	}
	return rules, nil
}

func formatRulesYAML(rules access.RuleSet) (string, error) {
	doc := rulesDoc{Fallback: access.RuleDeny}
	for i, r := range rules {
		doc.Rules = append(doc.Rules, ruleDoc{Order: i + 1, Name: r.Name, Description: r.Description})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
