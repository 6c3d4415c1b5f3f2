// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mediabroker/mediabroker/internal/access"
)

// contextDoc is the YAML form of a parsed security context.
type contextDoc struct {
	Name          string `yaml:"name"`
	Confined      bool   `yaml:"confined"`
	PlatformShell bool   `yaml:"platform_shell"`
	Package       string `yaml:"package,omitempty"`
	Profile       string `yaml:"profile,omitempty"`
}

// newParseContextCmd creates the parse-context subcommand.
func newParseContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-context NAME",
		Short: "Parse a security context label",
		Long: `Parse an AppArmor label the way the broker does and print the
package and profile it derives from it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := access.ParseContext(args[0])
			if err != nil {
				return fmt.Errorf("invalid context: %w", err)
			}
			out, err := yaml.Marshal(newContextDoc(c))
			if err != nil {
				return fmt.Errorf("failed to format context: %w", err)
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

func newContextDoc(c access.Context) contextDoc {
	pkg, _ := c.PackageName()
	profile, _ := c.ProfileName()
	return contextDoc{
		Name:          c.Name(),
		Confined:      c.Confined(),
		PlatformShell: c.PlatformShell(),
		Package:       pkg,
		Profile:       profile,
	}
}
