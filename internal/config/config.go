// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package config loads mediabrokerd configuration from defaults, an optional
// YAML file and command-line flags, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/mediabroker/mediabroker/internal/access"
	"github.com/mediabroker/mediabroker/internal/access/audit"
	"github.com/mediabroker/mediabroker/internal/xdg"
)

// CodeInvalidConfig is returned for configuration that fails validation or
// cannot be loaded.
const CodeInvalidConfig = "INVALID_CONFIG"

// Default values.
const (
	DefaultMetricsAddr    = "127.0.0.1:9105"
	DefaultLogFormat      = "json"
	DefaultLogLevel       = "info"
	DefaultAuditMode      = string(audit.ModeDenialsOnly)
	DefaultProcRoot       = "/proc"
	DefaultResolveTimeout = time.Duration(0) // no bound
)

// Config is the daemon configuration.
type Config struct {
	Socket         string         `koanf:"socket"`
	MetricsAddr    string         `koanf:"metrics_addr"`
	Log            LogConfig      `koanf:"log"`
	Audit          AuditConfig    `koanf:"audit"`
	Identity       IdentityConfig `koanf:"identity"`
	ResolveTimeout time.Duration  `koanf:"resolve_timeout"`
	ExtraRules     []RuleConfig   `koanf:"extra_rules"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// AuditConfig controls decision auditing. An empty Path sends entries to slog.
type AuditConfig struct {
	Mode string `koanf:"mode"`
	Path string `koanf:"path"`
}

// IdentityConfig points the label lookup at a proc filesystem.
type IdentityConfig struct {
	ProcRoot string `koanf:"proc_root"`
}

// RuleConfig is an extra allow rule matching a path glob, optionally limited
// to one click package.
type RuleConfig struct {
	Name     string `koanf:"name" yaml:"name"`
	PathGlob string `koanf:"path_glob" yaml:"path_glob"`
	Package  string `koanf:"package" yaml:"package,omitempty"`
}

// flagKeys maps command-line flag names to configuration keys. Flags not
// listed here are ignored by Load.
var flagKeys = map[string]string{
	"socket":          "socket",
	"metrics-addr":    "metrics_addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"audit-mode":      "audit.mode",
	"audit-path":      "audit.path",
	"proc-root":       "identity.proc_root",
	"resolve-timeout": "resolve_timeout",
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	socket, err := xdg.SocketPath()
	if err != nil {
		socket = ""
	}
	return Config{
		Socket:         socket,
		MetricsAddr:    DefaultMetricsAddr,
		Log:            LogConfig{Format: DefaultLogFormat, Level: DefaultLogLevel},
		Audit:          AuditConfig{Mode: DefaultAuditMode},
		Identity:       IdentityConfig{ProcRoot: DefaultProcRoot},
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// RegisterFlags adds the flags Load understands to fs, using Defaults for
// their default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("socket", d.Socket, "broker socket path")
	fs.String("metrics-addr", d.MetricsAddr, "observability server address (empty disables)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("audit-mode", d.Audit.Mode, "audit mode (off, minimal, denials_only, all)")
	fs.String("audit-path", d.Audit.Path, "audit log file (empty logs through slog)")
	fs.String("proc-root", d.Identity.ProcRoot, "proc filesystem used for label lookup")
	fs.Duration("resolve-timeout", d.ResolveTimeout, "maximum time to resolve a client security context (0 = no bound)")
}

// Load builds a Config from Defaults, the YAML file at path (skipped when
// path is empty) and the flags in fs that were set explicitly. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	d := Defaults()
	for key, val := range map[string]any{
		"socket":             d.Socket,
		"metrics_addr":       d.MetricsAddr,
		"log.format":         d.Log.Format,
		"log.level":          d.Log.Level,
		"audit.mode":         d.Audit.Mode,
		"audit.path":         d.Audit.Path,
		"identity.proc_root": d.Identity.ProcRoot,
		"resolve_timeout":    d.ResolveTimeout.String(),
	} {
		if err := k.Set(key, val); err != nil {
			return nil, oops.In("config").Code(CodeInvalidConfig).With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code(CodeInvalidConfig).With("path", path).Wrapf(err, "load config file")
		}
	}

	if fs != nil {
		// Only flags the user changed override; defaults are already present.
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(CodeInvalidConfig).Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Code(CodeInvalidConfig).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	errb := oops.In("config").Code(CodeInvalidConfig)

	if strings.TrimSpace(c.Socket) == "" {
		return errb.Errorf("socket path is required")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return errb.With("log_format", c.Log.Format).Errorf("invalid log format %q: must be 'json' or 'text'", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errb.With("log_level", c.Log.Level).Errorf("invalid log level %q", c.Log.Level)
	}
	if _, err := audit.ParseMode(c.Audit.Mode); err != nil {
		return errb.With("audit_mode", c.Audit.Mode).Wrap(err)
	}
	if c.Identity.ProcRoot == "" {
		return errb.Errorf("identity.proc_root is required")
	}
	if c.ResolveTimeout < 0 {
		return errb.With("resolve_timeout", c.ResolveTimeout).Errorf("resolve_timeout must not be negative")
	}

	seen := make(map[string]bool, len(c.ExtraRules))
	for i, r := range c.ExtraRules {
		if r.Name == "" {
			return errb.With("index", i).Errorf("extra_rules[%d]: name is required", i)
		}
		if seen[r.Name] {
			return errb.With("rule", r.Name).Errorf("duplicate extra rule %q", r.Name)
		}
		seen[r.Name] = true
		if r.PathGlob == "" {
			return errb.With("rule", r.Name).Errorf("extra rule %q: path_glob is required", r.Name)
		}
	}
	return nil
}

// AuditMode returns the parsed audit mode. Validate must have succeeded.
func (c *Config) AuditMode() audit.Mode {
	m, err := audit.ParseMode(c.Audit.Mode)
	if err != nil {
		return audit.ModeOff
	}
	return m
}

// Rules returns the default rule set widened by the configured extra rules.
func (c *Config) Rules(opts access.RuleOptions) (access.RuleSet, error) {
	rules := access.DefaultRules(opts)
	if len(c.ExtraRules) == 0 {
		return rules, nil
	}
	extra := make([]access.Rule, 0, len(c.ExtraRules))
	for _, rc := range c.ExtraRules {
		r, err := access.PathGlobRule(rc.Name, rc.PathGlob, rc.Package)
		if err != nil {
			return nil, oops.In("config").Code(CodeInvalidConfig).With("rule", rc.Name).Wrap(err)
		}
		extra = append(extra, r)
	}
	return rules.With(extra...), nil
}
