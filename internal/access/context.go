// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package access

import (
	"strings"

	"github.com/samber/oops"
)

// Context is the parsed security identity of a client. The zero value is not
// meaningful; obtain one from ParseContext.
type Context struct {
	name          string
	confined      bool
	platformShell bool
	packageName   string
	profileName   string
}

// Name returns the label the context was parsed from, without mode suffix.
func (c Context) Name() string { return c.name }

// Confined reports whether the client runs under a sandbox profile.
func (c Context) Confined() bool { return c.confined }

// PlatformShell reports whether the client is the platform shell.
func (c Context) PlatformShell() bool { return c.platformShell }

// PackageName returns the package the client belongs to, if known.
func (c Context) PackageName() (string, bool) { return c.packageName, c.packageName != "" }

// ProfileName returns the "<package>-<app>" profile, if derivable.
func (c Context) ProfileName() (string, bool) { return c.profileName, c.profileName != "" }

// String returns the label.
func (c Context) String() string { return c.name }

// legacyNames are hyphenated profiles accepted without an app id shape.
var legacyNames = map[string]struct{}{
	MessagingAppName:    {},
	MediaPlayerSnapName: {},
}

// IsShellName reports whether name is one of the platform shell profiles.
func IsShellName(name string) bool {
	return name == ShellName || name == ShellSnapName
}

// ParseContext parses a raw security label. Accepted forms, in order:
//
//	unconfined                        the unconfined sentinel
//	unity8-dash                       a platform shell profile
//	<package>_<app>_<version>         a versioned app id
//	<package>_<app>                   an unversioned app id
//	messaging-app                     a hard-coded legacy profile
//
// A trailing mode such as " (enforce)" is dropped first. Anything else fails
// with INVALID_PROFILE_NAME.
func ParseContext(raw string) (Context, error) {
	name := stripMode(raw)
	if name == "" {
		return Context{}, invalidProfile(raw, "empty security label")
	}

	if name == Unconfined {
		return Context{name: name}, nil
	}
	if IsShellName(name) {
		return Context{
			name:          name,
			confined:      true,
			platformShell: true,
			packageName:   name,
			profileName:   name,
		}, nil
	}

	for _, shape := range appIDShapes {
		if pkg, app, ok := shape(name); ok {
			return Context{
				name:        name,
				confined:    true,
				packageName: pkg,
				profileName: pkg + "-" + app,
			}, nil
		}
	}

	if _, ok := legacyNames[name]; ok && strings.Contains(name, "-") {
		return Context{
			name:        name,
			confined:    true,
			packageName: name,
			profileName: name,
		}, nil
	}

	return Context{}, invalidProfile(raw, "label matches no accepted app id shape")
}

// MustParseContext is ParseContext for literals; it panics on error.
func MustParseContext(raw string) Context {
	c, err := ParseContext(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// appIDShapes are tried in order; the first match wins.
var appIDShapes = []func(string) (pkg, app string, ok bool){
	underscoreSegments(3), // package_app_version
	underscoreSegments(2), // package_app
}

// underscoreSegments matches names of exactly n non-empty '_'-separated parts.
func underscoreSegments(n int) func(string) (string, string, bool) {
	return func(name string) (string, string, bool) {
		parts := strings.Split(name, "_")
		if len(parts) != n {
			return "", "", false
		}
		for _, p := range parts {
			if p == "" {
				return "", "", false
			}
		}
		return parts[0], parts[1], true
	}
}

// stripMode drops the " (mode)" suffix the kernel appends to confined labels.
func stripMode(label string) string {
	label = strings.TrimRight(label, "\x00\n")
	if strings.HasSuffix(label, ")") {
		if i := strings.LastIndex(label, " ("); i >= 0 {
			label = label[:i]
		}
	}
	return label
}

func invalidProfile(raw, reason string) error {
	return oops.In("access").
		Code(CodeInvalidProfileName).
		With("label", raw).
		Errorf("invalid profile name %q: %s", raw, reason)
}
