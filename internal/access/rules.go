// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package access

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/mediabroker/mediabroker/internal/uri"
)

// Request is the input a Rule matches against.
type Request struct {
	Context Context
	URI     uri.URI
}

// Rule is one entry of an ordered RuleSet. Every rule allows; a request no
// rule matches is denied.
type Rule struct {
	Name        string
	Description string
	Match       func(Request) bool
	Reason      func(Request) string
}

// RuleSet is evaluated in order and the first matching rule wins.
type RuleSet []Rule

// Evaluate returns the first rule that matches req.
func (rs RuleSet) Evaluate(req Request) (Rule, bool) {
	for _, r := range rs {
		if r.Match(req) {
			return r, true
		}
	}
	return Rule{}, false
}

// With returns a copy of rs with extra appended after the built-in rules.
func (rs RuleSet) With(extra ...Rule) RuleSet {
	out := make(RuleSet, 0, len(rs)+len(extra))
	out = append(out, rs...)
	return append(out, extra...)
}

// Names returns the rule names in evaluation order.
func (rs RuleSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// Names of the built-in rules.
const (
	RuleUnconfined         = "unconfined"
	RuleOwnAppData         = "own-app-data"
	RuleMessagingAppLegacy = "messaging-app-legacy"
	RuleOwnClickPackage    = "own-click-package"
	RuleCameraUISounds     = "camera-ui-sounds"
	RuleSharedMedia        = "shared-media"
	RuleSystemSounds       = "system-sounds"
	RuleStreaming          = "streaming"
	RuleDeny               = "deny"
	RuleMalformedURI       = "malformed-uri"
)

// RuleOptions parameterizes DefaultRules.
type RuleOptions struct {
	// EUID is the effective uid whose /run/user confined directory counts as
	// app data. Negative means os.Geteuid().
	EUID int
}

// DefaultRules returns the built-in policy in evaluation order.
func DefaultRules(opts RuleOptions) RuleSet {
	euid := opts.EUID
	if euid < 0 {
		euid = os.Geteuid()
	}
	runUser := fmt.Sprintf("/run/user/%d/confined/", euid)

	return RuleSet{
		{
			Name:        RuleUnconfined,
			Description: "unconfined clients may open anything",
			Match:       func(r Request) bool { return !r.Context.Confined() },
			Reason:      static("client is unconfined"),
		},
		{
			Name:        RuleOwnAppData,
			Description: "an app may open files under its own data, cache and runtime directories",
			Match: withPackage(func(r Request, pkg string) bool {
				p := r.URI.Path
				return strings.Contains(p, ".local/share/"+pkg+"/") ||
					strings.Contains(p, ".cache/"+pkg+"/") ||
					strings.Contains(p, runUser+pkg)
			}),
			Reason: func(r Request) string {
				pkg, _ := r.Context.PackageName()
				return "path belongs to the data of " + pkg
			},
		},
		{
			Name:        RuleMessagingAppLegacy,
			Description: "messaging-app may open the data of com.ubuntu.messaging-app",
			Match: func(r Request) bool {
				profile, _ := r.Context.ProfileName()
				if profile != MessagingAppName {
					return false
				}
				p := r.URI.Path
				return strings.Contains(p, ".local/share/com.ubuntu."+MessagingAppName+"/") ||
					strings.Contains(p, ".cache/com.ubuntu."+MessagingAppName+"/")
			},
			Reason: static("legacy messaging-app data directory"),
		},
		{
			Name:        RuleOwnClickPackage,
			Description: "an app may open files shipped in its own click package",
			Match: withPackage(func(r Request, pkg string) bool {
				p := r.URI.Path
				return strings.Contains(p, "opt/click.ubuntu.com/") && strings.Contains(p, pkg)
			}),
			Reason: func(r Request) string {
				pkg, _ := r.Context.PackageName()
				return "path is inside the click package of " + pkg
			},
		},
		{
			Name:        RuleCameraUISounds,
			Description: "the camera app may play platform UI sounds",
			Match: withPackage(func(r Request, pkg string) bool {
				p := r.URI.Path
				return pkg == CameraPackage &&
					(strings.Contains(p, "/system/media/audio/ui/") ||
						strings.Contains(p, "/android/system/media/audio/ui/"))
			}),
			Reason: static("camera UI sound"),
		},
		{
			Name:        RuleSharedMedia,
			Description: "music, gallery, the media player snap and the shell may open shared Music, Videos and /media",
			Match: func(r Request) bool {
				pkg, _ := r.Context.PackageName()
				profile, _ := r.Context.ProfileName()
				trusted := pkg == MusicPackage || pkg == GalleryPackage ||
					profile == MediaPlayerSnapName || IsShellName(profile)
				if !trusted {
					return false
				}
				p := r.URI.Path
				return strings.Contains(p, "Music/") ||
					strings.Contains(p, "Videos/") ||
					strings.Contains(p, "/media")
			},
			Reason: static("shared media directory"),
		},
		{
			Name:        RuleSystemSounds,
			Description: "anyone may play system sounds",
			Match:       func(r Request) bool { return strings.Contains(r.URI.Path, "/usr/share/sounds") },
			Reason:      static("system sound"),
		},
		{
			Name:        RuleStreaming,
			Description: "anyone may open http, https and rtsp streams",
			Match:       func(r Request) bool { return r.URI.IsStreaming() },
			Reason:      static("network stream"),
		},
	}
}

// PathGlobRule builds an extra allow rule matching URI paths against pattern
// with '/' as separator. A non-empty pkg additionally requires the client
// package to equal pkg.
func PathGlobRule(name, pattern, pkg string) (Rule, error) {
	if name == "" {
		return Rule{}, oops.In("access").Code(CodeInvalidRule).Errorf("extra rule needs a name")
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return Rule{}, oops.In("access").
			Code(CodeInvalidRule).
			With("rule", name).
			With("pattern", pattern).
			Wrapf(err, "compile path glob")
	}

	desc := "paths matching " + pattern
	if pkg != "" {
		desc += " for package " + pkg
	}
	return Rule{
		Name:        name,
		Description: desc,
		Match: func(r Request) bool {
			if pkg != "" {
				got, ok := r.Context.PackageName()
				if !ok || got != pkg {
					return false
				}
			}
			return g.Match(r.URI.Path)
		},
		Reason: static("matched configured rule " + name),
	}, nil
}

func withPackage(match func(Request, string) bool) func(Request) bool {
	return func(r Request) bool {
		pkg, ok := r.Context.PackageName()
		if !ok {
			return false
		}
		return match(r, pkg)
	}
}

func static(reason string) func(Request) string {
	return func(Request) string { return reason }
}
