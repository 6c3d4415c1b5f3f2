// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"context"

	"github.com/samber/oops"
)

// Role is the audio role a session plays in. Only sessions sharing a role
// compete for playback.
type Role string

// Audio roles.
const (
	RoleMultimedia Role = "multimedia"
	RoleAlarm      Role = "alarm"
	RoleAlert      Role = "alert"
	RolePhone      Role = "phone"
)

// ParseRole validates s. An empty string is the multimedia role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case "":
		return RoleMultimedia, nil
	case RoleMultimedia, RoleAlarm, RoleAlert, RolePhone:
		return r, nil
	default:
		return "", oops.In("core").Code(CodeInvalidRole).With("role", s).Errorf("unknown role %q", s)
	}
}

// Lifetime controls whether a session may outlive its creating client.
type Lifetime string

// Session lifetimes.
const (
	LifetimeEphemeral Lifetime = "ephemeral"
	LifetimeResumable Lifetime = "resumable"
)

// ParseLifetime validates s. An empty string is the ephemeral lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	switch l := Lifetime(s); l {
	case "":
		return LifetimeEphemeral, nil
	case LifetimeEphemeral, LifetimeResumable:
		return l, nil
	default:
		return "", oops.In("core").Code(CodeInvalidLifetime).With("lifetime", s).Errorf("unknown lifetime %q", s)
	}
}

// PlaybackStatus is what a Player reports about its pipeline.
type PlaybackStatus string

// Playback statuses.
const (
	StatusNull    PlaybackStatus = "null"
	StatusReady   PlaybackStatus = "ready"
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
	StatusStopped PlaybackStatus = "stopped"
)

// Player is the playback pipeline behind a session. The broker never looks
// inside it. Implementations that also implement io.Closer are closed when
// their session ends.
type Player interface {
	OpenURI(ctx context.Context, uri string) error
	Play() error
	Pause() error
	Stop() error
	PlaybackStatus() PlaybackStatus
}

// SessionConfig describes a session to create.
type SessionConfig struct {
	Client   string
	Role     Role
	Lifetime Lifetime
}

// PlayerFactory builds the player for a new session.
type PlayerFactory func(ctx context.Context, key SessionKey, cfg SessionConfig) (Player, error)
