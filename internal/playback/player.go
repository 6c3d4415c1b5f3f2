// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package playback provides the player the daemon hands to sessions. It
// tracks pipeline state without decoding anything.
package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/mediabroker/mediabroker/internal/core"
)

// Error codes produced by this package.
const (
	CodeNoMedia      = "NO_MEDIA"
	CodePlayerClosed = "PLAYER_CLOSED"
)

// Player is a bookkeeping core.Player.
type Player struct {
	key    core.SessionKey
	logger *slog.Logger

	mu     sync.Mutex
	status core.PlaybackStatus
	uri    string
	closed bool
}

// NewFactory returns a core.PlayerFactory building Players that log to
// logger.
func NewFactory(logger *slog.Logger) core.PlayerFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ context.Context, key core.SessionKey, cfg core.SessionConfig) (core.Player, error) {
		return &Player{
			key:    key,
			logger: logger.With("session_key", key.String(), "role", string(cfg.Role)),
			status: core.StatusNull,
		}, nil
	}
}

// OpenURI loads uri and leaves the player ready.
func (p *Player) OpenURI(ctx context.Context, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen("open_uri"); err != nil {
		return err
	}
	p.uri = uri
	p.setStatus(core.StatusReady)
	p.logger.DebugContext(ctx, "media loaded", "uri", uri)
	return nil
}

// Play starts playback of the loaded media.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen("play"); err != nil {
		return err
	}
	if p.uri == "" {
		return oops.In("playback").
			Code(CodeNoMedia).
			With("session_key", p.key.String()).
			Errorf("no media loaded")
	}
	p.setStatus(core.StatusPlaying)
	return nil
}

// Pause pauses playback. Pausing a player that is not playing is a no-op.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen("pause"); err != nil {
		return err
	}
	if p.status == core.StatusPlaying {
		p.setStatus(core.StatusPaused)
	}
	return nil
}

// Stop stops playback and keeps the media loaded.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen("stop"); err != nil {
		return err
	}
	if p.uri != "" {
		p.setStatus(core.StatusStopped)
	}
	return nil
}

// PlaybackStatus returns the current status.
func (p *Player) PlaybackStatus() core.PlaybackStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// URI returns the loaded media.
func (p *Player) URI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// Close releases the player. Later calls fail with PLAYER_CLOSED.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.setStatus(core.StatusNull)
	return nil
}

func (p *Player) checkOpen(op string) error {
	if !p.closed {
		return nil
	}
	return oops.In("playback").
		Code(CodePlayerClosed).
		With("session_key", p.key.String()).
		With("op", op).
		Errorf("player is closed")
}

func (p *Player) setStatus(next core.PlaybackStatus) {
	if p.status == next {
		return
	}
	p.logger.Debug("playback status changed", "from", p.status, "to", next)
	p.status = next
}
