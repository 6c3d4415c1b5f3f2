// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package coretest provides fakes for exercising the broker in tests.
package coretest

import (
	"context"
	"sync"

	"github.com/mediabroker/mediabroker/internal/core"
)

// Liveness is a LivenessSource whose clients die on demand.
type Liveness struct {
	mu      sync.Mutex
	dead    map[string]bool
	watches map[string]map[int]func()
	next    int
}

// NewLiveness creates a Liveness where every client is alive.
func NewLiveness() *Liveness {
	return &Liveness{
		dead:    make(map[string]bool),
		watches: make(map[string]map[int]func()),
	}
}

// Watch implements core.LivenessSource.
func (l *Liveness) Watch(client string, onDeath func()) func() {
	l.mu.Lock()
	if l.dead[client] {
		l.mu.Unlock()
		onDeath()
		return func() {}
	}
	l.next++
	id := l.next
	if l.watches[client] == nil {
		l.watches[client] = make(map[int]func())
	}
	l.watches[client][id] = onDeath
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.watches[client], id)
	}
}

// Kill marks client dead and fires its watches outside the lock.
func (l *Liveness) Kill(client string) {
	l.mu.Lock()
	l.dead[client] = true
	fns := make([]func(), 0, len(l.watches[client]))
	for _, fn := range l.watches[client] {
		fns = append(fns, fn)
	}
	delete(l.watches, client)
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Watchers returns the number of active watches on client.
func (l *Liveness) Watchers(client string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watches[client])
}

// Player is a thread-safe in-memory core.Player.
type Player struct {
	mu      sync.Mutex
	status  core.PlaybackStatus
	uri     string
	closed  bool
	failErr error
	calls   []string
}

// NewPlayer returns a Player in the null state.
func NewPlayer() *Player {
	return &Player{status: core.StatusNull}
}

// Players builds Players for a broker and remembers them by key.
type Players struct {
	mu    sync.Mutex
	byKey map[core.SessionKey]*Player
	err   error
}

// NewPlayers creates an empty Players.
func NewPlayers() *Players {
	return &Players{byKey: make(map[core.SessionKey]*Player)}
}

// FailCreate makes later New calls fail with err.
func (ps *Players) FailCreate(err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.err = err
}

// New is a core.PlayerFactory.
func (ps *Players) New(_ context.Context, key core.SessionKey, _ core.SessionConfig) (core.Player, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.err != nil {
		return nil, ps.err
	}
	p := NewPlayer()
	ps.byKey[key] = p
	return p, nil
}

// For returns the player built for key, or nil.
func (ps *Players) For(key core.SessionKey) *Player {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.byKey[key]
}

// FailWith makes every later call return err.
func (p *Player) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failErr = err
}

func (p *Player) record(call string, next core.PlaybackStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if p.failErr != nil {
		return p.failErr
	}
	if next != "" {
		p.status = next
	}
	return nil
}

// OpenURI records uri and becomes ready.
func (p *Player) OpenURI(_ context.Context, uri string) error {
	if err := p.record("open_uri", core.StatusReady); err != nil {
		return err
	}
	p.mu.Lock()
	p.uri = uri
	p.mu.Unlock()
	return nil
}

// Play starts playing.
func (p *Player) Play() error { return p.record("play", core.StatusPlaying) }

// Pause pauses.
func (p *Player) Pause() error { return p.record("pause", core.StatusPaused) }

// Stop stops.
func (p *Player) Stop() error { return p.record("stop", core.StatusStopped) }

// PlaybackStatus returns the current status.
func (p *Player) PlaybackStatus() core.PlaybackStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Close marks the player closed.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Player) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// URI returns the last opened URI.
func (p *Player) URI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// Calls returns the method names called so far, in order.
func (p *Player) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}
