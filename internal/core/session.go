// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"sync"
	"time"
)

// State is the lifecycle state of a session.
type State string

// Session states.
const (
	StateCreated   State = "created"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateClosed    State = "closed"
	StateReclaimed State = "reclaimed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateReclaimed
}

// Session is one playback session. Identity fields are fixed at creation;
// the rest changes only through the Broker.
type Session struct {
	Key       SessionKey
	Role      Role
	Lifetime  Lifetime
	Player    Player
	CreatedAt time.Time

	mu     sync.RWMutex
	client string
	state  State
	uri    string
}

// NewSession builds a session in the Created state.
func NewSession(key SessionKey, cfg SessionConfig, player Player) *Session {
	return &Session{
		Key:       key,
		Role:      cfg.Role,
		Lifetime:  cfg.Lifetime,
		Player:    player,
		CreatedAt: time.Now(),
		client:    cfg.Client,
		state:     StateCreated,
	}
}

// Client returns the name of the client currently owning the session.
func (s *Session) Client() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// URI returns the last URI opened, if any.
func (s *Session) URI() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uri
}

func (s *Session) setClient(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

func (s *Session) setURI(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uri = uri
}

// transition moves to next unless the session already ended. It reports
// whether the state changed.
func (s *Session) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.state == next {
		return false
	}
	s.state = next
	return true
}

// SessionInfo is a point-in-time copy of a session for listing.
type SessionInfo struct {
	Key       SessionKey     `cbor:"key" json:"key" yaml:"key"`
	Client    string         `cbor:"client" json:"client" yaml:"client"`
	Role      Role           `cbor:"role" json:"role" yaml:"role"`
	Lifetime  Lifetime       `cbor:"lifetime" json:"lifetime" yaml:"lifetime"`
	State     State          `cbor:"state" json:"state" yaml:"state"`
	Status    PlaybackStatus `cbor:"status" json:"status" yaml:"status"`
	URI       string         `cbor:"uri,omitempty" json:"uri,omitempty" yaml:"uri,omitempty"`
	Current   bool           `cbor:"current" json:"current" yaml:"current"`
	CreatedAt time.Time      `cbor:"created_at" json:"created_at" yaml:"created_at"`
}

// Info returns a snapshot of s.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	info := SessionInfo{
		Key:       s.Key,
		Client:    s.client,
		Role:      s.Role,
		Lifetime:  s.Lifetime,
		State:     s.state,
		URI:       s.uri,
		CreatedAt: s.CreatedAt,
	}
	s.mu.RUnlock()
	if s.Player != nil {
		info.Status = s.Player.PlaybackStatus()
	}
	return info
}
