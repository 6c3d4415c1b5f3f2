// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"sync"
)

// CurrentChange reports a change of the current session. A zero Current
// means there is no current session any more.
type CurrentChange struct {
	Previous SessionKey
	Current  SessionKey
}

// Registry tracks live sessions and the single current session. All methods
// are safe for concurrent use; none may be called from inside an Enumerate
// visitor.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionKey]*Session
	current  SessionKey

	// notifyMu is taken before mu is released so changes are delivered in
	// the order they were made, outside the critical section.
	notifyMu sync.Mutex
	changes  *Broadcaster[CurrentChange]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[SessionKey]*Session),
		changes:  NewBroadcaster[CurrentChange]("current", 16),
	}
}

// Add inserts or replaces the session for key. Replacing the current key
// keeps it current.
func (r *Registry) Add(key SessionKey, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = s
}

// Remove deletes key, clearing current if it pointed at key.
func (r *Registry) Remove(key SessionKey) error {
	r.mu.Lock()
	if _, ok := r.sessions[key]; !ok {
		r.mu.Unlock()
		return errSessionNotFound(key)
	}
	delete(r.sessions, key)

	if r.current != key {
		r.mu.Unlock()
		return nil
	}
	r.current = SessionKey{}
	r.publishLocked(CurrentChange{Previous: key})
	return nil
}

// Get returns the session for key.
func (r *Registry) Get(key SessionKey) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[key]
	if !ok {
		return nil, errSessionNotFound(key)
	}
	return s, nil
}

// Has reports whether key is live.
func (r *Registry) Has(key SessionKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[key]
	return ok
}

// Enumerate calls visit for every live session while holding the lock, so
// concurrent writers wait until it returns. visit must not call back into
// the registry.
func (r *Registry) Enumerate(visit func(SessionKey, *Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for k, s := range r.sessions {
		visit(k, s)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SetCurrent makes key the current session. Subscribers hear about it only
// if the current session actually changed.
func (r *Registry) SetCurrent(key SessionKey) error {
	r.mu.Lock()
	if _, ok := r.sessions[key]; !ok {
		r.mu.Unlock()
		return errSessionNotFound(key)
	}
	if r.current == key {
		r.mu.Unlock()
		return nil
	}
	prev := r.current
	r.current = key
	r.publishLocked(CurrentChange{Previous: prev, Current: key})
	return nil
}

// Current returns the current session, if any.
func (r *Registry) Current() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current.IsZero() {
		return nil, false
	}
	s, ok := r.sessions[r.current]
	return s, ok
}

// CurrentKey returns the current key; zero when there is none.
func (r *Registry) CurrentKey() SessionKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SubscribeCurrent returns a channel of current-session changes.
func (r *Registry) SubscribeCurrent() (<-chan CurrentChange, func()) {
	return r.changes.Subscribe()
}

// Close closes every current-change subscription.
func (r *Registry) Close() {
	r.changes.Close()
}

// publishLocked must be called with mu held; it releases mu before
// delivering change.
func (r *Registry) publishLocked(change CurrentChange) {
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()
	r.changes.Broadcast(change)
}
