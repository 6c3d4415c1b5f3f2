// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

// Keyed-player accessors. These mirror the registry under the names the
// media service interface uses.

// HasPlayerForKey reports whether key has a live session.
func (b *Broker) HasPlayerForKey(key SessionKey) bool {
	return b.registry.Has(key)
}

// PlayerForKey returns the player of the session for key.
func (b *Broker) PlayerForKey(key SessionKey) (Player, error) {
	s, err := b.registry.Get(key)
	if err != nil {
		return nil, err
	}
	return s.Player, nil
}

// EnumeratePlayers visits every live session's player with the registry
// locked. visit must not call back into the broker.
func (b *Broker) EnumeratePlayers(visit func(SessionKey, Player)) {
	b.registry.Enumerate(func(k SessionKey, s *Session) {
		visit(k, s.Player)
	})
}

// AddPlayerForKey inserts s under key, replacing any existing session. It
// does not watch the session's client; use CreateSession for that.
func (b *Broker) AddPlayerForKey(key SessionKey, s *Session) {
	if !b.registry.Has(key) {
		sessionsActive.Inc()
	}
	b.registry.Add(key, s)
}

// RemovePlayerForKey removes the session for key without closing its player.
func (b *Broker) RemovePlayerForKey(key SessionKey) error {
	if err := b.registry.Remove(key); err != nil {
		return err
	}
	b.observer.Unregister(key)
	sessionsActive.Dec()
	return nil
}

// SetCurrentPlayerForKey makes key the current session.
func (b *Broker) SetCurrentPlayerForKey(key SessionKey) error {
	return b.registry.SetCurrent(key)
}

// CurrentPlayer returns the player of the current session.
func (b *Broker) CurrentPlayer() (Player, bool) {
	s, ok := b.registry.Current()
	if !ok {
		return nil, false
	}
	return s.Player, true
}

// CurrentSession returns the current session.
func (b *Broker) CurrentSession() (*Session, bool) {
	return b.registry.Current()
}

// SubscribeCurrent returns a channel of current-session changes.
func (b *Broker) SubscribeCurrent() (<-chan CurrentChange, func()) {
	return b.registry.SubscribeCurrent()
}
