// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package transport

import "sync"

// Connections tracks which clients are connected. It is the broker's
// liveness source: a client is alive while its connection is open, and a
// name that is not open is treated as dead.
type Connections struct {
	mu   sync.Mutex
	open map[string]map[uint64]func()
	next uint64
}

// NewConnections creates an empty tracker.
func NewConnections() *Connections {
	return &Connections{open: make(map[string]map[uint64]func())}
}

// Open marks client alive.
func (c *Connections) Open(client string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.open[client]; !ok {
		c.open[client] = make(map[uint64]func())
	}
}

// Close marks client dead and runs its watches outside the lock.
func (c *Connections) Close(client string) {
	c.mu.Lock()
	watches := c.open[client]
	delete(c.open, client)
	c.mu.Unlock()

	for _, fn := range watches {
		fn()
	}
}

// Watch implements core.LivenessSource.
func (c *Connections) Watch(client string, onDeath func()) func() {
	c.mu.Lock()
	watches, ok := c.open[client]
	if !ok {
		c.mu.Unlock()
		onDeath()
		return func() {}
	}
	c.next++
	id := c.next
	watches[id] = onDeath
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.open[client]; ok {
			delete(w, id)
		}
	}
}

// Alive reports whether client is connected.
func (c *Connections) Alive(client string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.open[client]
	return ok
}

// Count returns the number of open connections.
func (c *Connections) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}
