// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"log/slog"
	"sync"
)

// Broadcaster distributes values to every subscriber. Delivery never blocks:
// a subscriber whose buffer is full misses the value.
type Broadcaster[T any] struct {
	name   string
	buffer int

	mu     sync.RWMutex
	subs   map[chan T]struct{}
	closed bool
}

// NewBroadcaster creates a broadcaster; name labels drop warnings.
func NewBroadcaster[T any](name string, buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = 100
	}
	return &Broadcaster[T]{
		name:   name,
		buffer: buffer,
		subs:   make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel receiving every later broadcast and a cancel
// function that closes it. Subscribing to a closed broadcaster yields a
// closed channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() { once.Do(func() { b.unsubscribe(ch) }) }
}

func (b *Broadcaster[T]) unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Broadcast sends v to all subscribers.
func (b *Broadcaster[T]) Broadcast(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			slog.Warn("broadcast dropped: subscriber buffer full", "stream", b.name)
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later broadcasts are dropped.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}
