// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"log/slog"
	"sync"
	"weak"
)

// LivenessSource watches clients for death. Watch arranges for onDeath to
// run once when client goes away, from any goroutine; if the client is
// already gone onDeath runs promptly. The returned cancel stops the watch.
type LivenessSource interface {
	Watch(client string, onDeath func()) (cancel func())
}

// deathNote is what a liveness callback enqueues. gen distinguishes a watch
// from a later one registered for the same key.
type deathNote struct {
	key SessionKey
	gen uint64
}

// deliveryState is the only thing liveness callbacks can reach, and only
// through a weak pointer.
type deliveryState struct {
	queue chan deathNote
	done  chan struct{}
}

func (s *deliveryState) enqueue(n deathNote) {
	select {
	case s.queue <- n:
	case <-s.done:
	}
}

type watch struct {
	client string
	gen    uint64
	cancel func()
}

// DeathObserver turns client deaths into SessionKey events. Liveness
// callbacks only enqueue; a single dispatch goroutine applies them.
type DeathObserver struct {
	source LivenessSource
	logger *slog.Logger
	state  *deliveryState
	events *Broadcaster[SessionKey]

	mu      sync.Mutex
	watches map[SessionKey]watch
	nextGen uint64

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DeathObserverOption configures a DeathObserver.
type DeathObserverOption func(*DeathObserver)

// WithObserverLogger sets the observer's logger.
func WithObserverLogger(l *slog.Logger) DeathObserverOption {
	return func(o *DeathObserver) { o.logger = l }
}

// NewDeathObserver starts an observer over source.
func NewDeathObserver(source LivenessSource, opts ...DeathObserverOption) *DeathObserver {
	o := &DeathObserver{
		source: source,
		logger: slog.Default(),
		state: &deliveryState{
			queue: make(chan deathNote, 64),
			done:  make(chan struct{}),
		},
		events:  NewBroadcaster[SessionKey]("death", 1024),
		watches: make(map[SessionKey]watch),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.wg.Add(1)
	go o.dispatch(o.state)
	return o
}

// Register watches client on behalf of key, replacing any earlier watch for
// key.
func (o *DeathObserver) Register(key SessionKey, client string) {
	o.mu.Lock()
	select {
	case <-o.state.done:
		o.mu.Unlock()
		return
	default:
	}
	o.nextGen++
	gen := o.nextGen
	prev, hadPrev := o.watches[key]
	o.watches[key] = watch{client: client, gen: gen, cancel: func() {}}
	o.mu.Unlock()

	if hadPrev {
		prev.cancel()
	}

	ref := weak.Make(o.state)
	cancel := o.source.Watch(client, func() {
		s := ref.Value()
		if s == nil {
			return
		}
		s.enqueue(deathNote{key: key, gen: gen})
	})

	o.mu.Lock()
	w, ok := o.watches[key]
	if ok && w.gen == gen {
		w.cancel = cancel
		o.watches[key] = w
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	// Unregistered or replaced while Watch ran.
	cancel()
}

// Unregister cancels the watch for key. Deaths already queued for it are
// dropped.
func (o *DeathObserver) Unregister(key SessionKey) {
	o.mu.Lock()
	w, ok := o.watches[key]
	delete(o.watches, key)
	o.mu.Unlock()

	if ok {
		w.cancel()
	}
}

// Registered reports whether key has an active watch.
func (o *DeathObserver) Registered(key SessionKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.watches[key]
	return ok
}

// Subscribe returns a channel of keys whose client died.
func (o *DeathObserver) Subscribe() (<-chan SessionKey, func()) {
	return o.events.Subscribe()
}

// Close stops dispatching, cancels every watch and closes subscriptions.
// Callbacks that fire afterwards do nothing.
func (o *DeathObserver) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		close(o.state.done)
		watches := o.watches
		o.watches = make(map[SessionKey]watch)
		o.mu.Unlock()

		o.wg.Wait()
		for _, w := range watches {
			w.cancel()
		}
		o.events.Close()
	})
}

func (o *DeathObserver) dispatch(s *deliveryState) {
	defer o.wg.Done()

	for {
		select {
		case n := <-s.queue:
			o.deliver(n)
		case <-s.done:
			return
		}
	}
}

func (o *DeathObserver) deliver(n deathNote) {
	o.mu.Lock()
	w, ok := o.watches[n.key]
	if !ok || w.gen != n.gen {
		o.mu.Unlock()
		o.logger.Debug("dropping death for unregistered session", "session_key", n.key.String())
		return
	}
	delete(o.watches, n.key)
	o.mu.Unlock()

	o.logger.Debug("client died", "session_key", n.key.String(), "client", w.client)
	o.events.Broadcast(n.key)
}
