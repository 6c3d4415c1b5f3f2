// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package core holds the session broker: the registry of live playback
// sessions, the observer that reclaims sessions of dead clients, and the
// Broker that ties them to authorization.
package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mediabroker/mediabroker/internal/access"
)

var tracer = otel.Tracer("mediabroker/core")

// ContextResolver resolves a client's security context.
type ContextResolver interface {
	Resolve(ctx context.Context, client string) *access.Future
}

// URIAuthorizer decides open-uri requests.
type URIAuthorizer interface {
	AuthenticateOpenURIRequest(ctx context.Context, client string, c access.Context, uri string) access.Decision
}

// BrokerConfig wires a Broker's collaborators. Everything but Logger is
// required.
type BrokerConfig struct {
	Players    PlayerFactory
	Liveness   LivenessSource
	Resolver   ContextResolver
	Authorizer URIAuthorizer
	Logger     *slog.Logger
}

// Broker orchestrates session lifecycle, authorization and reclamation.
type Broker struct {
	registry   *Registry
	observer   *DeathObserver
	resolver   ContextResolver
	authorizer URIAuthorizer
	players    PlayerFactory
	logger     *slog.Logger

	deaths       <-chan SessionKey
	cancelDeaths func()

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewBroker creates a Broker. Call Run to start reclaiming sessions.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	switch {
	case cfg.Players == nil:
		return nil, oops.In("core").Errorf("broker needs a player factory")
	case cfg.Liveness == nil:
		return nil, oops.In("core").Errorf("broker needs a liveness source")
	case cfg.Resolver == nil:
		return nil, oops.In("core").Errorf("broker needs a context resolver")
	case cfg.Authorizer == nil:
		return nil, oops.In("core").Errorf("broker needs an authorizer")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observer := NewDeathObserver(cfg.Liveness, WithObserverLogger(logger))
	deaths, cancel := observer.Subscribe()
	return &Broker{
		registry:     NewRegistry(),
		observer:     observer,
		resolver:     cfg.Resolver,
		authorizer:   cfg.Authorizer,
		players:      cfg.Players,
		logger:       logger,
		deaths:       deaths,
		cancelDeaths: cancel,
	}, nil
}

// Registry exposes the session registry.
func (b *Broker) Registry() *Registry { return b.registry }

// Observer exposes the death observer.
func (b *Broker) Observer() *DeathObserver { return b.observer }

// CreateSession allocates a key, builds a player and starts watching the
// owning client.
func (b *Broker) CreateSession(ctx context.Context, cfg SessionConfig) (SessionKey, *Session, error) {
	if b.closed.Load() {
		return SessionKey{}, nil, errBrokerClosed()
	}
	if cfg.Role == "" {
		cfg.Role = RoleMultimedia
	}
	if cfg.Lifetime == "" {
		cfg.Lifetime = LifetimeEphemeral
	}

	key := NewSessionKey()
	player, err := b.players(ctx, key, cfg)
	if err != nil {
		return SessionKey{}, nil, errPlayer(key, "create", err)
	}

	s := NewSession(key, cfg, player)
	b.registry.Add(key, s)
	b.observer.Register(key, cfg.Client)
	s.transition(StateActive)

	sessionsCreated.WithLabelValues(string(cfg.Role)).Inc()
	sessionsActive.Inc()
	b.logger.InfoContext(ctx, "session created",
		"session_key", key.String(),
		"client", cfg.Client,
		"role", cfg.Role,
		"lifetime", cfg.Lifetime,
	)
	return key, s, nil
}

// ResumeSession returns the live session for key.
func (b *Broker) ResumeSession(key SessionKey) (*Session, error) {
	return b.registry.Get(key)
}

// ResumeSessionFor hands the session for key to client. Only resumable
// sessions may change owner; from then on the new client's death reclaims
// the session.
func (b *Broker) ResumeSessionFor(ctx context.Context, key SessionKey, client string) (*Session, error) {
	s, err := b.registry.Get(key)
	if err != nil {
		return nil, err
	}
	if s.Client() == client {
		return s, nil
	}
	if s.Lifetime != LifetimeResumable {
		return nil, oops.In("core").
			Code(CodeSessionNotResumable).
			With("session_key", key.String()).
			With("client", client).
			Errorf("session %s is not resumable", key)
	}

	b.observer.Register(key, client)
	prev := s.Client()
	s.setClient(client)
	b.logger.InfoContext(ctx, "session resumed",
		"session_key", key.String(),
		"previous_client", prev,
		"client", client,
	)
	return s, nil
}

// OpenURI resolves client's security context, authorizes uri and, if
// allowed, opens it on the session's player and makes the session current.
// A deny returns the decision together with an AUTHORIZATION_DENIED error.
func (b *Broker) OpenURI(ctx context.Context, key SessionKey, client, uri string) (decision access.Decision, err error) {
	ctx, span := tracer.Start(ctx, "broker.open_uri",
		trace.WithAttributes(
			attribute.String("session.key", key.String()),
			attribute.String("client", client),
			attribute.String("uri", uri),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("access.allowed", decision.Allowed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if b.closed.Load() {
		return access.Decision{}, errBrokerClosed()
	}
	if !b.registry.Has(key) {
		return access.Decision{}, errSessionNotFound(key)
	}

	sc, err := b.resolver.Resolve(ctx, client).Wait(ctx)
	if err != nil {
		return access.Decision{}, oops.In("core").With("session_key", key.String()).Wrap(err)
	}

	// The session may have gone away while the context was resolving.
	s, err := b.registry.Get(key)
	if err != nil {
		return access.Decision{}, err
	}

	decision = b.authorizer.AuthenticateOpenURIRequest(ctx, client, sc, uri)
	span.SetAttributes(attribute.String("access.rule", decision.Rule))
	if !decision.Allowed {
		b.logger.InfoContext(ctx, "open-uri denied",
			"session_key", key.String(),
			"client", client,
			"label", sc.Name(),
			"uri", uri,
			"reason", decision.Reason,
		)
		return decision, oops.In("core").With("session_key", key.String()).Wrap(decision.Err())
	}

	if err := s.Player.OpenURI(ctx, uri); err != nil {
		return decision, errPlayer(key, "open_uri", err)
	}
	s.setURI(uri)

	if err := b.registry.SetCurrent(key); err != nil {
		return decision, err
	}
	if s.Role == RoleMultimedia {
		if err := b.PauseOtherSessions(key); err != nil {
			return decision, err
		}
	}
	return decision, nil
}

// Play starts playback. A multimedia session pauses its peers.
func (b *Broker) Play(key SessionKey) error {
	s, err := b.registry.Get(key)
	if err != nil {
		return err
	}
	if err := s.Player.Play(); err != nil {
		return errPlayer(key, "play", err)
	}
	s.transition(StateActive)
	if s.Role == RoleMultimedia {
		return b.PauseOtherSessions(key)
	}
	return nil
}

// Pause pauses playback.
func (b *Broker) Pause(key SessionKey) error {
	s, err := b.registry.Get(key)
	if err != nil {
		return err
	}
	if err := s.Player.Pause(); err != nil {
		return errPlayer(key, "pause", err)
	}
	s.transition(StatePaused)
	return nil
}

// Stop stops playback. The session stays open.
func (b *Broker) Stop(key SessionKey) error {
	s, err := b.registry.Get(key)
	if err != nil {
		return err
	}
	if err := s.Player.Stop(); err != nil {
		return errPlayer(key, "stop", err)
	}
	return nil
}

// PauseOtherSessions pauses every playing session that shares key's role.
// Players are paused after the registry traversal ends.
func (b *Broker) PauseOtherSessions(key SessionKey) error {
	s, err := b.registry.Get(key)
	if err != nil {
		return err
	}

	var playing []*Session
	b.registry.Enumerate(func(k SessionKey, other *Session) {
		if k == key || other.Role != s.Role {
			return
		}
		if other.Player.PlaybackStatus() == StatusPlaying {
			playing = append(playing, other)
		}
	})

	var errs []error
	for _, other := range playing {
		if err := other.Player.Pause(); err != nil {
			errs = append(errs, errPlayer(other.Key, "pause", err))
			continue
		}
		other.transition(StatePaused)
		sessionsPaused.Inc()
		b.logger.Debug("paused other session",
			"session_key", other.Key.String(),
			"by", key.String(),
		)
	}
	return errors.Join(errs...)
}

// CloseSession tears down the session for key at its client's request.
func (b *Broker) CloseSession(key SessionKey) error {
	s, err := b.registry.Get(key)
	if err != nil {
		return err
	}
	if err := b.registry.Remove(key); err != nil {
		return err
	}
	b.observer.Unregister(key)
	s.transition(StateClosed)
	sessionsActive.Dec()
	b.closePlayer(s)

	b.logger.Info("session closed", "session_key", key.String(), "client", s.Client())
	return nil
}

// Run reclaims sessions whose clients died until ctx is done or the broker
// is closed.
func (b *Broker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-b.deaths:
			if !ok {
				return nil
			}
			b.reclaim(key)
		}
	}
}

func (b *Broker) reclaim(key SessionKey) {
	s, err := b.registry.Get(key)
	if err != nil {
		b.logger.Debug("death for unknown session", "session_key", key.String())
		return
	}
	if err := b.registry.Remove(key); err != nil {
		return
	}
	s.transition(StateReclaimed)
	sessionsActive.Dec()
	sessionsReclaimed.Inc()
	b.closePlayer(s)

	b.logger.Info("session reclaimed", "session_key", key.String(), "client", s.Client())
}

func (b *Broker) closePlayer(s *Session) {
	c, ok := s.Player.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		b.logger.Warn("closing player failed", "session_key", s.Key.String(), "error", err)
	}
}

// Sessions returns a snapshot of every live session.
func (b *Broker) Sessions() []SessionInfo {
	current := b.registry.CurrentKey()
	var out []SessionInfo
	b.registry.Enumerate(func(_ SessionKey, s *Session) {
		out = append(out, s.Info())
	})
	for i := range out {
		out[i].Current = out[i].Key == current
	}
	return out
}

// Close stops reclamation and closes every remaining session. Further
// calls to CreateSession and OpenURI fail with BROKER_CLOSED.
func (b *Broker) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.observer.Close()
		b.cancelDeaths()

		var keys []SessionKey
		b.registry.Enumerate(func(k SessionKey, _ *Session) { keys = append(keys, k) })
		for _, k := range keys {
			if err := b.CloseSession(k); err != nil {
				b.logger.Debug("close during shutdown", "session_key", k.String(), "error", err)
			}
		}
		b.registry.Close()
	})
	return nil
}
