// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package access

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// IdentityService returns the raw security label of a connected client.
// client is the opaque name the transport assigned to the connection.
type IdentityService interface {
	LookupLabel(ctx context.Context, client string) (string, error)
}

// IdentityFunc adapts a plain function to IdentityService.
type IdentityFunc func(ctx context.Context, client string) (string, error)

// LookupLabel calls f.
func (f IdentityFunc) LookupLabel(ctx context.Context, client string) (string, error) {
	return f(ctx, client)
}

// Resolver turns client names into Contexts asynchronously. It imposes no
// timeout of its own; callers bound the wait through the context passed to
// Future.Wait.
type Resolver struct {
	identity IdentityService
	logger   *slog.Logger
}

// NewResolver creates a Resolver backed by identity. A nil logger uses
// slog.Default().
func NewResolver(identity IdentityService, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{identity: identity, logger: logger}
}

// ResolveContextForName starts a lookup for client and returns immediately.
// cb runs exactly once, on the lookup goroutine, with either a Context or an
// error coded RESOLUTION_FAILURE or INVALID_PROFILE_NAME.
func (r *Resolver) ResolveContextForName(ctx context.Context, client string, cb func(Context, error)) {
	go func() {
		c, err := r.lookup(ctx, client)
		cb(c, err)
	}()
}

// Resolve starts a lookup for client and returns a Future for its result.
func (r *Resolver) Resolve(ctx context.Context, client string) *Future {
	f := newFuture(client)
	r.ResolveContextForName(ctx, client, f.complete)
	return f
}

func (r *Resolver) lookup(ctx context.Context, client string) (Context, error) {
	start := time.Now()
	label, err := r.identity.LookupLabel(ctx, client)
	resolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		resolutions.WithLabelValues("lookup_failed").Inc()
		r.logger.Debug("security label lookup failed", "client", client, "error", err)
		return Context{}, oops.In("access").
			Code(CodeResolutionFailure).
			With("client", client).
			Wrapf(err, "resolve security context")
	}

	c, err := ParseContext(label)
	if err != nil {
		resolutions.WithLabelValues("invalid_label").Inc()
		return Context{}, oops.In("access").With("client", client).Wrap(err)
	}

	resolutions.WithLabelValues("resolved").Inc()
	r.logger.Debug("resolved security context",
		"client", client,
		"label", c.Name(),
		"confined", c.Confined(),
	)
	return c, nil
}

// Future is the pending result of a Resolve call.
type Future struct {
	client string
	once   sync.Once
	done   chan struct{}
	ctx    Context
	err    error
}

func newFuture(client string) *Future {
	return &Future{client: client, done: make(chan struct{})}
}

func (f *Future) complete(c Context, err error) {
	f.once.Do(func() {
		f.ctx, f.err = c, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx ends. A ctx that ends
// first yields RESOLUTION_FAILURE.
func (f *Future) Wait(ctx context.Context) (Context, error) {
	select {
	case <-f.done:
		return f.ctx, f.err
	case <-ctx.Done():
		resolutions.WithLabelValues("abandoned").Inc()
		return Context{}, oops.In("access").
			Code(CodeResolutionFailure).
			With("client", f.client).
			Wrapf(ctx.Err(), "waiting for security context")
	}
}
