// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"context"

	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// PlayerFactory creates the player behind each session.
	// Default: playback.NewFactory
	PlayerFactory core.PlayerFactory

	// Ready, if set, is called once the broker socket is listening.
	Ready func()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
