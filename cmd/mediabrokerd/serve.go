// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediabroker/mediabroker/internal/access"
	"github.com/mediabroker/mediabroker/internal/access/audit"
	"github.com/mediabroker/mediabroker/internal/config"
	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/internal/identity"
	"github.com/mediabroker/mediabroker/internal/logging"
	"github.com/mediabroker/mediabroker/internal/observability"
	"github.com/mediabroker/mediabroker/internal/playback"
	"github.com/mediabroker/mediabroker/internal/transport"
	"github.com/mediabroker/mediabroker/internal/xdg"
)

const serviceName = "mediabrokerd"

// shutdownTimeout bounds stopping the observability server.
const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the media broker daemon",
		Long: `Run the broker: listen on the broker socket, authorize open-uri
requests, reclaim sessions of disconnected clients, and serve metrics and
health probes on the observability address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps runs the daemon until ctx is done, a signal arrives or a
// server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	if deps.PlayerFactory == nil {
		deps.PlayerFactory = playback.NewFactory(logger)
	}

	slog.Info("starting media broker",
		"socket", cfg.Socket,
		"audit_mode", cfg.Audit.Mode,
		"proc_root", cfg.Identity.ProcRoot,
	)

	rules, err := cfg.Rules(access.RuleOptions{EUID: -1})
	if err != nil {
		return fmt.Errorf("failed to build rule set: %w", err)
	}

	auditLogger, err := newAuditLogger(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up audit log: %w", err)
	}
	defer func() {
		if closeErr := auditLogger.Close(); closeErr != nil {
			slog.Warn("error closing audit log", "error", closeErr)
		}
	}()

	identities := identity.NewService(cfg.Identity.ProcRoot)
	resolver := access.NewResolver(identities, logger)
	authorizer := access.NewAuthorizer(rules,
		access.WithAuditLogger(auditLogger),
		access.WithLogger(logger),
	)
	connections := transport.NewConnections()

	broker, err := core.NewBroker(core.BrokerConfig{
		Players:    deps.PlayerFactory,
		Liveness:   connections,
		Resolver:   resolver,
		Authorizer: authorizer,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool

	var obsServer ObservabilityServer
	var recorder transport.Recorder
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			_ = broker.Close()
			return fmt.Errorf("failed to start observability server: %w", startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		if m := obsServer.Metrics(); m != nil {
			recorder = m
		}
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	if err := xdg.EnsureDir(filepath.Dir(cfg.Socket)); err != nil {
		stopObservability(obsServer)
		_ = broker.Close()
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	server, err := transport.NewServer(transport.ServerConfig{
		SocketPath:     cfg.Socket,
		Broker:         broker,
		Connections:    connections,
		Peers:          identities,
		ResolveTimeout: cfg.ResolveTimeout,
		Recorder:       recorder,
		Logger:         logger,
	})
	if err != nil {
		stopObservability(obsServer)
		_ = broker.Close()
		return fmt.Errorf("failed to create transport: %w", err)
	}

	brokerDone := make(chan struct{})
	go func() {
		defer close(brokerDone)
		//nolint:errcheck // Run only returns nil
		broker.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-server.Ready():
		ready.Store(true)
		cmd.Println("Media broker started")
		slog.Info("media broker ready", "socket", cfg.Socket)
		if deps.Ready != nil {
			deps.Ready()
		}
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
		case err := <-serveErr:
			serveErr <- err
			if err != nil {
				runErr = fmt.Errorf("broker socket error: %w", err)
			}
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
		}
	case err := <-serveErr:
		serveErr <- err
		runErr = fmt.Errorf("broker socket error: %w", err)
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	ready.Store(false)
	cancel()

	if err := <-serveErr; err != nil && runErr == nil {
		slog.Warn("broker socket stopped with error", "error", err)
	}
	if err := broker.Close(); err != nil {
		slog.Warn("error closing broker", "error", err)
	}
	<-brokerDone
	stopObservability(obsServer)

	slog.Info("shutdown complete")
	return runErr
}

// newAuditLogger opens the configured audit sink. An empty path logs
// decisions through slog.
func newAuditLogger(cfg *config.Config, logger *slog.Logger) (*audit.Logger, error) {
	mode := cfg.AuditMode()
	if mode == audit.ModeOff || cfg.Audit.Path == "" {
		return audit.NewLogger(mode, audit.SlogWriter{Logger: logger.With("component", "audit")}), nil
	}
	if err := xdg.EnsureDir(filepath.Dir(cfg.Audit.Path)); err != nil {
		return nil, err
	}
	writer, err := audit.NewFileWriter(cfg.Audit.Path)
	if err != nil {
		return nil, err
	}
	return audit.NewLogger(mode, writer), nil
}

func stopObservability(obsServer ObservabilityServer) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when errCh delivers a non-nil error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
