// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

//go:build linux

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/config"
	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/internal/observability"
	"github.com/mediabroker/mediabroker/internal/transport"
)

type fakeObservability struct {
	metrics  *observability.Metrics
	ready    observability.ReadinessChecker
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeObservability) Start() (<-chan error, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started.Store(true)
	return make(chan error), nil
}

func (f *fakeObservability) Stop(context.Context) error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeObservability) Addr() string { return "fake:0" }

func (f *fakeObservability) Metrics() *observability.Metrics { return f.metrics }

// serveConfig returns a config whose socket and proc root live in a short
// temp dir, with this process labelled label.
func serveConfig(t *testing.T, label string) *config.Config {
	t.Helper()
	dir, err := os.MkdirTemp("", "mbd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	procRoot := filepath.Join(dir, "proc")
	labelPath := filepath.Join(procRoot, strconv.Itoa(os.Getpid()), "attr", "apparmor", "current")
	require.NoError(t, os.MkdirAll(filepath.Dir(labelPath), 0o755))
	require.NoError(t, os.WriteFile(labelPath, []byte(label+"\n"), 0o644))

	cfg := config.Defaults()
	cfg.Socket = filepath.Join(dir, "run", "b.sock")
	cfg.MetricsAddr = "fake:0"
	cfg.Log.Format = "text"
	cfg.Log.Level = "error"
	cfg.Audit.Mode = "all"
	cfg.Audit.Path = filepath.Join(dir, "audit", "audit.jsonl")
	cfg.Identity.ProcRoot = procRoot
	return &cfg
}

type daemon struct {
	obs    *fakeObservability
	done   chan error
	cancel context.CancelFunc
}

func startDaemon(t *testing.T, cfg *config.Config) *daemon {
	t.Helper()
	obs := &fakeObservability{metrics: observability.NewMetrics(prometheus.NewRegistry())}
	ready := make(chan struct{})
	deps := &ServeDeps{
		ObservabilityServerFactory: func(_ string, checker observability.ReadinessChecker) ObservabilityServer {
			obs.ready = checker
			return obs
		},
		Ready: func() { close(ready) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := newServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	d := &daemon{obs: obs, done: make(chan error, 1), cancel: cancel}
	go func() { d.done <- runServeWithDeps(ctx, cfg, cmd, deps) }()

	select {
	case <-ready:
	case err := <-d.done:
		t.Fatalf("daemon exited before ready: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}
	t.Cleanup(func() {
		cancel()
		select {
		case <-d.done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})
	return d
}

func (d *daemon) stop(t *testing.T) error {
	t.Helper()
	d.cancel()
	select {
	case err := <-d.done:
		d.done <- err
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func requestCount(t *testing.T, m *observability.Metrics, action, code string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.RequestsTotal.WithLabelValues(action, code).Write(&out))
	return out.GetCounter().GetValue()
}

func TestServe_EndToEnd(t *testing.T) {
	cfg := serveConfig(t, "com.ubuntu.music_music_1.2.3 (enforce)")
	d := startDaemon(t, cfg)

	require.True(t, d.obs.started.Load())
	require.NotNil(t, d.obs.ready)
	assert.True(t, d.obs.ready(), "ready once the socket listens")

	ctx := context.Background()
	client, err := transport.Dial(ctx, cfg.Socket, transport.DefaultDialOptions)
	require.NoError(t, err)

	key, err := client.CreateSession(ctx, core.RoleMultimedia, core.LifetimeEphemeral)
	require.NoError(t, err)

	allowed, err := client.OpenURI(ctx, key, "file:///home/u/.local/share/com.ubuntu.music/a.ogg")
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)

	denied, err := client.OpenURI(ctx, key, "file:///home/u/.local/share/com.evil.app/a.ogg")
	require.Error(t, err)
	assert.False(t, denied.Allowed)
	var remote *transport.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "AUTHORIZATION_DENIED", remote.Code)

	output, err := execute(t, "sessions", "--socket", cfg.Socket)
	require.NoError(t, err)
	assert.Contains(t, output, key.String())

	assert.Equal(t, 1.0, requestCount(t, d.obs.metrics, transport.ActionCreateSession, "OK"))
	assert.Equal(t, 1.0, requestCount(t, d.obs.metrics, transport.ActionOpenURI, "AUTHORIZATION_DENIED"))

	require.NoError(t, client.Close())
	require.NoError(t, d.stop(t))

	assert.True(t, d.obs.stopped.Load())
	assert.False(t, d.obs.ready(), "not ready after shutdown")
	_, statErr := os.Stat(cfg.Socket)
	assert.True(t, os.IsNotExist(statErr), "socket removed on shutdown")

	audit, err := os.ReadFile(cfg.Audit.Path)
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"kind":"default_deny"`)
}

func TestServe_ObservabilityStartFailure(t *testing.T) {
	cfg := serveConfig(t, "unconfined")
	deps := &ServeDeps{
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer {
			return &fakeObservability{startErr: fmt.Errorf("address in use")}
		},
	}

	err := runServeWithDeps(context.Background(), cfg, newServeCmd(), deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observability")
}

func TestServe_InvalidConfig(t *testing.T) {
	cfg := serveConfig(t, "unconfined")
	cfg.Log.Format = "xml"

	err := runServeWithDeps(context.Background(), cfg, newServeCmd(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestMonitorServerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	errCh <- fmt.Errorf("test server error")

	done := make(chan struct{})
	go func() {
		monitorServerErrors(ctx, cancel, errCh, "test-server")
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after server error")
	}
	<-done
}

func TestMonitorServerErrors_ClosedChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error)
	close(errCh)
	monitorServerErrors(ctx, cancel, errCh, "test-server")

	assert.NoError(t, ctx.Err(), "closed channel must not cancel")
}
