// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"
	"sync"

	"github.com/samber/oops"
	"github.com/stretchr/testify/mock"

	"github.com/mediabroker/mediabroker/internal/access"
)

// Labels commonly used in tests.
const (
	MusicLabel  = "com.ubuntu.music_music_1.2.3"
	CameraLabel = "com.ubuntu.camera_camera_3.0"
	EvilLabel   = "com.evil.app_app_1.0"
)

// MockIdentity is a testify mock of access.IdentityService.
type MockIdentity struct {
	mock.Mock
}

// LookupLabel records the call and returns the configured result.
func (m *MockIdentity) LookupLabel(ctx context.Context, client string) (string, error) {
	args := m.Called(ctx, client)
	return args.String(0), args.Error(1)
}

// StaticIdentity maps client names to labels. Unknown clients fail lookup.
type StaticIdentity struct {
	mu     sync.RWMutex
	labels map[string]string
}

// NewStaticIdentity creates a StaticIdentity seeded with labels.
func NewStaticIdentity(labels map[string]string) *StaticIdentity {
	s := &StaticIdentity{labels: make(map[string]string, len(labels))}
	for k, v := range labels {
		s.labels[k] = v
	}
	return s
}

// Set assigns label to client.
func (s *StaticIdentity) Set(client, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[client] = label
}

// LookupLabel returns the label for client.
func (s *StaticIdentity) LookupLabel(_ context.Context, client string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.labels[client]
	if !ok {
		return "", oops.In("accesstest").With("client", client).Errorf("unknown client")
	}
	return label, nil
}

// BlockingIdentity returns label only after Release is called.
type BlockingIdentity struct {
	label   string
	release chan struct{}
	once    sync.Once
	started chan struct{}
	sOnce   sync.Once
}

// NewBlockingIdentity creates a BlockingIdentity answering label.
func NewBlockingIdentity(label string) *BlockingIdentity {
	return &BlockingIdentity{
		label:   label,
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
}

// LookupLabel blocks until Release.
func (b *BlockingIdentity) LookupLabel(_ context.Context, _ string) (string, error) {
	b.sOnce.Do(func() { close(b.started) })
	<-b.release
	return b.label, nil
}

// Started is closed once the first lookup is in flight.
func (b *BlockingIdentity) Started() <-chan struct{} { return b.started }

// Release unblocks every pending and future lookup.
func (b *BlockingIdentity) Release() {
	b.once.Do(func() { close(b.release) })
}

// Context parses label and panics on error.
func Context(label string) access.Context {
	return access.MustParseContext(label)
}

// Unconfined returns the unconfined context.
func Unconfined() access.Context {
	return access.MustParseContext(access.Unconfined)
}
