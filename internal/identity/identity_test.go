// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package identity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/identity"
	"github.com/mediabroker/mediabroker/pkg/errutil"
)

func writeLabel(t *testing.T, root, pid, rel, content string) {
	t.Helper()
	path := filepath.Join(root, pid, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLookupLabel_PrefersAppArmorFile(t *testing.T) {
	root := t.TempDir()
	writeLabel(t, root, "42", "attr/apparmor/current", "com.ubuntu.music_music_1.2.3 (enforce)\n")
	writeLabel(t, root, "42", "attr/current", "other\n")

	svc := identity.NewService(root)
	svc.Register("conn-1", identity.Peer{PID: 42})

	label, err := svc.LookupLabel(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "com.ubuntu.music_music_1.2.3 (enforce)", label)
}

func TestLookupLabel_FallsBackToLegacyFile(t *testing.T) {
	root := t.TempDir()
	writeLabel(t, root, "7", "attr/current", "unconfined\n")

	svc := identity.NewService(root)
	svc.Register("conn-1", identity.Peer{PID: 7})

	label, err := svc.LookupLabel(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "unconfined", label)
}

func TestLookupLabel_UnknownClient(t *testing.T) {
	svc := identity.NewService(t.TempDir())

	_, err := svc.LookupLabel(context.Background(), "conn-x")
	errutil.AssertErrorCode(t, err, identity.CodeUnknownClient)
}

func TestLookupLabel_ProcessGone(t *testing.T) {
	svc := identity.NewService(t.TempDir())
	svc.Register("conn-1", identity.Peer{PID: 99})

	_, err := svc.LookupLabel(context.Background(), "conn-1")
	errutil.AssertErrorCode(t, err, identity.CodeLabelUnavailable)
}

func TestLookupLabel_EmptyLabel(t *testing.T) {
	root := t.TempDir()
	writeLabel(t, root, "5", "attr/current", "\n")

	svc := identity.NewService(root)
	svc.Register("conn-1", identity.Peer{PID: 5})

	_, err := svc.LookupLabel(context.Background(), "conn-1")
	errutil.AssertErrorCode(t, err, identity.CodeLabelUnavailable)
}

func TestLookupLabel_CancelledContext(t *testing.T) {
	svc := identity.NewService(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.LookupLabel(ctx, "conn-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnregister(t *testing.T) {
	svc := identity.NewService("")
	svc.Register("conn-1", identity.Peer{PID: 1, UID: 1000})

	p, ok := svc.Peer("conn-1")
	require.True(t, ok)
	assert.Equal(t, uint32(1000), p.UID)

	svc.Unregister("conn-1")
	_, ok = svc.Peer("conn-1")
	assert.False(t, ok)
}
