// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

//go:build linux

package identity_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/identity"
)

func TestPeerCredentials_Self(t *testing.T) {
	dir, err := os.MkdirTemp("", "mb")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: filepath.Join(dir, "s.sock"), Net: "unix"})
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan *net.UnixConn, 1)
	go func() {
		c, err := ln.AcceptUnix()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("unix", filepath.Join(dir, "s.sock"))
	require.NoError(t, err)
	defer client.Close()

	server, ok := <-accepted
	require.True(t, ok)
	defer server.Close()

	peer, err := identity.PeerCredentials(server)
	require.NoError(t, err)
	assert.Equal(t, int32(os.Getpid()), peer.PID)
	assert.Equal(t, uint32(os.Getuid()), peer.UID)
}
