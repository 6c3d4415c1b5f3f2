// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

//go:build !linux

package identity

import (
	"net"

	"github.com/samber/oops"
)

// PeerCredentials is only supported on Linux.
func PeerCredentials(_ *net.UnixConn) (Peer, error) {
	return Peer{}, oops.In("identity").
		Code(CodePeerCredentials).
		Errorf("peer credentials are not supported on this platform")
}
