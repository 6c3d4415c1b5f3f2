// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

//go:build linux

package identity

import (
	"net"

	"github.com/samber/oops"
	"golang.org/x/sys/unix"
)

// PeerCredentials returns the SO_PEERCRED credentials of conn's peer.
func PeerCredentials(conn *net.UnixConn) (Peer, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Peer{}, oops.In("identity").Code(CodePeerCredentials).Wrap(err)
	}

	var (
		cred    *unix.Ucred
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Peer{}, oops.In("identity").Code(CodePeerCredentials).Wrap(err)
	}
	if credErr != nil {
		return Peer{}, oops.In("identity").Code(CodePeerCredentials).Wrapf(credErr, "getsockopt SO_PEERCRED")
	}
	return Peer{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}
