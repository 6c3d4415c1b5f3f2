// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package identity maps connected clients to their kernel security labels.
//
// The transport records the peer credentials of every accepted connection
// under the connection's client name. LookupLabel then reads the label of the
// peer process from procfs.
package identity

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Error codes produced by this package.
const (
	CodeUnknownClient    = "UNKNOWN_CLIENT"
	CodeLabelUnavailable = "LABEL_UNAVAILABLE"
	CodePeerCredentials  = "PEER_CREDENTIALS"
)

// DefaultProcRoot is where procfs is normally mounted.
const DefaultProcRoot = "/proc"

// Peer holds the credentials of the process on the other end of a socket.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

// labelFiles are tried in order below /proc/<pid>.
var labelFiles = []string{
	filepath.Join("attr", "apparmor", "current"),
	filepath.Join("attr", "current"),
}

// Service resolves client names to security labels. Safe for concurrent use.
type Service struct {
	procRoot string

	mu    sync.RWMutex
	peers map[string]Peer
}

// NewService creates a Service reading procfs below procRoot. An empty
// procRoot uses DefaultProcRoot.
func NewService(procRoot string) *Service {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	return &Service{procRoot: procRoot, peers: make(map[string]Peer)}
}

// Register associates client with peer credentials.
func (s *Service) Register(client string, p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[client] = p
}

// Unregister forgets client.
func (s *Service) Unregister(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, client)
}

// Peer returns the credentials recorded for client.
func (s *Service) Peer(client string) (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[client]
	return p, ok
}

// LookupLabel returns the raw security label of client's process.
func (s *Service) LookupLabel(ctx context.Context, client string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", oops.In("identity").With("client", client).Wrap(err)
	}
	p, ok := s.Peer(client)
	if !ok {
		return "", oops.In("identity").
			Code(CodeUnknownClient).
			With("client", client).
			Errorf("no peer credentials recorded for client")
	}
	label, err := s.LabelForPID(p.PID)
	if err != nil {
		return "", oops.In("identity").With("client", client).Wrap(err)
	}
	return label, nil
}

// LabelForPID reads the security label of pid.
func (s *Service) LabelForPID(pid int32) (string, error) {
	dir := filepath.Join(s.procRoot, strconv.FormatInt(int64(pid), 10))

	var lastErr error
	for _, name := range labelFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			lastErr = err
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			break
		}
		label := strings.TrimRight(string(data), "\x00\n")
		if label == "" {
			lastErr = errors.New("empty label")
			continue
		}
		return label, nil
	}
	return "", oops.In("identity").
		Code(CodeLabelUnavailable).
		With("pid", pid).
		Wrapf(lastErr, "read security label")
}
