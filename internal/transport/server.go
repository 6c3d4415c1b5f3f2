// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/mediabroker/mediabroker/internal/codec"
	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/internal/identity"
	"github.com/mediabroker/mediabroker/pkg/errutil"
)

// writeTimeout bounds writing one response.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request.
const maxRequestSize = 64 * 1024

// PeerRegistry records the credentials of connected clients.
type PeerRegistry interface {
	Register(client string, p identity.Peer)
	Unregister(client string)
}

// Recorder counts connections and requests.
type Recorder interface {
	ConnectionOpened(identified bool)
	RequestServed(action, code string)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened(bool)        {}
func (nopRecorder) RequestServed(string, string) {}

// PeerCredentialsFunc reads the credentials of a connection's peer.
type PeerCredentialsFunc func(*net.UnixConn) (identity.Peer, error)

// ServerConfig configures a Server. Broker and Connections are required.
type ServerConfig struct {
	SocketPath  string
	Broker      *core.Broker
	Connections *Connections
	Peers       PeerRegistry
	// PeerCredentials defaults to identity.PeerCredentials.
	PeerCredentials PeerCredentialsFunc
	// ResolveTimeout bounds open_uri's security context resolution. Zero
	// means no bound.
	ResolveTimeout time.Duration
	// Compatibility is the semver range of accepted client versions.
	Compatibility string
	// Recorder defaults to a no-op.
	Recorder Recorder
	Logger   *slog.Logger
}

type actionFunc func(ctx context.Context, client string, req Request) (any, error)

// Server accepts client connections and dispatches their requests to the
// broker.
type Server struct {
	cfg        ServerConfig
	constraint *semver.Constraints
	handlers   map[string]actionFunc
	logger     *slog.Logger

	mu       sync.Mutex
	listener *net.UnixListener
	ready    chan struct{}

	active sync.WaitGroup
}

// NewServer creates a Server. Call Serve to start accepting.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Broker == nil || cfg.Connections == nil {
		return nil, oops.In("transport").Errorf("server needs a broker and a connection tracker")
	}
	if cfg.PeerCredentials == nil {
		cfg.PeerCredentials = identity.PeerCredentials
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Compatibility == "" {
		cfg.Compatibility = DefaultCompatibility
	}
	constraint, err := semver.NewConstraint(cfg.Compatibility)
	if err != nil {
		return nil, oops.In("transport").With("compatibility", cfg.Compatibility).Wrapf(err, "parse compatibility range")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		constraint: constraint,
		logger:     logger,
		ready:      make(chan struct{}),
	}
	s.handlers = map[string]actionFunc{
		ActionHello:              s.hello,
		ActionCreateSession:      s.createSession,
		ActionResumeSession:      s.resumeSession,
		ActionOpenURI:            s.openURI,
		ActionPlay:               s.keyed(cfg.Broker.Play),
		ActionPause:              s.keyed(cfg.Broker.Pause),
		ActionStop:               s.keyed(cfg.Broker.Stop),
		ActionPauseOtherSessions: s.keyed(cfg.Broker.PauseOtherSessions),
		ActionSetCurrent:         s.keyed(cfg.Broker.SetCurrentPlayerForKey),
		ActionCurrent:            s.current,
		ActionCloseSession:       s.keyed(cfg.Broker.CloseSession),
		ActionListSessions:       s.listSessions,
	}
	return s, nil
}

// Ready is closed once the socket is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve listens on the socket and serves connections until ctx is done. A
// stale socket file is replaced; the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	path := s.cfg.SocketPath
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.In("transport").With("path", path).Wrapf(err, "remove stale socket")
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return oops.In("transport").With("path", path).Wrapf(err, "listen")
	}
	if err := os.Chmod(path, 0o666); err != nil {
		_ = listener.Close()
		return oops.In("transport").With("path", path).Wrapf(err, "chmod socket")
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(path)
	}()

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	connCtx, cancelConns := context.WithCancel(ctx)
	defer cancelConns()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	s.logger.Info("broker socket listening", "path", path)

	for {
		conn, err := listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(connCtx, conn)
		}()
	}

	cancelConns()
	s.active.Wait()
	return nil
}

// handleConnection serves requests until the peer hangs up or ctx ends.
func (s *Server) handleConnection(ctx context.Context, conn *net.UnixConn) {
	client := "conn-" + core.NewULID().String()
	logger := s.logger.With("client", client)

	identified := false
	if s.cfg.Peers != nil {
		peer, err := s.cfg.PeerCredentials(conn)
		if err != nil {
			// Lookups for this client will fail, so opens are denied.
			errutil.LogError(ctx, logger, "reading peer credentials failed", err)
		} else {
			s.cfg.Peers.Register(client, peer)
			identified = true
			logger = logger.With("pid", peer.PID)
		}
	}
	s.cfg.Recorder.ConnectionOpened(identified)
	s.cfg.Connections.Open(client)
	logger.Debug("client connected")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		s.cfg.Connections.Close(client)
		if s.cfg.Peers != nil {
			s.cfg.Peers.Unregister(client)
		}
		logger.Debug("client disconnected")
	}()

	limit := &resettableLimit{r: conn}
	dec := codec.NewDecoder(limit)
	enc := codec.NewEncoder(conn)

	for {
		limit.reset(maxRequestSize)
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			// The stream cannot be resynchronized after a bad value.
			s.write(conn, enc, logger, Response{OK: false, Code: CodeProtocolError, Error: "invalid request: " + err.Error()})
			return
		}

		resp := s.dispatch(ctx, client, logger, req)
		action := req.Action
		if _, known := s.handlers[action]; !known {
			action = "unknown"
		}
		s.cfg.Recorder.RequestServed(action, resp.Code)
		s.write(conn, enc, logger, resp)
	}
}

func (s *Server) dispatch(ctx context.Context, client string, logger *slog.Logger, req Request) Response {
	resp := Response{ID: req.ID}

	handler, ok := s.handlers[req.Action]
	if !ok {
		err := protocolError("unknown action %q", req.Action)
		resp.Error, resp.Code = err.Error(), CodeProtocolError
		return resp
	}

	result, err := handler(ctx, client, req)
	if result != nil {
		data, merr := codec.Marshal(result)
		if merr != nil {
			resp.Error, resp.Code = "internal: marshaling response: "+merr.Error(), CodeProtocolError
			return resp
		}
		resp.Data = data
	}
	if err != nil {
		logger.Debug("action failed", "action", req.Action, "code", errutil.Code(err), "error", err)
		resp.Error, resp.Code = err.Error(), errutil.Code(err)
		return resp
	}
	resp.OK = true
	return resp
}

func (s *Server) write(conn *net.UnixConn, enc *codec.Encoder, logger *slog.Logger, resp Response) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := enc.Encode(resp); err != nil {
		logger.Debug("failed to write response", "id", resp.ID, "error", err)
	}
}

func (s *Server) hello(_ context.Context, client string, req Request) (any, error) {
	if err := checkVersion(s.constraint, req.Version); err != nil {
		return nil, err
	}
	return HelloResult{Version: ProtocolVersion, Client: client}, nil
}

func (s *Server) createSession(ctx context.Context, client string, req Request) (any, error) {
	role, err := core.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	lifetime, err := core.ParseLifetime(req.Lifetime)
	if err != nil {
		return nil, err
	}
	key, _, err := s.cfg.Broker.CreateSession(ctx, core.SessionConfig{
		Client:   client,
		Role:     role,
		Lifetime: lifetime,
	})
	if err != nil {
		return nil, err
	}
	return CreateSessionResult{Key: key}, nil
}

func (s *Server) resumeSession(ctx context.Context, client string, req Request) (any, error) {
	key, err := core.ParseSessionKey(req.Key)
	if err != nil {
		return nil, err
	}
	session, err := s.cfg.Broker.ResumeSessionFor(ctx, key, client)
	if err != nil {
		return nil, err
	}
	return session.Info(), nil
}

func (s *Server) openURI(ctx context.Context, client string, req Request) (any, error) {
	key, err := core.ParseSessionKey(req.Key)
	if err != nil {
		return nil, err
	}
	if s.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ResolveTimeout)
		defer cancel()
	}

	d, err := s.cfg.Broker.OpenURI(ctx, key, client, req.URI)
	if d.Rule == "" {
		return nil, err
	}
	return DecisionResult{Allowed: d.Allowed, Rule: d.Rule, Reason: d.Reason}, err
}

func (s *Server) current(context.Context, string, Request) (any, error) {
	session, ok := s.cfg.Broker.CurrentSession()
	if !ok {
		return CurrentResult{}, nil
	}
	info := session.Info()
	info.Current = true
	return CurrentResult{Present: true, Session: &info}, nil
}

func (s *Server) listSessions(context.Context, string, Request) (any, error) {
	return SessionsResult{Sessions: s.cfg.Broker.Sessions(), At: time.Now()}, nil
}

func (s *Server) keyed(op func(core.SessionKey) error) actionFunc {
	return func(_ context.Context, _ string, req Request) (any, error) {
		key, err := core.ParseSessionKey(req.Key)
		if err != nil {
			return nil, err
		}
		return nil, op(key)
	}
}

// resettableLimit caps the bytes read between resets.
type resettableLimit struct {
	r io.Reader
	n int64
}

func (l *resettableLimit) reset(n int64) { l.n = n }

func (l *resettableLimit) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, oops.In("transport").Code(CodeProtocolError).Errorf("request exceeds %d bytes", maxRequestSize)
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}
