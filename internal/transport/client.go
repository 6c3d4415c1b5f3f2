// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/mediabroker/mediabroker/internal/codec"
	"github.com/mediabroker/mediabroker/internal/core"
)

// DialOptions controls how Dial retries.
type DialOptions struct {
	// Attempts is the number of retries after the first failure.
	Attempts uint64
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
}

// DefaultDialOptions retries for roughly three seconds.
var DefaultDialOptions = DialOptions{
	Attempts:   6,
	Backoff:    50 * time.Millisecond,
	MaxBackoff: time.Second,
}

// Client speaks the broker protocol over one connection. Calls are
// serialized; a Client is safe for concurrent use.
type Client struct {
	conn net.Conn
	enc  *codec.Encoder
	dec  *codec.Decoder

	mu     sync.Mutex
	nextID uint64
	name   string
}

// RemoteError is a failure response from the broker.
type RemoteError struct {
	Action  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Action + ": " + e.Message
	}
	return e.Action + ": " + e.Code + ": " + e.Message
}

// Dial connects to the broker at socketPath, retrying with exponential
// backoff while the socket is not yet there, and performs the hello
// handshake.
func Dial(ctx context.Context, socketPath string, opts DialOptions) (*Client, error) {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultDialOptions.Backoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultDialOptions.MaxBackoff
	}
	backoff := retry.WithMaxRetries(opts.Attempts,
		retry.WithCappedDuration(opts.MaxBackoff, retry.NewExponential(opts.Backoff)))

	var conn net.Conn
	var d net.Dialer
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := d.DialContext(ctx, "unix", socketPath)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, oops.In("transport").With("path", socketPath).Wrapf(err, "dial broker")
	}

	c := &Client{
		conn: conn,
		enc:  codec.NewEncoder(conn),
		dec:  codec.NewDecoder(conn),
	}
	var hello HelloResult
	if err := c.Call(ctx, Request{Action: ActionHello, Version: ProtocolVersion}, &hello); err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.name = hello.Client
	return c, nil
}

// Name returns the client name the broker assigned to this connection.
func (c *Client) Name() string { return c.name }

// Close closes the connection. The broker reclaims every session created
// through it.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends req and decodes the response data into result, which may be
// nil. A failure response whose data is present still fills result.
func (c *Client) Call(ctx context.Context, req Request, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req.ID = c.nextID

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer func() { _ = c.conn.SetDeadline(time.Time{}) }()
	}

	if err := c.enc.Encode(req); err != nil {
		return oops.In("transport").With("action", req.Action).Wrapf(err, "send request")
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return oops.In("transport").With("action", req.Action).Wrapf(err, "read response")
	}
	if resp.ID != req.ID {
		return oops.In("transport").
			Code(CodeProtocolError).
			With("want", req.ID).
			With("got", resp.ID).
			Errorf("response id mismatch")
	}

	if result != nil && len(resp.Data) > 0 {
		if err := codec.Unmarshal(resp.Data, result); err != nil {
			return oops.In("transport").With("action", req.Action).Wrapf(err, "decode response data")
		}
	}
	if !resp.OK {
		return &RemoteError{Action: req.Action, Code: resp.Code, Message: resp.Error}
	}
	return nil
}

// CreateSession creates a session owned by this connection.
func (c *Client) CreateSession(ctx context.Context, role core.Role, lifetime core.Lifetime) (core.SessionKey, error) {
	var res CreateSessionResult
	err := c.Call(ctx, Request{Action: ActionCreateSession, Role: string(role), Lifetime: string(lifetime)}, &res)
	return res.Key, err
}

// ResumeSession takes over the session for key.
func (c *Client) ResumeSession(ctx context.Context, key core.SessionKey) (core.SessionInfo, error) {
	var info core.SessionInfo
	err := c.Call(ctx, Request{Action: ActionResumeSession, Key: key.String()}, &info)
	return info, err
}

// OpenURI asks the broker to open uri in the session for key. The decision
// is returned for denials as well.
func (c *Client) OpenURI(ctx context.Context, key core.SessionKey, uri string) (DecisionResult, error) {
	var d DecisionResult
	err := c.Call(ctx, Request{Action: ActionOpenURI, Key: key.String(), URI: uri}, &d)
	return d, err
}

// Play starts the session for key.
func (c *Client) Play(ctx context.Context, key core.SessionKey) error {
	return c.keyed(ctx, ActionPlay, key)
}

// Pause pauses the session for key.
func (c *Client) Pause(ctx context.Context, key core.SessionKey) error {
	return c.keyed(ctx, ActionPause, key)
}

// Stop stops the session for key.
func (c *Client) Stop(ctx context.Context, key core.SessionKey) error {
	return c.keyed(ctx, ActionStop, key)
}

// PauseOtherSessions pauses the playing peers of key.
func (c *Client) PauseOtherSessions(ctx context.Context, key core.SessionKey) error {
	return c.keyed(ctx, ActionPauseOtherSessions, key)
}

// SetCurrent makes key the current session.
func (c *Client) SetCurrent(ctx context.Context, key core.SessionKey) error {
	return c.keyed(ctx, ActionSetCurrent, key)
}

// CloseSession closes the session for key.
func (c *Client) CloseSession(ctx context.Context, key core.SessionKey) error {
	return c.keyed(ctx, ActionCloseSession, key)
}

// Current returns the current session, if any.
func (c *Client) Current(ctx context.Context) (CurrentResult, error) {
	var res CurrentResult
	err := c.Call(ctx, Request{Action: ActionCurrent}, &res)
	return res, err
}

// ListSessions returns every live session.
func (c *Client) ListSessions(ctx context.Context) ([]core.SessionInfo, error) {
	var res SessionsResult
	err := c.Call(ctx, Request{Action: ActionListSessions}, &res)
	return res.Sessions, err
}

func (c *Client) keyed(ctx context.Context, action string, key core.SessionKey) error {
	return c.Call(ctx, Request{Action: action, Key: key.String()}, nil)
}
