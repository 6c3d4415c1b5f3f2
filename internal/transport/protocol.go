// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package transport serves the broker over a unix stream socket.
//
// Each connection is one client. It carries a stream of CBOR requests, each
// answered in order by one CBOR response. Closing the connection is the
// client's death: every session it owns is reclaimed.
package transport

import (
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/mediabroker/mediabroker/internal/codec"
	"github.com/mediabroker/mediabroker/internal/core"
)

// ProtocolVersion is the wire protocol version this package speaks.
const ProtocolVersion = "1.0.0"

// DefaultCompatibility is the range of client versions a server accepts.
const DefaultCompatibility = "^1.0"

// CodeProtocolError marks malformed or unsupported requests.
const CodeProtocolError = "PROTOCOL_ERROR"

// Actions.
const (
	ActionHello              = "hello"
	ActionCreateSession      = "create_session"
	ActionResumeSession      = "resume_session"
	ActionOpenURI            = "open_uri"
	ActionPlay               = "play"
	ActionPause              = "pause"
	ActionStop               = "stop"
	ActionPauseOtherSessions = "pause_other_sessions"
	ActionSetCurrent         = "set_current"
	ActionCurrent            = "current"
	ActionCloseSession       = "close_session"
	ActionListSessions       = "list_sessions"
)

// Request is one client request. Fields beyond ID and Action are used by
// the actions that need them.
type Request struct {
	ID       uint64 `cbor:"id"`
	Action   string `cbor:"action"`
	Version  string `cbor:"version,omitempty"`
	Key      string `cbor:"key,omitempty"`
	Role     string `cbor:"role,omitempty"`
	Lifetime string `cbor:"lifetime,omitempty"`
	URI      string `cbor:"uri,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID    uint64           `cbor:"id"`
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Code  string           `cbor:"code,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// HelloResult is the data of a hello response.
type HelloResult struct {
	Version string `cbor:"version"`
	Client  string `cbor:"client"`
}

// CreateSessionResult is the data of a create_session response.
type CreateSessionResult struct {
	Key core.SessionKey `cbor:"key"`
}

// DecisionResult is the data of an open_uri response, present for both
// allow and deny.
type DecisionResult struct {
	Allowed bool   `cbor:"allowed"`
	Rule    string `cbor:"rule"`
	Reason  string `cbor:"reason"`
}

// CurrentResult is the data of a current response.
type CurrentResult struct {
	Present bool              `cbor:"present"`
	Session *core.SessionInfo `cbor:"session,omitempty"`
}

// SessionsResult is the data of a list_sessions response.
type SessionsResult struct {
	Sessions []core.SessionInfo `cbor:"sessions"`
	At       time.Time          `cbor:"at"`
}

// checkVersion reports whether version satisfies constraint.
func checkVersion(constraint *semver.Constraints, version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return oops.In("transport").
			Code(CodeProtocolError).
			With("version", version).
			Wrapf(err, "invalid protocol version")
	}
	if !constraint.Check(v) {
		return oops.In("transport").
			Code(CodeProtocolError).
			With("version", version).
			With("supported", constraint.String()).
			Errorf("protocol version %s not supported", version)
	}
	return nil
}

func protocolError(format string, args ...any) error {
	return oops.In("transport").Code(CodeProtocolError).Errorf(format, args...)
}
