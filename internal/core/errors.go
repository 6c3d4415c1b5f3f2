// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import "github.com/samber/oops"

// Error codes produced by this package.
const (
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionNotResumable = "SESSION_NOT_RESUMABLE"
	CodeBrokerClosed        = "BROKER_CLOSED"
	CodeInvalidSessionKey   = "INVALID_SESSION_KEY"
	CodeInvalidRole         = "INVALID_ROLE"
	CodeInvalidLifetime     = "INVALID_LIFETIME"
	CodePlayerFailure       = "PLAYER_FAILURE"
)

func errSessionNotFound(key SessionKey) error {
	return oops.In("core").
		Code(CodeSessionNotFound).
		With("session_key", key.String()).
		Errorf("no session for key %s", key)
}

func errBrokerClosed() error {
	return oops.In("core").Code(CodeBrokerClosed).Errorf("broker is closed")
}

func errPlayer(key SessionKey, op string, err error) error {
	return oops.In("core").
		Code(CodePlayerFailure).
		With("session_key", key.String()).
		With("op", op).
		Wrapf(err, "player %s", op)
}
