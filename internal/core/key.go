// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID. Successive calls are strictly increasing.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// SessionKey identifies a playback session for its whole lifetime. The zero
// value is not a valid key.
type SessionKey struct {
	id ulid.ULID
}

// NewSessionKey allocates a fresh key.
func NewSessionKey() SessionKey {
	return SessionKey{id: NewULID()}
}

// ParseSessionKey parses the text form of a key.
func ParseSessionKey(s string) (SessionKey, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return SessionKey{}, oops.In("core").
			Code(CodeInvalidSessionKey).
			With("key", s).
			Wrapf(err, "invalid session key")
	}
	return SessionKey{id: id}, nil
}

// IsZero reports whether k is the zero key.
func (k SessionKey) IsZero() bool { return k.id == ulid.ULID{} }

// String returns the ULID text form.
func (k SessionKey) String() string { return k.id.String() }

// MarshalText implements encoding.TextMarshaler.
func (k SessionKey) MarshalText() ([]byte, error) {
	return k.id.MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SessionKey) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
