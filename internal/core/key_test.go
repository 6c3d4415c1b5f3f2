// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/pkg/errutil"
)

func TestNewSessionKey_UniqueUnderConcurrency(t *testing.T) {
	const n = 64
	keys := make(chan core.SessionKey, n*16)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 16 {
				keys <- core.NewSessionKey()
			}
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[core.SessionKey]bool)
	for k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Len(t, seen, n*16)
}

func TestSessionKey_TextRoundTrip(t *testing.T) {
	key := core.NewSessionKey()
	assert.False(t, key.IsZero())

	parsed, err := core.ParseSessionKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	text, err := key.MarshalText()
	require.NoError(t, err)
	var back core.SessionKey
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, key, back)
}

func TestParseSessionKey_Invalid(t *testing.T) {
	_, err := core.ParseSessionKey("not-a-key")
	errutil.AssertErrorCode(t, err, core.CodeInvalidSessionKey)

	var k core.SessionKey
	errutil.AssertErrorCode(t, k.UnmarshalText([]byte("")), core.CodeInvalidSessionKey)
	assert.True(t, k.IsZero())
}

func TestParseRoleAndLifetime(t *testing.T) {
	r, err := core.ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, core.RoleMultimedia, r)

	r, err = core.ParseRole("alarm")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAlarm, r)

	_, err = core.ParseRole("karaoke")
	errutil.AssertErrorCode(t, err, core.CodeInvalidRole)

	l, err := core.ParseLifetime("")
	require.NoError(t, err)
	assert.Equal(t, core.LifetimeEphemeral, l)

	l, err = core.ParseLifetime("resumable")
	require.NoError(t, err)
	assert.Equal(t, core.LifetimeResumable, l)

	_, err = core.ParseLifetime("forever")
	errutil.AssertErrorCode(t, err, core.CodeInvalidLifetime)
}
