// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package codec_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/codec"
	"github.com/mediabroker/mediabroker/internal/core"
)

type request struct {
	ID     uint64          `cbor:"id"`
	Action string          `cbor:"action"`
	Key    core.SessionKey `cbor:"key,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := codec.Marshal(map[string]any{"b": 1, "a": "x", "c": true})
	require.NoError(t, err)
	b, err := codec.Marshal(map[string]any{"c": true, "a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSessionKeyTravelsAsText(t *testing.T) {
	key := core.NewSessionKey()
	data, err := codec.Marshal(request{ID: 1, Action: "play", Key: key})
	require.NoError(t, err)

	diag, err := codec.Diagnose(data)
	require.NoError(t, err)
	assert.Contains(t, diag, `"`+key.String()+`"`)

	var back request
	require.NoError(t, codec.Unmarshal(data, &back))
	assert.Equal(t, key, back.Key)
}

func TestUnmarshalAnyUsesStringMaps(t *testing.T) {
	data, err := codec.Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	require.NoError(t, err)

	var v any
	require.NoError(t, codec.Unmarshal(data, &v))
	m, ok := v.(map[string]any)
	require.True(t, ok)
	_, ok = m["outer"].(map[string]any)
	assert.True(t, ok)
}

func TestStreamEncoding(t *testing.T) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	require.NoError(t, enc.Encode(request{ID: 1, Action: "hello"}))
	require.NoError(t, enc.Encode(request{ID: 2, Action: "list_sessions"}))

	dec := codec.NewDecoder(&buf)
	var first, second request
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "hello", first.Action)
	assert.Equal(t, uint64(2), second.ID)
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	data, err := codec.Marshal(struct {
		At time.Time `cbor:"at"`
	}{At: now})
	require.NoError(t, err)

	var back struct {
		At time.Time `cbor:"at"`
	}
	require.NoError(t, codec.Unmarshal(data, &back))
	assert.True(t, now.Equal(back.At))
}
