// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package playback_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/core"
	"github.com/mediabroker/mediabroker/internal/playback"
	"github.com/mediabroker/mediabroker/pkg/errutil"
)

func newPlayer(t *testing.T) core.Player {
	t.Helper()
	p, err := playback.NewFactory(nil)(context.Background(), core.NewSessionKey(), core.SessionConfig{Role: core.RoleMultimedia})
	require.NoError(t, err)
	return p
}

func TestPlayer_Lifecycle(t *testing.T) {
	p := newPlayer(t)
	assert.Equal(t, core.StatusNull, p.PlaybackStatus())

	require.NoError(t, p.OpenURI(context.Background(), "file:///a.ogg"))
	assert.Equal(t, core.StatusReady, p.PlaybackStatus())

	require.NoError(t, p.Play())
	assert.Equal(t, core.StatusPlaying, p.PlaybackStatus())

	require.NoError(t, p.Pause())
	assert.Equal(t, core.StatusPaused, p.PlaybackStatus())

	require.NoError(t, p.Stop())
	assert.Equal(t, core.StatusStopped, p.PlaybackStatus())
	assert.Equal(t, "file:///a.ogg", p.(*playback.Player).URI())
}

func TestPlayer_PlayWithoutMedia(t *testing.T) {
	p := newPlayer(t)
	errutil.AssertErrorCode(t, p.Play(), playback.CodeNoMedia)

	// Pause and stop without media are harmless.
	require.NoError(t, p.Pause())
	require.NoError(t, p.Stop())
	assert.Equal(t, core.StatusNull, p.PlaybackStatus())
}

func TestPlayer_Close(t *testing.T) {
	p := newPlayer(t)
	require.NoError(t, p.OpenURI(context.Background(), "file:///a.ogg"))

	closer, ok := p.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	require.NoError(t, closer.Close())

	assert.Equal(t, core.StatusNull, p.PlaybackStatus())
	errutil.AssertErrorCode(t, p.Play(), playback.CodePlayerClosed)
	errutil.AssertErrorCode(t, p.OpenURI(context.Background(), "file:///b.ogg"), playback.CodePlayerClosed)
}
