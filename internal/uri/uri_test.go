// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package uri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabroker/mediabroker/internal/uri"
	"github.com/mediabroker/mediabroker/pkg/errutil"
)

func TestParse_AllComponents(t *testing.T) {
	u, err := uri.Parse("http://a/b?c#d")
	require.NoError(t, err)

	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "a", u.Authority)
	assert.Equal(t, "/b", u.Path)
	assert.Equal(t, "c", u.Query)
	assert.Equal(t, "d", u.Fragment)
	assert.True(t, u.HasAuthority())
}

func TestParse_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want uri.URI
	}{
		{
			name: "file with empty authority",
			in:   "file:///home/user/Music/song.mp3",
			want: uri.URI{Scheme: "file", Path: "/home/user/Music/song.mp3"},
		},
		{
			name: "file without authority",
			in:   "file:/usr/share/sounds/click.ogg",
			want: uri.URI{Scheme: "file", Path: "/usr/share/sounds/click.ogg"},
		},
		{
			name: "bare absolute path",
			in:   "/home/user/Videos/clip.mp4",
			want: uri.URI{Path: "/home/user/Videos/clip.mp4"},
		},
		{
			name: "rtsp with port and query",
			in:   "rtsp://cam.local:554/stream?profile=1",
			want: uri.URI{Scheme: "rtsp", Authority: "cam.local:554", Path: "/stream", Query: "profile=1"},
		},
		{
			name: "authority only",
			in:   "https://example.com",
			want: uri.URI{Scheme: "https", Authority: "example.com"},
		},
		{
			name: "percent escapes are kept verbatim",
			in:   "file:///home/user/Music/My%20Song.mp3",
			want: uri.URI{Scheme: "file", Path: "/home/user/Music/My%20Song.mp3"},
		},
		{
			name: "dot segments are not removed",
			in:   "file:///home/user/Music/../.ssh/id",
			want: uri.URI{Scheme: "file", Path: "/home/user/Music/../.ssh/id"},
		},
		{
			name: "empty query and fragment",
			in:   "http://a/b?#",
			want: uri.URI{Scheme: "http", Authority: "a", Path: "/b"},
		},
		{
			name: "opaque word is a path",
			in:   "garbage",
			want: uri.URI{Path: "garbage"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := uri.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Scheme, got.Scheme)
			assert.Equal(t, tt.want.Authority, got.Authority)
			assert.Equal(t, tt.want.Path, got.Path)
			assert.Equal(t, tt.want.Query, got.Query)
			assert.Equal(t, tt.want.Fragment, got.Fragment)
			assert.Equal(t, tt.in, got.String(), "String() must recompose the input")
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"file:///home/user/My Song.mp3",
		"http://a/b\n",
		"1http://a/b",
		"ht tp://a/b",
		"-x:/y",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := uri.Parse(in)
			errutil.AssertErrorCode(t, err, uri.CodeMalformed)
		})
	}
}

func TestIsStreaming(t *testing.T) {
	assert.True(t, uri.MustParse("http://a/x.mp3").IsStreaming())
	assert.True(t, uri.MustParse("HTTPS://a/x.mp3").IsStreaming())
	assert.True(t, uri.MustParse("rtsp://a/x").IsStreaming())
	assert.False(t, uri.MustParse("file:///x.mp3").IsStreaming())
	assert.False(t, uri.MustParse("/x.mp3").IsStreaming())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { uri.MustParse("") })
}
