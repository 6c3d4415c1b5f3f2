// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mediabroker/mediabroker/internal/access"
	"github.com/mediabroker/mediabroker/internal/core"
)

func TestRulesCommand_DefaultRules(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	output, err := execute(t, "rules", "--euid", "1000")
	require.NoError(t, err)

	var doc rulesDoc
	require.NoError(t, yaml.Unmarshal([]byte(output), &doc))
	assert.Equal(t, access.RuleDeny, doc.Fallback)

	want := access.DefaultRules(access.RuleOptions{EUID: 1000}).Names()
	require.Len(t, doc.Rules, len(want))
	for i, r := range doc.Rules {
		assert.Equal(t, i+1, r.Order)
		assert.Equal(t, want[i], r.Name)
		assert.NotEmpty(t, r.Description)
	}
}

func TestRulesCommand_IncludesExtraRules(t *testing.T) {
	path := writeConfig(t, "socket: /tmp/mb.sock\nextra_rules:\n  - name: podcasts\n    path_glob: /media/podcasts/**\n")

	output, err := execute(t, "--config", path, "rules")
	require.NoError(t, err)

	var doc rulesDoc
	require.NoError(t, yaml.Unmarshal([]byte(output), &doc))
	last := doc.Rules[len(doc.Rules)-1]
	assert.Equal(t, "podcasts", last.Name)
	assert.Contains(t, last.Description, "/media/podcasts/**")
}

func TestCheckURICommand(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	tests := []struct {
		name      string
		context   string
		uri       string
		wantAllow bool
		wantRule  string
	}{
		{"unconfined", "unconfined", "file:///etc/passwd", true, access.RuleUnconfined},
		{"own app data", "com.ubuntu.music_music_1.2.3", "file:///home/u/.local/share/com.ubuntu.music/a.mp3", true, access.RuleOwnAppData},
		{"streaming", "com.evil.app_app_1.0", "https://example.com/live", true, access.RuleStreaming},
		{"other app data", "com.evil.app_app_1.0", "file:///home/u/.local/share/com.ubuntu.music/a.mp3", false, access.RuleDeny},
		{"malformed", "com.evil.app_app_1.0", "not a uri", false, access.RuleMalformedURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, "check-uri", "--euid", "1000", "--context", tt.context, tt.uri)
			if tt.wantAllow {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, errDenied)
			}

			var doc decisionDoc
			require.NoError(t, yaml.Unmarshal([]byte(output), &doc))
			assert.Equal(t, tt.wantAllow, doc.Allowed)
			assert.Equal(t, tt.wantRule, doc.Rule)
			assert.Equal(t, tt.uri, doc.URI)
		})
	}
}

func TestCheckURICommand_InvalidContext(t *testing.T) {
	_, err := execute(t, "check-uri", "--context", "not_a_valid_label_at_all", "file:///a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errDenied)
}

func TestParseContextCommand(t *testing.T) {
	output, err := execute(t, "parse-context", "com.ubuntu.music_music_1.2.3 (enforce)")
	require.NoError(t, err)

	var doc contextDoc
	require.NoError(t, yaml.Unmarshal([]byte(output), &doc))
	assert.Equal(t, contextDoc{
		Name:     "com.ubuntu.music_music_1.2.3",
		Confined: true,
		Package:  "com.ubuntu.music",
		Profile:  "com.ubuntu.music-music",
	}, doc)
}

func TestParseContextCommand_Shell(t *testing.T) {
	output, err := execute(t, "parse-context", access.ShellName)
	require.NoError(t, err)

	var doc contextDoc
	require.NoError(t, yaml.Unmarshal([]byte(output), &doc))
	assert.True(t, doc.PlatformShell)
	assert.True(t, doc.Confined)
}

func TestParseContextCommand_Invalid(t *testing.T) {
	_, err := execute(t, "parse-context", "")
	require.Error(t, err)
}

func TestFormatSessionsTable(t *testing.T) {
	assert.Equal(t, "no sessions\n", formatSessionsTable(nil))

	key := core.NewSessionKey()
	out := formatSessionsTable([]core.SessionInfo{{
		Key:      key,
		Client:   "conn-1",
		Role:     core.RoleMultimedia,
		Lifetime: core.LifetimeEphemeral,
		State:    core.StateActive,
		Status:   core.StatusPlaying,
		URI:      "file:///a.mp3",
		Current:  true,
	}})
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "*")
	assert.Contains(t, out, key.String())
	assert.Contains(t, out, "file:///a.mp3")
}

func TestFormatSessionsJSON_Empty(t *testing.T) {
	out, err := formatSessionsJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
