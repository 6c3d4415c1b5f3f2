// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediabroker/mediabroker/internal/transport"
)

func TestConnections_WatchFiresOnClose(t *testing.T) {
	c := transport.NewConnections()
	c.Open("conn-a")
	assert.True(t, c.Alive("conn-a"))

	fired := 0
	c.Watch("conn-a", func() { fired++ })
	c.Watch("conn-a", func() { fired++ })
	c.Close("conn-a")

	assert.Equal(t, 2, fired)
	assert.False(t, c.Alive("conn-a"))
	assert.Equal(t, 0, c.Count())
}

func TestConnections_CancelledWatchDoesNotFire(t *testing.T) {
	c := transport.NewConnections()
	c.Open("conn-a")

	fired := false
	cancel := c.Watch("conn-a", func() { fired = true })
	cancel()
	c.Close("conn-a")
	cancel()

	assert.False(t, fired)
}

func TestConnections_UnknownClientIsDead(t *testing.T) {
	c := transport.NewConnections()

	fired := false
	c.Watch("conn-gone", func() { fired = true })
	assert.True(t, fired)
}
