// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mediabroker/mediabroker/internal/core"
)

func TestBroadcaster_Subscribe(t *testing.T) {
	bc := core.NewBroadcaster[int]("test", 4)

	ch, cancel := bc.Subscribe()
	defer cancel()

	bc.Broadcast(7)
	select {
	case v := <-ch:
		assert.Equal(t, 7, v)
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for value")
	}
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	bc := core.NewBroadcaster[int]("test", 4)

	ch, cancel := bc.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bc.Len())
}

func TestBroadcaster_FullSubscriberMissesValues(t *testing.T) {
	bc := core.NewBroadcaster[int]("test", 1)
	ch, cancel := bc.Subscribe()
	defer cancel()

	bc.Broadcast(1)
	bc.Broadcast(2)

	assert.Equal(t, 1, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestBroadcaster_Close(t *testing.T) {
	bc := core.NewBroadcaster[string]("test", 0)
	ch, cancel := bc.Subscribe()

	bc.Close()
	bc.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, lateCancel := bc.Subscribe()
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok)

	assert.NotPanics(t, func() { bc.Broadcast("dropped") })
}
