// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediabroker_sessions_active",
		Help: "Number of live playback sessions",
	})

	sessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediabroker_sessions_created_total",
		Help: "Total number of playback sessions created",
	}, []string{"role"})

	sessionsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediabroker_sessions_reclaimed_total",
		Help: "Total number of sessions reclaimed after their client died",
	})

	sessionsPaused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediabroker_sessions_paused_total",
		Help: "Total number of sessions paused because another session of the same role started",
	})
)
