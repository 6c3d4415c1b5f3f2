// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package access

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authorizationDecisions counts decisions by matching rule and outcome.
	authorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediabroker_authorization_decisions_total",
		Help: "Total number of open-uri authorization decisions",
	}, []string{"rule", "allowed"})

	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediabroker_context_resolutions_total",
		Help: "Total number of security context resolutions by outcome",
	}, []string{"outcome"})

	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediabroker_context_resolve_duration_seconds",
		Help:    "Histogram of security label lookup latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func recordDecision(d Decision) {
	authorizationDecisions.WithLabelValues(d.Rule, strconv.FormatBool(d.Allowed)).Inc()
}
