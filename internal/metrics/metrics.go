// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics declares the Prometheus collectors the daemon exposes on
// /metrics (spec_full §2's metrics row), modeled on
// internal/v3/worker/metrics.go's promauto vec style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts packets a node has received/sent/discarded/errored,
	// mirroring one nodestats.Stats snapshot per label combination.
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamkit_node_packets_total",
			Help: "Total packets observed by a node, by counter kind.",
		},
		[]string{"node_id", "kind"}, // kind: received, sent, discarded, errored
	)

	// NodeStateTransitions counts lifecycle transitions published on the
	// engine's state bus.
	NodeStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamkit_node_state_transitions_total",
			Help: "Total node lifecycle state transitions.",
		},
		[]string{"node_id", "state"},
	)

	// DistributorDropsTotal counts BestEffort-mode packets dropped at a
	// full edge, by connection.
	DistributorDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamkit_distributor_drops_total",
			Help: "Total packets dropped by a best-effort distributor edge.",
		},
		[]string{"from_node", "from_pin", "to_node", "to_pin"},
	)

	// ShutdownDuration measures how long Engine.handleShutdown took to join
	// every node and distributor.
	ShutdownDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamkit_engine_shutdown_duration_seconds",
			Help:    "Time taken for a full engine shutdown to complete.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// ObserveStats records one nodestats.Stats snapshot's monotonic counters as
// deltas against the Prometheus counter vec, which only ever increases.
// Callers pass the previous snapshot's totals so only the delta is added.
func ObserveStats(nodeID string, deltaReceived, deltaSent, deltaDiscarded, deltaErrored float64) {
	if deltaReceived > 0 {
		PacketsTotal.WithLabelValues(nodeID, "received").Add(deltaReceived)
	}
	if deltaSent > 0 {
		PacketsTotal.WithLabelValues(nodeID, "sent").Add(deltaSent)
	}
	if deltaDiscarded > 0 {
		PacketsTotal.WithLabelValues(nodeID, "discarded").Add(deltaDiscarded)
	}
	if deltaErrored > 0 {
		PacketsTotal.WithLabelValues(nodeID, "errored").Add(deltaErrored)
	}
}
