// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package forking

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the worker's pending/queued gauges (§4.4 "Metrics").
type Metrics struct {
	PendingRequests prometheus.Gauge
	QueuedRequests  prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starkdev",
			Subsystem: "forking",
			Name:      "pending_requests",
			Help:      "Number of forking-backend requests currently in flight to the upstream RPC.",
		}),
		QueuedRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starkdev",
			Subsystem: "forking",
			Name:      "queued_requests",
			Help:      "Number of forking-backend requests waiting for a concurrency slot.",
		}),
	}
}

// Register adds the backend's gauges to reg, so cmd/devnode can expose them
// on the metrics endpoint.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.PendingRequests); err != nil {
		return err
	}
	return reg.Register(m.QueuedRequests)
}
