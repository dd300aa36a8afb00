// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides optional Prometheus instrumentation for
// the chat client. Long-running consumers of the SDK (bots, support
// consoles, load probes) expose these counters on a /metrics endpoint;
// interactive callers pass a nil *Metrics and pay nothing — every
// method is a no-op on a nil receiver.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the chat client counters. Create with New; a nil
// *Metrics disables instrumentation.
type Metrics struct {
	reconnectAttempts prometheus.Counter
	heartbeatPings    prometheus.Counter
	framesReceived    *prometheus.CounterVec
	framesDropped     prometheus.Counter
	sends             *prometheus.CounterVec
	uploads           *prometheus.CounterVec
}

// New creates the counter set and registers it with the given
// registerer (typically prometheus.DefaultRegisterer). Registration
// panics on duplicate collectors, same as promauto — one Metrics per
// process.
func New(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatkit_reconnect_attempts_total",
			Help: "Socket reconnection attempts after abnormal closure.",
		}),
		heartbeatPings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatkit_heartbeat_pings_total",
			Help: "Heartbeat ping frames written to the socket.",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatkit_frames_received_total",
			Help: "Inbound frames dispatched, by frame type.",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatkit_frames_dropped_total",
			Help: "Inbound frames dropped as malformed.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatkit_message_sends_total",
			Help: "Outbound message sends, by outcome (sent, failed).",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatkit_file_uploads_total",
			Help: "File uploads, by outcome (completed, failed).",
		}, []string{"outcome"}),
	}
	registerer.MustRegister(
		metrics.reconnectAttempts,
		metrics.heartbeatPings,
		metrics.framesReceived,
		metrics.framesDropped,
		metrics.sends,
		metrics.uploads,
	)
	return metrics
}

// ReconnectAttempt counts one reconnection attempt.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// HeartbeatPing counts one heartbeat ping.
func (m *Metrics) HeartbeatPing() {
	if m == nil {
		return
	}
	m.heartbeatPings.Inc()
}

// FrameReceived counts one dispatched inbound frame.
func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(frameType).Inc()
}

// FrameDropped counts one malformed inbound frame.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

// SendOutcome counts one message send with outcome "sent" or "failed".
func (m *Metrics) SendOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(outcome).Inc()
}

// UploadOutcome counts one file upload with outcome "completed" or
// "failed".
func (m *Metrics) UploadOutcome(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}
