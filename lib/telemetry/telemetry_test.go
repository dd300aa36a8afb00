// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := New(registry)

	metrics.ReconnectAttempt()
	metrics.ReconnectAttempt()
	metrics.FrameReceived("message")
	metrics.FrameReceived("message")
	metrics.FrameReceived("typing_start")
	metrics.SendOutcome("failed")

	if got := testutil.ToFloat64(metrics.reconnectAttempts); got != 2 {
		t.Errorf("reconnect attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.framesReceived.WithLabelValues("message")); got != 2 {
		t.Errorf("message frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.sends.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed sends = %v, want 1", got)
	}
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var metrics *Metrics
	// None of these may panic.
	metrics.ReconnectAttempt()
	metrics.HeartbeatPing()
	metrics.FrameReceived("message")
	metrics.FrameDropped()
	metrics.SendOutcome("sent")
	metrics.UploadOutcome("completed")
}
