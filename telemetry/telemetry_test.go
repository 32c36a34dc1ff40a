package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/simulacra-ai/conversa/telemetry"
)

func TestNoopImplementationsDoNotPanic(t *testing.T) {
	logger := telemetry.NewNoopLogger()
	metrics := telemetry.NewNoopMetrics()
	tracer := telemetry.NewNoopTracer()

	assert.NotPanics(t, func() {
		logger.Debug(context.Background(), "msg", "k", "v")
		logger.Info(context.Background(), "msg")
		logger.Warn(context.Background(), "msg")
		logger.Error(context.Background(), "msg", "err", "boom")

		metrics.IncCounter("c", 1, "k", "v")
		metrics.RecordTimer("t", time.Millisecond)
		metrics.RecordGauge("g", 1.0)

		ctx, span := tracer.Start(context.Background(), "op")
		span.AddEvent("evt")
		span.SetStatus(0, "")
		span.RecordError(nil)
		span.End()
		_ = ctx
	})
}

func TestPrometheusMetricsRegistersLazily(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(reg)

	assert.NotPanics(t, func() {
		metrics.IncCounter("requests_total", 1, "provider", "anthropic")
		metrics.IncCounter("requests_total", 1, "provider", "anthropic")
		metrics.RecordTimer("request_duration_seconds", 10*time.Millisecond)
		metrics.RecordGauge("active_conversations", 3)
	})

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
