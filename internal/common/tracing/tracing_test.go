// Package tracing 提供 OpenTelemetry 分布式追踪单元测试
package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(&Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	End(span, errors.New("ignored"))
}

func TestInit_NilConfig(t *testing.T) {
	p, err := Init(nil)
	require.NoError(t, err)
	assert.Equal(t, "rental-backend", p.config.ServiceName)
}

func TestStartEnd_Recorded(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "billing.create", AttrBillNumber.String("INV202501-x"), Period(2025, 1))
	End(span, errors.New("duplicate"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "billing.create", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "INV202501-x", attrs["rental.bill_number"])
	assert.Equal(t, "2025-01", attrs["rental.period"])
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
