package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	return recorder, provider
}

func TestSpanEndRecordsStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status codes.Code
	}{
		{name: "success", err: nil, status: codes.Ok},
		{name: "failure", err: errors.New("stale"), status: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, provider := newRecorder()
			tracer := provider.Tracer("test")

			ctx, step := StartSpan(context.Background(), tracer, zap.NewNop(), "Observe", attribute.Int("nodes", 3))
			require.NotNil(t, ctx)
			assert.Equal(t, ctx, step.Context())

			step.AddEvent("built")
			step.SetAttributes(attribute.Int("interactive", 1))
			step.End(tt.err)

			ended := recorder.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, "Observe", ended[0].Name())
			assert.Equal(t, tt.status, ended[0].Status().Code)
			require.Len(t, ended[0].Events(), map[bool]int{true: 2, false: 1}[tt.err != nil])
		})
	}
}

func TestStartSpanToleratesNilLogger(t *testing.T) {
	_, provider := newRecorder()

	_, step := StartSpan(context.Background(), provider.Tracer("test"), nil, "Noop")

	assert.NotPanics(t, func() { step.End(nil) })
}
