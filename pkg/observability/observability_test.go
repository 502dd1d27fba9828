package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpansWithoutInitAreNoops(t *testing.T) {
	_, span := NewSpan(context.Background(), "noop")
	assert.NotPanics(t, func() {
		span.SetAttribute("rows", 3)
		span.Fail(errors.New("boom"))
		span.End()
	})
}

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Writer = &buf
	cfg.PrettyPrint = false

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	ctx, run := NewSpan(context.Background(), "ingest", attribute.String("store", "test.db"))
	_, chunk := NewSpan(ctx, "chunk")
	chunk.SetAttribute("rows", 2)
	chunk.SetAttribute("tables", []string{"1/accts/v1"})
	chunk.AddEvent("appended")
	chunk.End()
	run.Fail(errors.New("storage failure"))
	run.End()

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"chunk"`)
	assert.Contains(t, out, `"Name":"ingest"`)
	assert.Contains(t, out, "storage failure")
	assert.Contains(t, out, "1/accts/v1")
}

func TestZeroSamplingExportsNothing(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Writer = &buf
	cfg.SamplingRate = 0

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)
	_, span := NewSpan(context.Background(), "ingest")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Empty(t, buf.String())
}
