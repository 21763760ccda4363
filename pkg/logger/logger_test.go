package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("order-service", "production", &buf)

	log.WithComponent("verifier").WithOrderID("ord-1").Info().Str("verdict", "Approved").Msg("verified")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order-service", entry["service"])
	assert.Equal(t, "verifier", entry["component"])
	assert.Equal(t, "ord-1", entry["order_id"])
	assert.Equal(t, "Approved", entry["verdict"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWithWriter_ProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("order-service", "production", &buf)

	log.Debug().Msg("noise")
	assert.Zero(t, buf.Len())
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithRequestID("r").WithCorrelationID("c").Error().Msg("dropped")
	})
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("order-service", "production", &buf).WithLevel("debug")

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	quiet := NewWithWriter("order-service", "production", &buf)
	assert.Same(t, quiet, quiet.WithLevel(""))
	assert.Same(t, quiet, quiet.WithLevel("loud"))
}

func TestContext(t *testing.T) {
	fallback := Nop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	var buf bytes.Buffer
	scoped := NewWithWriter("order-service", "production", &buf).WithRequestID("req-9")
	ctx := IntoContext(context.Background(), scoped)

	FromContext(ctx, fallback).Info().Msg("scoped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry["request_id"])
}
