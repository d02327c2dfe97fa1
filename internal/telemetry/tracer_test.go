package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer("webchat-test", &buf, zerolog.Nop())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "send message")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"send message"`)
	assert.Contains(t, buf.String(), "webchat-test")
}
