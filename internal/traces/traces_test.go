package traces

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", slog.Default())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "decide", UserID("u-1"), RiskScore(0.4))
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid(), "global no-op provider yields invalid span contexts")
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, attribute.Key("decision.outcome"), Decision("block").Key)
	assert.Equal(t, "dec_1", DecisionID("dec_1").Value.AsString())
	assert.Equal(t, []string{"a", "b"}, Triggers([]string{"a", "b"}).Value.AsStringSlice())
	assert.Equal(t, 0.25, RiskScore(0.25).Value.AsFloat64())
}
