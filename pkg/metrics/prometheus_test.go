package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_CountsOnPrivateRegistry(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordAttempt("openai", "gpt-4o", false)
	r.RecordAttempt("anthropic", "claude-3-5-haiku-20241022", true)
	r.RecordFallback("openai", "anthropic")
	r.RecordCost("anthropic", 0.25)
	r.RecordCost("anthropic", 0)
	r.RecordAlpha(71)
	r.RecordEmergencyStop()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("openai", "gpt-4o", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("openai", "anthropic")))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.costUSD.WithLabelValues("anthropic")))
	assert.Equal(t, 71.0, testutil.ToFloat64(r.alphaScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.emergencyStops))
}
