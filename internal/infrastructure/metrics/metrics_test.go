package metrics

import (
	"testing"
	"time"

	"vault_aggregator/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ObserveChainFetch(11155111, port.OutcomeSuccess, 200*time.Millisecond)
	r.ObserveChainFetch(11155111, port.OutcomeSuccess, 300*time.Millisecond)
	r.ObserveChainFetch(84532, port.OutcomeTimeout, 15*time.Second)
	r.ObserveAggregation(1, 1, 15*time.Second)
	r.SetPointersSynchronized(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.chainFetches.WithLabelValues("11155111", port.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chainFetches.WithLabelValues("84532", port.OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.aggregations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chainsFailed))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.pointersInSync))

	r.SetPointersSynchronized(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pointersInSync))
}

func TestNewRecorderDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNewRecorder(reg) })
}
