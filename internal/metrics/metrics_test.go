package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))

	m.Lookup(LookupHit)
	m.Lookup(LookupHit)
	m.Lookup(LookupDrift)
	m.Promoted(3)
	m.PersistFailed("index")
	m.Request("http", "")
	m.ObserveGeneration(200*time.Millisecond, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(LookupHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(LookupDrift)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CachePromotions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues("index")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("http", "ok")))

	assert.Error(t, m.Register(reg), "double registration must fail")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Lookup(LookupMiss)
		m.Promoted(1)
		m.IndexSize(1)
		m.PersistFailed("ledger")
		m.LedgerIncremented()
		m.ObserveGeneration(time.Second, nil)
		m.Request("grpc", "generation_failure")
		m.Degraded("translation")
		m.Sessions(2)
	})
}
