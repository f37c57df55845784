package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveProvider(t *testing.T) {
	m := New()
	m.ObserveProvider(KindChat, time.Now(), nil)
	m.ObserveProvider(KindChat, time.Now(), errors.New("boom"))
	m.ObserveProvider(KindImage, time.Now(), nil)

	assert.InDelta(t, 1, testutil.ToFloat64(m.providerRequests.WithLabelValues(KindChat, "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.providerRequests.WithLabelValues(KindChat, "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.providerRequests.WithLabelValues(KindImage, "success")), 0)
}

func TestImageWarningsAndSessions(t *testing.T) {
	m := New()
	m.AddImageWarnings(2)
	m.AddImageWarnings(0)
	m.SetActiveSessions(3)
	assert.InDelta(t, 2, testutil.ToFloat64(m.imageWarnings), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.activeSessions), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProvider(KindChat, time.Now(), nil)
		m.AddImageWarnings(1)
		m.SetActiveSessions(1)
	})
}
