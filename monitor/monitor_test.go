package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor("test", reg)

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.ObserveAction("take-loan", "ok")
	m.ObserveAction("take-loan", "AMOUNT_OUT_OF_RANGE")
	m.ObserveAction("take-loan", "ok")
	m.IncUpdateConflicts()
	m.IncUpdateExhausted()
	m.IncRoundsAdvanced()
	m.ObserveCommand("take-loan", 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.OnlinePlayers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.metrics.ActiveRooms))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.Actions.WithLabelValues("take-loan", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Actions.WithLabelValues("take-loan", "AMOUNT_OUT_OF_RANGE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.UpdateConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RoundsAdvanced))
	assert.Equal(t, int64(1), m.requestCount)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.IncOnlinePlayers()
		m.ObserveAction("move", "ok")
		m.ObserveCommand("move", time.Millisecond)
		m.IncUpdateExhausted()
	})
}
