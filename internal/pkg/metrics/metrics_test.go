package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	require.NotNil(t, m.BookingCommandsTotal)
	require.NotNil(t, m.SeatReservationsTotal)
	require.NotNil(t, m.DistributedLockDuration)
	require.NotNil(t, m.ActiveBookings)
	require.NotNil(t, m.ExpiredBookingsTotal)
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.BookingCommandsTotal.WithLabelValues("create", "success").Inc()
	m.BookingCommandsTotal.WithLabelValues("create", "success").Inc()
	m.SeatReservationsTotal.WithLabelValues("conflict").Inc()
	m.ExpiredBookingsTotal.Add(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.BookingCommandsTotal.WithLabelValues("create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SeatReservationsTotal.WithLabelValues("conflict")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ExpiredBookingsTotal))
}

func TestMetrics_Gauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ActiveBookings.WithLabelValues("draft").Set(5)
	m.ActiveBookings.WithLabelValues("draft").Dec()

	assert.Equal(t, float64(4), testutil.ToFloat64(m.ActiveBookings.WithLabelValues("draft")))
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)

	// 同じレジストリへの二重登録はpanicする
	assert.Panics(t, func() {
		NewWithRegistry(reg)
	})
}
