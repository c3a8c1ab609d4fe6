package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// 予約コマンドの総数（command: create/confirm/cancel/..., status: success, conflict, lock_timeout, invalid_state, error）
	BookingCommandsTotal *prometheus.CounterVec

	// 座席予約試行の総数（status: success, conflict, error）
	SeatReservationsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// アクティブな予約数（status: draft, payment_pending, confirmed）
	ActiveBookings *prometheus.GaugeVec

	// 期限切れスイープで解放された予約の総数
	ExpiredBookingsTotal prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BookingCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_commands_total",
				Help: "Total number of booking commands processed",
			},
			[]string{"command", "status"},
		),
		SeatReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_reservations_total",
				Help: "Total number of seat reservation attempts",
			},
			[]string{"status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ActiveBookings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "active_bookings",
				Help: "Current number of bookings in non-terminal states",
			},
			[]string{"status"},
		),
		ExpiredBookingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expired_bookings_total",
				Help: "Total number of bookings expired by the reaper",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.BookingCommandsTotal,
		m.SeatReservationsTotal,
		m.DistributedLockDuration,
		m.ActiveBookings,
		m.ExpiredBookingsTotal,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す（未初期化ならnil）
func Get() *Metrics {
	return defaultMetrics
}
