// Package metrics exposes Prometheus counters for the trading loop. The
// listener is optional; with no address configured nothing is served and the
// collectors are plain in-process counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kstrade_orders_placed_total",
		Help: "Orders submitted to the broker.",
	}, []string{"side", "strategy"})

	Fills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kstrade_fills_total",
		Help: "Orders confirmed filled.",
	}, []string{"side"})

	Exits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kstrade_exits_total",
		Help: "Exit rules triggered, by reason.",
	}, []string{"reason"})

	OrdersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kstrade_orders_dropped_total",
		Help: "Tracked orders dropped without a full fill, by cause.",
	}, []string{"cause"})

	APIErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kstrade_broker_errors_total",
		Help: "Broker API calls that returned an error.",
	})

	PendingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kstrade_pending_orders",
		Help: "Limit orders currently awaiting execution.",
	})

	HoldingsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kstrade_holdings",
		Help: "Open positions reported by the broker.",
	})

	AvailableCash = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kstrade_available_cash_krw",
		Help: "Orderable cash balance.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kstrade_cycle_duration_seconds",
		Help:    "Wall time of one full trading cycle.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Serve starts the /metrics listener in the background. Errors are logged,
// not fatal; trading continues without metrics.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener up")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics listener failed")
		}
	}()
}
