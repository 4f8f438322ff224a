package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics records order lifecycle activity and fee volume.
type MarketMetrics struct {
	OrdersAdded    prometheus.Counter
	OrdersCanceled prometheus.Counter
	OrdersMatched  prometheus.Counter
	FeeVolume      prometheus.Counter
	Withdrawals    prometheus.Counter
	RPCRequests    *prometheus.CounterVec
	RPCLatency     *prometheus.HistogramVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Metrics returns the lazily-initialised metrics registry shared by the RPC
// server and the node wiring.
func Metrics() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			OrdersAdded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "orders_added_total",
				Help:      "Total sell orders escrowed by the marketplace.",
			}),
			OrdersCanceled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "orders_canceled_total",
				Help:      "Total orders canceled by their sellers.",
			}),
			OrdersMatched: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "orders_matched_total",
				Help:      "Total orders settled against a buyer.",
			}),
			FeeVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "fee_volume_units",
				Help:      "Cumulative fee units routed to the treasury.",
			}),
			Withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reserve",
				Name:      "withdrawals_total",
				Help:      "Total successful treasury withdrawals.",
			}),
			RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "market",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			marketRegistry.OrdersAdded,
			marketRegistry.OrdersCanceled,
			marketRegistry.OrdersMatched,
			marketRegistry.FeeVolume,
			marketRegistry.Withdrawals,
			marketRegistry.RPCRequests,
			marketRegistry.RPCLatency,
		)
	})
	return marketRegistry
}

// ObserveFee adds the fee amount to the fee volume counter. Values beyond
// float64 precision are clamped rather than dropped.
func (m *MarketMetrics) ObserveFee(fee *big.Int) {
	if m == nil || fee == nil || fee.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(fee).Float64()
	if value > 0 {
		m.FeeVolume.Add(value)
	}
}
