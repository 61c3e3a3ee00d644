// Package metrics provides observability for the issuance engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DropsConfigured prometheus.Counter
	RecordsMinted   prometheus.Counter
	MintFailures    *prometheus.CounterVec
	RevenueSettled  prometheus.Counter
	FeesRetained    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		DropsConfigured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_drops_configured_total",
			Help: "Total sequences configured with a drop record",
		}),
		RecordsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_records_minted_total",
			Help: "Total records minted through the engine",
		}),
		MintFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_mint_failures_total",
			Help: "Failed mint attempts by error code",
		}, []string{"code"}),
		RevenueSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_revenue_settled_total",
			Help: "Base units of revenue forwarded to recipients",
		}),
		FeesRetained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_fees_retained_total",
			Help: "Base units of primary sale fees retained by the engine",
		}),
	}
}

func (m *Metrics) IncDropsConfigured()             { m.DropsConfigured.Inc() }
func (m *Metrics) AddRecordsMinted(n int)          { m.RecordsMinted.Add(float64(n)) }
func (m *Metrics) IncMintFailure(code string)      { m.MintFailures.WithLabelValues(code).Inc() }
func (m *Metrics) AddRevenueSettled(amount uint64) { m.RevenueSettled.Add(float64(amount)) }
func (m *Metrics) AddFeesRetained(amount uint64)   { m.FeesRetained.Add(float64(amount)) }
