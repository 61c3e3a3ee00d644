package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AccountsCreated  prometheus.Counter
	Broadcasts       prometheus.Counter
	ResolveCacheHits prometheus.Counter
	ResolveCacheMiss prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_accounts_created_total",
			Help: "Total number of accounts registered",
		}),
		Broadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_account_broadcasts_total",
			Help: "Total number of account broadcast events emitted",
		}),
		ResolveCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_account_resolve_cache_hits_total",
			Help: "Total resolve lookups served from the redis cache",
		}),
		ResolveCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_account_resolve_cache_misses_total",
			Help: "Total resolve lookups that fell through to the store",
		}),
	}
}

func (m *Metrics) IncAccountsCreated() { m.AccountsCreated.Inc() }
func (m *Metrics) IncBroadcasts()      { m.Broadcasts.Inc() }
func (m *Metrics) IncCacheHit()        { m.ResolveCacheHits.Inc() }
func (m *Metrics) IncCacheMiss()       { m.ResolveCacheMiss.Inc() }
