// Package metrics provides observability for the node graph module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	NodesCreated       prometheus.Counter
	OwnerTransfers     prometheus.Counter
	Broadcasts         prometheus.Counter
	NodeCacheHits      prometheus.Counter
	NodeCacheMisses    prometheus.Counter
	AuthorizationFails prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		NodesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_nodes_created_total",
			Help: "Total number of nodes created in the ownership forest",
		}),
		OwnerTransfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_node_owner_transfers_total",
			Help: "Total completed two-phase node owner transfers",
		}),
		Broadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_node_broadcasts_total",
			Help: "Total node broadcast events emitted",
		}),
		NodeCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_node_cache_hits_total",
			Help: "Node lookups served from the in-process read cache",
		}),
		NodeCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_node_cache_misses_total",
			Help: "Node lookups that fell through to the database",
		}),
		AuthorizationFails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_node_authorization_failures_total",
			Help: "Mutating node operations rejected by the authorization predicate",
		}),
	}
}

func (m *Metrics) IncNodesCreated()      { m.NodesCreated.Inc() }
func (m *Metrics) IncOwnerTransfers()    { m.OwnerTransfers.Inc() }
func (m *Metrics) IncBroadcasts()        { m.Broadcasts.Inc() }
func (m *Metrics) IncCacheHit()          { m.NodeCacheHits.Inc() }
func (m *Metrics) IncCacheMiss()         { m.NodeCacheMisses.Inc() }
func (m *Metrics) IncAuthorizationFail() { m.AuthorizationFails.Inc() }
