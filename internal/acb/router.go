package acb

import (
	"errors"
	"fmt"
	"strings"
)

// sensitivePrefixes are the case-insensitive key prefixes that route
// to the ORAM pool. Order doesn't matter; classify checks all of them.
var sensitivePrefixes = []string{
	"session_key:",
	"ephemeral:",
	"secret:",
	"credential:",
	"private:",
	"token:",
}

// ErrOramDeleteUnsupported is returned by Router.Delete for a key that
// classifies as sensitive: ORAMPool has no delete operation.
var ErrOramDeleteUnsupported = errors.New("acb: delete not supported for oram-routed keys")

// classify returns "oram" if key matches a sensitive prefix
// (case-insensitive), else "standard". Classification depends only on
// the key, never the value, and is stable for the process lifetime.
func classify(key string) string {
	lower := strings.ToLower(key)
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "oram"
		}
	}
	return "standard"
}

// Router classifies keys by prefix and dispatches store/retrieve to
// the ORAM pool or the Standard pool, aggregating routing metrics.
type Router struct {
	oramPool     *ORAMPool
	standardPool *StandardPool

	oramRoutes     int
	standardRoutes int
}

// NewRouter creates a Router over the given pools.
func NewRouter(oramPool *ORAMPool, standardPool *StandardPool) *Router {
	return &Router{oramPool: oramPool, standardPool: standardPool}
}

// StoreResult is Router.Store's return value: the chosen pool's
// metrics plus routing annotations.
type StoreResult struct {
	Metrics
	RoutedTo string `json:"routed_to"`
	Reason   string `json:"reason"`
}

// Store routes key to the ORAM pool if it matches a sensitive prefix,
// otherwise to the Standard pool, and annotates the result with the
// routing decision.
func (r *Router) Store(key string, value []byte) (StoreResult, error) {
	if classify(key) == "oram" {
		r.oramRoutes++
		m, err := r.oramPool.Store(key, value)
		if err != nil {
			return StoreResult{}, err
		}
		return StoreResult{Metrics: m, RoutedTo: "oram", Reason: "sensitive_prefix"}, nil
	}

	r.standardRoutes++
	m, err := r.standardPool.Store(key, value)
	if err != nil {
		return StoreResult{}, err
	}
	return StoreResult{Metrics: m, RoutedTo: "standard", Reason: "non_sensitive"}, nil
}

// RetrieveResult is Router.Retrieve's return value: the chosen pool's
// metrics plus the originating pool name.
type RetrieveResult struct {
	Metrics
	RoutedFrom string `json:"routed_from"`
}

// Retrieve routes key to the pool that would have stored it and
// returns its value (or a miss) plus routing annotations.
func (r *Router) Retrieve(key string) ([]byte, RetrieveResult, error) {
	pool := classify(key)
	if pool == "oram" {
		data, m, err := r.oramPool.Retrieve(key)
		if err != nil {
			return nil, RetrieveResult{}, err
		}
		return data, RetrieveResult{Metrics: m, RoutedFrom: "oram"}, nil
	}

	data, m, err := r.standardPool.Retrieve(key)
	if err != nil {
		return nil, RetrieveResult{}, err
	}
	return data, RetrieveResult{Metrics: m, RoutedFrom: "standard"}, nil
}

// Delete removes key from the pool it classifies into. Sensitive keys
// always fail with ErrOramDeleteUnsupported — the ORAM pool has no
// tombstone or real-access-on-delete mechanism.
func (r *Router) Delete(key string) (bool, error) {
	if classify(key) == "oram" {
		return false, ErrOramDeleteUnsupported
	}
	return r.standardPool.Delete(key), nil
}

// RoutingMetrics summarizes routing decisions across the process
// lifetime.
type RoutingMetrics struct {
	OramRoutes     int     `json:"oram_routes"`
	StandardRoutes int     `json:"standard_routes"`
	TotalRoutes    int     `json:"total_routes"`
	OramPercentage float64 `json:"oram_percentage"`
}

// AggregateMetrics is the full payload for a metrics request.
type AggregateMetrics struct {
	Routing      RoutingMetrics `json:"routing"`
	OramPool     PoolMetrics    `json:"oram_pool"`
	StandardPool PoolMetrics    `json:"standard_pool"`
}

// GetMetrics returns routing counters plus both pools' native metrics.
func (r *Router) GetMetrics() AggregateMetrics {
	total := r.oramRoutes + r.standardRoutes
	var pct float64
	if total > 0 {
		pct = float64(r.oramRoutes) / float64(total) * 100
	}

	return AggregateMetrics{
		Routing: RoutingMetrics{
			OramRoutes:     r.oramRoutes,
			StandardRoutes: r.standardRoutes,
			TotalRoutes:    total,
			OramPercentage: pct,
		},
		OramPool:     r.oramPool.GetMetrics(),
		StandardPool: r.standardPool.GetMetrics(),
	}
}

// Summary renders a human-readable security summary report.
func (r *Router) Summary() string {
	m := r.GetMetrics()
	return fmt.Sprintf(
		"ACB Security Summary:\n"+
			"=====================\n"+
			"ORAM-Protected Accesses: %d\n"+
			"Standard Accesses: %d\n"+
			"ORAM Usage: %.1f%%\n\n"+
			"ORAM Pool Status:\n"+
			"- Entries: %d\n"+
			"- Stash Size: %d\n"+
			"- Tree Height: %d\n\n"+
			"Standard Pool Status:\n"+
			"- Entries: %d\n",
		m.Routing.OramRoutes, m.Routing.StandardRoutes, m.Routing.OramPercentage,
		m.OramPool.Entries, m.OramPool.StashSize, m.OramPool.TreeHeight,
		m.StandardPool.Entries,
	)
}
