// Package monitor implements the per-service Monitor: it owns the
// Connection set for one service, buckets it by PathParams, schedules
// periodic re-sorts, and answers weighted election queries.
package monitor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aspectron/kaspa-resolver/internal/connection"
	"github.com/aspectron/kaspa-resolver/internal/delegate"
	"github.com/aspectron/kaspa-resolver/internal/logger"
	"github.com/aspectron/kaspa-resolver/internal/metrics"
	"github.com/aspectron/kaspa-resolver/internal/node"
	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/rpc"
	"github.com/aspectron/kaspa-resolver/internal/transport"
	"github.com/aspectron/kaspa-resolver/internal/view"
)

// ClientFactory constructs the concrete RPC adapter for one Node. Kept
// as a constructor function rather than a method on Node so the Monitor
// stays decoupled from any specific adapter package.
type ClientFactory[T rpc.Client] func(n *node.Node) (T, error)

const sortInterval = 300 * time.Millisecond

// Monitor owns every Connection for one service kind.
type Monitor[T rpc.Client] struct {
	name      string
	newClient ClientFactory[T]
	sync      connection.SyncSettings
	ttl       connection.TtlSettings
	verbose   bool
	registry  *delegate.Registry[*connection.Connection[T]]

	mu          sync.RWMutex
	connections map[pathparams.PathParams][]*connection.Connection[T]

	sorts map[pathparams.PathParams]*atomic.Bool

	shutdownReq chan struct{}
	shutdownAck chan struct{}
}

// New constructs a Monitor with a sort-flag preallocated for every
// PathParams enumerated by pathparams.IterTLSAny — scheduling a sort
// for any other key is a programming error (see DESIGN.md OQ1).
func New[T rpc.Client](name string, newClient ClientFactory[T], sync connection.SyncSettings, ttl connection.TtlSettings, verbose bool) *Monitor[T] {
	m := &Monitor[T]{
		name:        name,
		newClient:   newClient,
		sync:        sync,
		ttl:         ttl,
		verbose:     verbose,
		registry:    delegate.NewRegistry[*connection.Connection[T]](),
		connections: make(map[pathparams.PathParams][]*connection.Connection[T]),
		sorts:       make(map[pathparams.PathParams]*atomic.Bool),
		shutdownReq: make(chan struct{}),
		shutdownAck: make(chan struct{}),
	}
	for _, p := range pathparams.IterTLSAny() {
		m.sorts[p] = &atomic.Bool{}
	}
	return m
}

// ScheduleSort flags params and its tls=any mirror for re-sort on the
// next sort tick. Implements connection.Scheduler.
func (m *Monitor[T]) ScheduleSort(params pathparams.PathParams) {
	m.setFlag(params)
	if params.IsTlsStrict() {
		m.setFlag(params.WithTls(transport.TlsAny))
	}
}

func (m *Monitor[T]) setFlag(params pathparams.PathParams) {
	flag, ok := m.sorts[params]
	if !ok {
		panic(fmt.Sprintf("monitor: schedule_sort on unknown PathParams %v", params))
	}
	flag.Store(true)
}

// Connections returns a snapshot copy of the current bucket map.
func (m *Monitor[T]) Connections() map[pathparams.PathParams][]*connection.Connection[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[pathparams.PathParams][]*connection.Connection[T], len(m.connections))
	for k, v := range m.connections {
		cp := make([]*connection.Connection[T], len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// All returns every Connection across every strict bucket, flattened —
// the aggregate dump behind Resolver.All()/the `/status` surface. Only
// strict (non tls=any) buckets are walked since tls=any buckets mirror
// the same Connection pointers and would otherwise double-count them.
func (m *Monitor[T]) All() []*connection.Connection[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*connection.Connection[T]
	for params, list := range m.connections {
		if params.IsTlsStrict() {
			out = append(out, list...)
		}
	}
	return out
}

// UpdateNodes reconciles the Connection set against a fresh descriptor
// list belonging to this service: create/remove per strict bucket,
// mirror into tls=any, then cross-bind delegates across encodings
// sharing the same physical host.
func (m *Monitor[T]) UpdateNodes(ctx context.Context, nodes []*node.Node) error {
	current := m.Connections()
	next := make(map[pathparams.PathParams][]*connection.Connection[T], len(current))

	for _, params := range pathparams.IterTLSStrict() {
		var bucketNodes []*node.Node
		for _, n := range nodes {
			if n.Params == params {
				bucketNodes = append(bucketNodes, n)
			}
		}

		existing := current[params]

		var create []*node.Node
		for _, n := range bucketNodes {
			found := false
			for _, c := range existing {
				if c.Node().Equal(n) {
					found = true
					break
				}
			}
			if !found {
				create = append(create, n)
			}
		}

		var keep []*connection.Connection[T]
		for _, c := range existing {
			stillPresent := false
			for _, n := range bucketNodes {
				if c.Node().Equal(n) {
					stillPresent = true
					break
				}
			}
			if stillPresent {
				keep = append(keep, c)
			} else if err := c.Stop(ctx); err != nil {
				logger.With("monitor").Error("stop connection", "address", c.Address(), "err", err)
			}
		}

		for _, n := range create {
			client, err := m.newClient(n)
			if err != nil {
				return err
			}
			c := connection.New(n, client, m, m.registry, m.sync, m.ttl, m.verbose)
			c.Start(ctx)
			keep = append(keep, c)
		}

		next[params] = keep
	}

	// Mirror every strict-bucket Connection into the matching tls=any
	// bucket.
	for _, params := range pathparams.IterTLSStrict() {
		anyParams := params.WithTls(transport.TlsAny)
		next[anyParams] = append(next[anyParams], next[params]...)
	}

	// Cross-bind by physical host across encodings: wrpc-borsh is the
	// preferred aggregator; coexisting wrpc-json/grpc connections for
	// the same network_node_uid bind to it.
	crossBindByHost(next)

	m.mu.Lock()
	m.connections = next
	m.mu.Unlock()

	for params := range m.sorts {
		m.setFlag(params)
	}

	return nil
}

// crossBindByHost groups every strict-bucket Connection by its Node's
// NetworkNodeUID and binds non-borsh Connections to the borsh
// Connection sharing that host, letting cheaper encodings borrow the
// borsh delegate's sync/metrics work instead of running their own.
func crossBindByHost[T rpc.Client](buckets map[pathparams.PathParams][]*connection.Connection[T]) {
	byHost := make(map[uint64][]*connection.Connection[T])
	for params, list := range buckets {
		if !params.IsTlsStrict() {
			continue
		}
		for _, c := range list {
			byHost[c.Node().NetworkNodeUID] = append(byHost[c.Node().NetworkNodeUID], c)
		}
	}

	for _, group := range byHost {
		var borsh *connection.Connection[T]
		for _, c := range group {
			if c.Node().TransportKind == transport.WrpcBorsh {
				borsh = c
				break
			}
		}
		if borsh == nil {
			continue
		}
		for _, c := range group {
			if c != borsh && c.Node().TransportKind != transport.WrpcBorsh {
				c.BindDelegate(borsh)
			}
		}
	}
}

// ReportMetrics publishes per-network online-connection and
// delegate-owner counts to m, labeled with this Monitor's service name.
func (m *Monitor[T]) ReportMetrics(metricsInstance *metrics.Metrics) {
	online := make(map[string]int)
	delegates := make(map[string]int)
	for _, c := range m.All() {
		network := c.NetworkID()
		if c.IsOnline() {
			online[network]++
		}
		if c.IsDelegate() {
			delegates[network]++
		}
	}
	for network, count := range online {
		metricsInstance.SetConnectionsOnline(m.name, network, count)
	}
	for network, count := range delegates {
		metricsInstance.SetDelegateCount(m.name, network, count)
	}
}

// AllViews projects All() to the non-generic view.ConnectionView
// surface, letting Resolver aggregate across differently-parameterized
// Monitors without itself being generic.
func (m *Monitor[T]) AllViews() []view.ConnectionView {
	all := m.All()
	out := make([]view.ConnectionView, len(all))
	for i, c := range all {
		out[i] = c
	}
	return out
}

// Election picks one available delegate Connection from the bucket
// identified by params using a weighted random scheme: the
// lowest-scored candidate has weight n, the next n-1,
// down to 1.
func (m *Monitor[T]) Election(params pathparams.PathParams) (view.Output, bool) {
	m.mu.RLock()
	bucket := m.connections[params]
	m.mu.RUnlock()

	var candidates []*connection.Connection[T]
	for _, c := range bucket {
		if c.IsDelegate() && c.IsAvailable() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return view.Output{}, false
	}

	chosen := selectWeighted(candidates)
	return view.NewOutput(chosen), true
}

func selectWeighted[T rpc.Client](nodes []*connection.Connection[T]) *connection.Connection[T] {
	n := len(nodes)
	totalWeight := n * (n + 1) / 2
	r := rand.Intn(totalWeight)
	for i, c := range nodes {
		weight := n - i
		if r < weight {
			return c
		}
		r -= weight
	}
	return nodes[0]
}

// Start launches the sort task.
func (m *Monitor[T]) Start(ctx context.Context) {
	go m.task(ctx)
}

// Stop stops every Connection, then signals the Monitor's own task.
func (m *Monitor[T]) Stop(ctx context.Context) error {
	for _, c := range m.All() {
		if err := c.Stop(ctx); err != nil {
			return err
		}
	}
	select {
	case m.shutdownReq <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-m.shutdownAck:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor[T]) task(ctx context.Context) {
	ticker := time.NewTicker(sortInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runSorts()
		case <-m.shutdownReq:
			m.shutdownAck <- struct{}{}
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSorts sorts each flagged bucket into a freshly allocated slice and
// swaps it into the map under the write lock, rather than sorting the
// existing slice in place — Election and other readers copy the slice
// header under RLock and then range over it unlocked, so the backing
// array they hold must never be mutated after that copy.
func (m *Monitor[T]) runSorts() {
	for params, flag := range m.sorts {
		if !flag.CompareAndSwap(true, false) {
			continue
		}
		m.mu.Lock()
		list := m.connections[params]
		sorted := make([]*connection.Connection[T], len(list))
		copy(sorted, list)
		sortByScore(sorted)
		m.connections[params] = sorted
		m.mu.Unlock()
	}
}

func sortByScore[T rpc.Client](list []*connection.Connection[T]) {
	// insertion sort: buckets are small and this keeps the sort
	// stable, matching the original's sort_by_key semantics.
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j-1].Score() > list[j].Score(); j-- {
			list[j-1], list[j] = list[j], list[j-1]
		}
	}
}
