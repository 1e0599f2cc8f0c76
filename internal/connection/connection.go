// Package connection implements the per-node stateful monitor: it owns
// one RPC client, tracks liveness/sync/load, participates in delegate
// sharing, and notifies its Monitor when it connects, disconnects, or
// its online state toggles.
package connection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aspectron/kaspa-resolver/internal/delegate"
	"github.com/aspectron/kaspa-resolver/internal/logger"
	"github.com/aspectron/kaspa-resolver/internal/node"
	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/rerr"
	"github.com/aspectron/kaspa-resolver/internal/rpc"
)

// maxDelegateHops bounds the delegate-chain walk defensively; the chain
// is acyclic by construction (a newcomer only ever binds to an
// already-terminal delegate), but §9's design notes ask for a bounded
// walk rather than trusting that invariant blindly.
const maxDelegateHops = 1 << 16

// Scheduler is the Monitor-side hook a Connection calls whenever its
// observable state changes in a way that could affect election
// ordering. Kept narrow so this package never imports monitor.
type Scheduler interface {
	ScheduleSort(pathparams.PathParams)
}

// Connection is a per-Node background monitor parameterized over the
// concrete RPC adapter it drives.
type Connection[T rpc.Client] struct {
	node      *node.Node
	params    pathparams.PathParams
	client    T
	scheduler Scheduler
	registry  *delegate.Registry[*Connection[T]]
	sync      SyncSettings
	ttl       TtlSettings
	verbose   bool

	caps        atomic.Pointer[rpc.Caps]
	isConnected atomic.Bool
	isOnline    atomic.Bool
	isSynced    atomic.Bool
	clients     atomic.Uint64
	peers       atomic.Uint64
	delegate    atomic.Pointer[Connection[T]]

	shutdownReq chan struct{}
	shutdownAck chan struct{}
}

// New constructs a Connection for node n, driven by client, reporting
// state changes to scheduler and sharing registry with its siblings in
// the same Monitor.
func New[T rpc.Client](
	n *node.Node,
	client T,
	scheduler Scheduler,
	registry *delegate.Registry[*Connection[T]],
	sync SyncSettings,
	ttl TtlSettings,
	verbose bool,
) *Connection[T] {
	return &Connection[T]{
		node:        n,
		params:      n.Params,
		client:      client,
		scheduler:   scheduler,
		registry:    registry,
		sync:        sync,
		ttl:         ttl,
		verbose:     verbose,
		shutdownReq: make(chan struct{}),
		shutdownAck: make(chan struct{}),
	}
}

func (c *Connection[T]) Node() *node.Node              { return c.node }
func (c *Connection[T]) Params() pathparams.PathParams { return c.params }
func (c *Connection[T]) Address() string               { return c.node.Address }
func (c *Connection[T]) NetworkID() string             { return c.node.Network }

func (c *Connection[T]) IsConnected() bool { return c.isConnected.Load() }
func (c *Connection[T]) IsOnline() bool    { return c.isOnline.Load() }
func (c *Connection[T]) IsSynced() bool    { return c.isSynced.Load() }
func (c *Connection[T]) Clients() uint64   { return c.clients.Load() }
func (c *Connection[T]) Peers() uint64     { return c.peers.Load() }
func (c *Connection[T]) Sockets() uint64   { return c.Clients() + c.Peers() }

// Caps returns the most recently learned capabilities snapshot, or nil
// if none has been learned in the current connection epoch.
func (c *Connection[T]) Caps() *rpc.Caps { return c.caps.Load() }

// Load returns the delegate's client count as a ratio of its capacity,
// or -1 if capacity is unknown.
func (c *Connection[T]) Load() float64 {
	d := c.Delegate()
	caps := d.caps.Load()
	if caps == nil || caps.ClientCapacity == 0 {
		return -1
	}
	return float64(d.Clients()) / float64(caps.ClientCapacity)
}

// SystemID returns the learned system identifier, or 0 if Caps has not
// been learned yet.
func (c *Connection[T]) SystemID() uint64 {
	caps := c.caps.Load()
	if caps == nil {
		return 0
	}
	return caps.SystemID
}

// IsDelegate reports whether this Connection is itself the terminal
// delegate for its (system_id, network) pair.
func (c *Connection[T]) IsDelegate() bool {
	return c.delegate.Load() == nil
}

// Delegate walks the delegate chain to its terminal Connection. The
// walk is bounded by maxDelegateHops as a defensive measure against a
// cycle that should never occur by construction.
func (c *Connection[T]) Delegate() *Connection[T] {
	cur := c
	for i := 0; i < maxDelegateHops; i++ {
		next := cur.delegate.Load()
		if next == nil {
			return cur
		}
		cur = next
	}
	return cur
}

// BindDelegate sets this Connection's delegate pointer. A nil delegate
// means this Connection is itself the terminal delegate.
func (c *Connection[T]) BindDelegate(d *Connection[T]) {
	c.delegate.Store(d)
}

// ResolveDelegators returns the chain from this Connection's immediate
// delegate to the terminal delegate (exclusive of self), terminal last.
func (c *Connection[T]) ResolveDelegators() []*Connection[T] {
	var out []*Connection[T]
	cur := c
	for i := 0; i < maxDelegateHops; i++ {
		next := cur.delegate.Load()
		if next == nil {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// Score is the election sort key: the delegate's total socket count.
// Lower is better.
func (c *Connection[T]) Score() uint64 {
	return c.Delegate().Sockets()
}

// IsAvailable reports whether this Connection can be offered to a
// client: connected, its delegate online, and the delegate has spare
// client and file-descriptor capacity.
func (c *Connection[T]) IsAvailable() bool {
	if !c.IsConnected() {
		return false
	}
	d := c.Delegate()
	if !d.IsOnline() {
		return false
	}
	caps := d.caps.Load()
	if caps == nil {
		return false
	}
	clients, peers := d.Clients(), d.Peers()
	return clients < caps.ClientLimit && clients+peers < caps.FDLimit
}

// Status is the observable state string surfaced via the election and
// status JSON interfaces: delegator overrides online/syncing whenever
// this Connection has bound to a delegate.
func (c *Connection[T]) Status() string {
	if !c.IsConnected() {
		return "offline"
	}
	if !c.IsDelegate() {
		return "delegator"
	}
	if c.IsSynced() {
		return "online"
	}
	return "syncing"
}

// update notifies the owning Monitor that this Connection's bucket may
// need re-sorting.
func (c *Connection[T]) update() {
	c.scheduler.ScheduleSort(c.params)
}

// Start launches the Connection's background task.
func (c *Connection[T]) Start(ctx context.Context) {
	go func() {
		if err := c.task(ctx); err != nil {
			logger.With("connection").Error("task exited", "address", c.node.Address, "err", err)
		}
	}()
}

// Stop requests the background task shut down and blocks until it
// acknowledges, ensuring the RPC adapter is disconnected before return.
func (c *Connection[T]) Stop(ctx context.Context) error {
	select {
	case c.shutdownReq <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.shutdownAck:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection[T]) task(ctx context.Context) error {
	if err := c.client.Connect(ctx); err != nil {
		return err
	}

	pollPeriod := c.sync.Ping
	if c.IsDelegate() {
		pollPeriod = c.sync.Poll
	}
	if pollPeriod <= 0 {
		pollPeriod = time.Second
	}
	poll := time.NewTicker(pollPeriod)
	defer poll.Stop()

	ctl := c.client.Multiplexer()

	var ttl time.Duration
	var lastConnect time.Time
	hasLastConnect := false

	log := logger.With("connection")

	for {
		select {
		case <-poll.C:
			// Delegate status can change after the task starts (registry
			// or cross-encoding binding), so re-pick the period each tick.
			want := c.sync.Ping
			if c.IsDelegate() {
				want = c.sync.Poll
			}
			if want <= 0 {
				want = time.Second
			}
			if want != pollPeriod {
				pollPeriod = want
				poll.Reset(pollPeriod)
			}

			if c.ttl.Enable && hasLastConnect && time.Since(lastConnect) > ttl {
				hasLastConnect = false
				c.caps.Store(nil)
				if c.isConnected.Load() {
					_ = c.client.Disconnect(ctx)
					_ = c.client.Connect(ctx)
				}
				continue
			}

			if c.isConnected.Load() {
				previous := c.isOnline.Load()
				online := c.updateState(ctx) == nil
				c.isOnline.Store(online)
				if online != previous {
					if online {
						log.Info("online", "address", c.node.Address)
					} else {
						log.Warn("offline", "address", c.node.Address)
					}
					c.update()
				}
			}

		case ev, ok := <-ctl:
			if !ok {
				return fmt.Errorf("connection %s: multiplexer channel closed", c.node.Address)
			}
			switch ev.Kind {
			case rpc.CtlConnect:
				lastConnect = time.Now()
				hasLastConnect = true
				ttl = c.ttl.sample()
				c.isConnected.Store(true)
				c.caps.Store(nil)
				if c.updateState(ctx) == nil {
					c.isOnline.Store(true)
					c.update()
				} else {
					c.isOnline.Store(false)
				}
			case rpc.CtlDisconnect:
				c.isConnected.Store(false)
				c.isOnline.Store(false)
				hasLastConnect = false
				c.update()
				log.Warn("disconnected", "address", c.node.Address)
			}

		case <-c.shutdownReq:
			_ = c.client.Disconnect(ctx)
			c.isConnected.Store(false)
			c.isOnline.Store(false)
			c.Unbind()
			c.shutdownAck <- struct{}{}
			return nil

		case <-ctx.Done():
			_ = c.client.Disconnect(ctx)
			c.Unbind()
			return ctx.Err()
		}
	}
}

// updateState implements the per-epoch liveness/sync algorithm: a
// non-delegate only pings; a delegate learns Caps once per epoch
// (binding or becoming the delegate under the registry lock), then
// refreshes sync and, if synced, active connection counts.
func (c *Connection[T]) updateState(ctx context.Context) error {
	if !c.IsDelegate() {
		if err := c.client.Ping(ctx); err != nil {
			return rerr.Wrap(rerr.CodeRPC, rerr.SeverityWarning, err)
		}
		return nil
	}

	if c.caps.Load() == nil {
		caps, err := c.client.GetCaps(ctx)
		if err != nil {
			return rerr.Wrap(rerr.CodeRPC, rerr.SeverityError, err)
		}
		c.caps.Store(&caps)

		key := delegate.Key{SystemID: caps.SystemID, NetworkID: c.node.Network}
		existing, stored := c.registry.LoadOrStore(key, c)
		if stored {
			c.BindDelegate(nil)
		} else if existing != c {
			c.BindDelegate(existing)
		}
	}

	// Post-binding: if this Connection ended up bound to another
	// delegate (or is still awaiting terminal resolution), only ping.
	if !c.IsDelegate() {
		if err := c.client.Ping(ctx); err != nil {
			return rerr.Wrap(rerr.CodeRPC, rerr.SeverityWarning, err)
		}
		return nil
	}

	synced, err := c.client.GetSync(ctx)
	if err != nil {
		return rerr.Wrap(rerr.CodeStatus, rerr.SeverityError, err)
	}
	c.isSynced.Store(synced)
	if !synced {
		return rerr.ErrSync
	}

	conns, err := c.client.GetActiveConnections(ctx)
	if err != nil {
		return rerr.Wrap(rerr.CodeMetrics, rerr.SeverityError, err)
	}
	c.clients.Store(conns.Clients)
	c.peers.Store(conns.Peers)
	return nil
}

// Unbind removes this Connection's registry entry if it is the
// registered delegate for key, per Open Question OQ2 (option a):
// surviving bound peers elect a new delegate on their next Caps
// refresh, guaranteed since reconnect always clears Caps.
func (c *Connection[T]) Unbind() {
	caps := c.caps.Load()
	if caps == nil || !c.IsDelegate() {
		return
	}
	key := delegate.Key{SystemID: caps.SystemID, NetworkID: c.node.Network}
	c.registry.DeleteIfMatches(key, c)
}
