// Package rpctest provides a fake rpc.Client for deterministic tests of
// Connection and Monitor without a real wRPC/gRPC upstream.
package rpctest

import (
	"context"
	"errors"
	"sync"

	"github.com/aspectron/kaspa-resolver/internal/rpc"
	"github.com/aspectron/kaspa-resolver/internal/service"
)

// Client is a fully scriptable fake: tests set its fields through the
// Set* methods to drive Connection through its state machine, and push
// CtlEvents onto its multiplexer channel with Emit.
type Client struct {
	mu sync.Mutex

	svc service.Kind

	Caps       rpc.Caps
	CapsErr    error
	Synced     bool
	SyncErr    error
	Conns      rpc.Connections
	ConnsErr   error
	PingErr    error
	ConnectErr error

	ctl         chan rpc.CtlEvent
	connectN    int
	disconnectN int
}

func New(svc service.Kind) *Client {
	return &Client{svc: svc, ctl: make(chan rpc.CtlEvent, 16)}
}

func (c *Client) Service() service.Kind { return c.svc }

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connectN++
	err := c.ConnectErr
	c.mu.Unlock()
	return err
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.disconnectN++
	c.mu.Unlock()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PingErr
}

func (c *Client) GetCaps(ctx context.Context) (rpc.Caps, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Caps, c.CapsErr
}

func (c *Client) GetSync(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Synced, c.SyncErr
}

func (c *Client) GetActiveConnections(ctx context.Context) (rpc.Connections, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conns, c.ConnsErr
}

func (c *Client) Multiplexer() <-chan rpc.CtlEvent { return c.ctl }

// Emit pushes a control event onto the multiplexer, blocking if the
// buffer is full.
func (c *Client) Emit(kind rpc.CtlEventKind) {
	c.ctl <- rpc.CtlEvent{Kind: kind}
}

// SetCaps sets the Caps a subsequent GetCaps call will return.
func (c *Client) SetCaps(caps rpc.Caps) {
	c.mu.Lock()
	c.Caps = caps
	c.mu.Unlock()
}

// SetSynced sets the sync flag a subsequent GetSync call will return.
func (c *Client) SetSynced(synced bool) {
	c.mu.Lock()
	c.Synced = synced
	c.mu.Unlock()
}

// SetConnections sets the counts a subsequent GetActiveConnections call
// will return.
func (c *Client) SetConnections(clients, peers uint64) {
	c.mu.Lock()
	c.Conns = rpc.Connections{Clients: clients, Peers: peers}
	c.mu.Unlock()
}

// SetSyncErr forces GetSync to fail, exercising the CodeSync/CodeStatus
// recovery paths.
func (c *Client) SetSyncErr(err error) {
	c.mu.Lock()
	c.SyncErr = err
	c.mu.Unlock()
}

// ErrUnavailable is a convenience sentinel tests can assign to *Err
// fields without importing errors.New at each call site.
var ErrUnavailable = errors.New("rpctest: unavailable")
