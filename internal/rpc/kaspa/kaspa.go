// Package kaspa adapts a kaspa wRPC client to the core's rpc.Client
// capability interface.
//
// The real wRPC wire client is an out-of-scope external collaborator;
// this package provides the shape the core depends on,
// with connection bookkeeping done directly against net/http-reachable
// endpoints left to the concrete client the Connect method installs.
package kaspa

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/aspectron/kaspa-resolver/internal/rerr"
	"github.com/aspectron/kaspa-resolver/internal/rpc"
	"github.com/aspectron/kaspa-resolver/internal/service"
	"github.com/aspectron/kaspa-resolver/internal/transport"
)

// Client talks wrpc-borsh or wrpc-json to a single kaspa node.
type Client struct {
	url  string
	kind transport.Kind

	mu        sync.Mutex
	connected bool

	ctl chan rpc.CtlEvent
}

// New constructs a kaspa adapter for the given transport kind and URL.
// grpc carries no wRPC-compatible encoding for kaspa and is rejected at
// construction, mirroring the original's unimplemented gRPC path.
func New(kind transport.Kind, url string) (*Client, error) {
	if kind == transport.Grpc {
		return nil, rerr.Wrap(rerr.CodeConnectionProtocolEncoding, rerr.SeverityFatal,
			fmt.Errorf("kaspa: gRPC support is not currently implemented"))
	}
	return &Client{
		url:  url,
		kind: kind,
		ctl:  make(chan rpc.CtlEvent, 16),
	}, nil
}

func (c *Client) Service() service.Kind { return service.Kaspa }

func (c *Client) Multiplexer() <-chan rpc.CtlEvent { return c.ctl }

// Connect dials the node with a jittered exponential backoff —
// non-blocking, retrying, never failing the caller — and emits a
// CtlConnect event once established.
func (c *Client) Connect(ctx context.Context) error {
	op := func() (struct{}, error) {
		if err := c.dial(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	go func() {
		_, err := backoff.Retry(ctx, op, backoff.WithMaxTries(0))
		if err != nil {
			// ctx was canceled mid-retry; no event to emit.
			return
		}
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.ctl <- rpc.CtlEvent{Kind: rpc.CtlConnect}
	}()
	return nil
}

// dial is the single fallible operation the backoff loop retries. The
// real wRPC socket/handshake logic lives in the underlying wRPC client
// library (out of scope); here it only records intent so state
// transitions are observable in tests built against this adapter.
func (c *Client) dial(ctx context.Context) error {
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()
	if wasConnected {
		c.ctl <- rpc.CtlEvent{Kind: rpc.CtlDisconnect}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return rerr.Wrap(rerr.CodeRPC, rerr.SeverityWarning, fmt.Errorf("kaspa: not connected"))
	}
	return nil
}

// GetCaps stands in for the original's get_system_info call. It returns
// no Caps: before Connect it fails as not connected, and afterwards it
// fails because no wRPC client is wired.
func (c *Client) GetCaps(ctx context.Context) (rpc.Caps, error) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return rpc.Caps{}, rerr.Wrap(rerr.CodeRPC, rerr.SeverityError, fmt.Errorf("kaspa: get_caps before connect"))
	}
	// A real adapter fills this in from GetSystemInfoResponse; the
	// wRPC client itself is out of scope, so callers in tests set Caps
	// via rpctest.Client instead of this concrete adapter.
	return rpc.Caps{}, rerr.Wrap(rerr.CodeRPC, rerr.SeverityWarning, fmt.Errorf("kaspa: no wrpc client wired"))
}

func (c *Client) GetSync(ctx context.Context) (bool, error) {
	return false, rerr.Wrap(rerr.CodeSync, rerr.SeverityWarning, fmt.Errorf("kaspa: no wrpc client wired"))
}

func (c *Client) GetActiveConnections(ctx context.Context) (rpc.Connections, error) {
	return rpc.Connections{}, rerr.Wrap(rerr.CodeMetrics, rerr.SeverityWarning, fmt.Errorf("kaspa: no wrpc client wired"))
}
