// Package rpc defines the capability interface the core uses to drive a
// single upstream RPC connection, opaque to the concrete wRPC/gRPC
// client library behind it.
package rpc

import (
	"context"

	"github.com/aspectron/kaspa-resolver/internal/service"
)

// FDMargin and SocketsPerCore are the constants used to derive a node's
// client capacity from its reported fd_limit and core
// count: capacity = min(fd_limit - FDMargin, cores * SocketsPerCore).
const (
	FDMargin       = 1024
	SocketsPerCore = 768
)

// Caps is the runtime snapshot learned from one get_caps() call, valid
// for the lifetime of one connection epoch.
type Caps struct {
	Version        string
	SystemID       uint64
	GitHash        string
	CPUCores       uint64
	TotalMemory    uint64
	FDLimit        uint64
	ClientLimit    uint64
	ClientCapacity uint64
}

// DeriveCapacity applies the client-capacity formula.
func DeriveCapacity(fdLimit, cores uint64) uint64 {
	margin := uint64(FDMargin)
	var byFD uint64
	if fdLimit > margin {
		byFD = fdLimit - margin
	}
	byCores := cores * SocketsPerCore
	if byFD < byCores {
		return byFD
	}
	return byCores
}

// CtlEventKind is the kind of control event a Client's multiplexer
// yields. These events are authoritative for is_connected transitions.
type CtlEventKind int

const (
	CtlConnect CtlEventKind = iota
	CtlDisconnect
)

type CtlEvent struct {
	Kind CtlEventKind
}

// Connections reports a host's current client and peer socket counts.
type Connections struct {
	Clients uint64
	Peers   uint64
}

// Client is the capability set every RPC adapter (kaspa, sparkle, ...)
// must implement. It is intentionally small: the core only ever calls
// these eight methods, never reaching into adapter internals.
type Client interface {
	// Service reports which Monitor this adapter kind belongs to.
	Service() service.Kind

	// Connect is non-blocking and retrying; it does not fail the caller
	// if the upstream is unreachable — connection progress surfaces
	// asynchronously through Multiplexer.
	Connect(ctx context.Context) error

	// Disconnect is idempotent.
	Disconnect(ctx context.Context) error

	// Ping is a cheap liveness probe.
	Ping(ctx context.Context) error

	// GetCaps returns the host's capabilities. Called once per
	// connection epoch, immediately after each successful (re)connect.
	GetCaps(ctx context.Context) (Caps, error)

	// GetSync reports whether the upstream considers itself synced.
	GetSync(ctx context.Context) (bool, error)

	// GetActiveConnections reports current client/peer socket counts.
	GetActiveConnections(ctx context.Context) (Connections, error)

	// Multiplexer exposes a channel of control events; Connect/Disconnect
	// events on this channel are authoritative for is_connected.
	Multiplexer() <-chan CtlEvent
}
