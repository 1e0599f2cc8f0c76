// Package view defines the JSON projections returned by the resolver's
// HTTP surfaces: the minimal election Output, and the richer Status
// used by the (session-gated, mostly out-of-scope) status UI.
package view

import "fmt"

// ConnectionView is the read-only projection surface a connection.Connection
// exposes, independent of which RPC client type it is parameterized over.
type ConnectionView interface {
	UIDString() string
	Address() string
	FQDN() string
	Service() string
	Protocol() string
	Encoding() string
	Tls() string
	Network() string
	Status() string
	Clients() uint64
	Peers() uint64
	Version() string
	DelegateSystemID() uint64
	Capacity() uint64
	Cores() uint64
	Memory() uint64
	DelegateChain() []string
}

// Output is the minimal election response: a `{uid, url}` JSON object.
type Output struct {
	UID string `json:"uid"`
	URL string `json:"url"`
}

func NewOutput(c ConnectionView) Output {
	return Output{UID: c.UIDString(), URL: c.Address()}
}

// Public is the unauthenticated status projection: no fqdn, no
// delegate chain, grounded on the original's public.rs handler shape.
type Public struct {
	UID      string `json:"uid"`
	URL      string `json:"url"`
	Service  string `json:"service"`
	Protocol string `json:"protocol"`
	Encoding string `json:"encoding"`
	Tls      string `json:"tls"`
	Network  string `json:"network"`
	Status   string `json:"status"`
	Clients  uint64 `json:"clients"`
	Peers    uint64 `json:"peers"`
}

func NewPublic(c ConnectionView) Public {
	return Public{
		UID:      c.UIDString(),
		URL:      c.Address(),
		Service:  c.Service(),
		Protocol: c.Protocol(),
		Encoding: c.Encoding(),
		Tls:      c.Tls(),
		Network:  c.Network(),
		Status:   c.Status(),
		Clients:  c.Clients(),
		Peers:    c.Peers(),
	}
}

// Status is the richer, session-gated projection: adds fqdn, version,
// system id, resource usage, and the delegate chain. Grounded on the
// original's status.rs Status struct.
type Status struct {
	Version   string   `json:"version"`
	SystemID  string   `json:"sid"`
	UID       string   `json:"uid"`
	URL       string   `json:"url"`
	FQDN      string   `json:"fqdn"`
	Service   string   `json:"service"`
	Protocol  string   `json:"protocol"`
	Encoding  string   `json:"encoding"`
	Tls       string   `json:"encryption"`
	Network   string   `json:"network"`
	Cores     uint64   `json:"cores"`
	Memory    uint64   `json:"memory"`
	Status    string   `json:"status"`
	Peers     uint64   `json:"peers"`
	Clients   uint64   `json:"clients"`
	Capacity  uint64   `json:"capacity"`
	Delegates []string `json:"delegates,omitempty"`
}

func NewStatus(c ConnectionView) Status {
	return Status{
		Version:   c.Version(),
		SystemID:  fmt.Sprintf("%016x", c.DelegateSystemID()),
		UID:       c.UIDString(),
		URL:       c.Address(),
		FQDN:      c.FQDN(),
		Service:   c.Service(),
		Protocol:  c.Protocol(),
		Encoding:  c.Encoding(),
		Tls:       c.Tls(),
		Network:   c.Network(),
		Cores:     c.Cores(),
		Memory:    c.Memory(),
		Status:    c.Status(),
		Peers:     c.Peers(),
		Clients:   c.Clients(),
		Capacity:  c.Capacity(),
		Delegates: c.DelegateChain(),
	}
}
