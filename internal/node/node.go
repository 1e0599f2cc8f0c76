// Package node holds the immutable Node descriptor and the group
// expansion logic that turns a wildcard TOML group into concrete Nodes.
package node

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/service"
	"github.com/aspectron/kaspa-resolver/internal/transport"
)

// Node is an immutable descriptor for one upstream endpoint. It is
// constructed once, from either an inline `[[node]]` entry or a group
// expansion, and is never mutated afterward; Connection identity and
// bucket membership are both pure functions of its fields.
type Node struct {
	UID            uint64
	Service        service.Kind
	FQDN           string
	Address        string
	TransportKind  transport.Kind
	Tls            bool
	Network        string
	Params         pathparams.PathParams
	NetworkNodeUID uint64
}

// New builds a Node, computing UID and NetworkNodeUID from address and
// (fqdn, network, tls) respectively, mirroring the original's xxh3_64
// usage with xxhash (a 64-bit, non-cryptographic hash in the same
// family).
func New(svc service.Kind, network string, t transport.Transport, fqdn, address string) *Node {
	uid := xxhash.Sum64String(address)
	networkNodeUID := xxhash.Sum64String(fmt.Sprintf("%s%s%t", fqdn, network, t.Tls))

	return &Node{
		UID:            uid,
		Service:        svc,
		FQDN:           fqdn,
		Address:        address,
		TransportKind:  t.Kind,
		Tls:            t.Tls,
		Network:        network,
		Params:         pathparams.New(t.Kind, transport.TlsFromBool(t.Tls), network),
		NetworkNodeUID: networkNodeUID,
	}
}

// UIDString renders UID as the lowercase hex string used in election
// responses.
func (n *Node) UIDString() string {
	return fmt.Sprintf("%x", n.UID)
}

func (n *Node) String() string {
	return n.Address
}

// Equal compares nodes by address, matching the original's
// PartialEq (two entries are the same Node iff they resolve to the same
// endpoint URL).
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Address == other.Address
}

// Group is a wildcard template that expands into one Node per
// (service, network id, transport, id) combination.
type Group struct {
	Enable     *bool
	FQDN       string // contains '*'
	Transports []string
	Services   []service.Kind
	Network    map[string][]string // network id -> [ids]
}

func (g Group) enabled() bool {
	return g.Enable == nil || *g.Enable
}

// ExpandGroup performs the Cartesian-product expansion over
// service × network × transport × id, substituting '*' in
// the FQDN template with the lowercased id and instantiating the
// address from the transport's template. Groups missing a '*' in their
// FQDN are configuration errors, as are transport names absent from the
// dictionary — both are logged and skipped rather than failing the
// whole load, mirroring the original's per-item recoverable-error policy.
func ExpandGroup(g Group, dict transport.Dictionary, logf func(format string, args ...any)) []*Node {
	if !g.enabled() {
		return nil
	}
	if !strings.Contains(g.FQDN, "*") {
		if logf != nil {
			logf("invalid group FQDN: %s", g.FQDN)
		}
		return nil
	}

	var out []*Node
	for _, svc := range g.Services {
		for networkID, ids := range g.Network {
			for _, transportName := range g.Transports {
				tmpl, ok := dict.Get(transportName)
				if !ok {
					if logf != nil {
						logf("unknown transport: %s", transportName)
					}
					continue
				}
				for _, id := range ids {
					fqdn := strings.ReplaceAll(g.FQDN, "*", strings.ToLower(id))
					for _, kind := range tmpl.Kinds {
						t := transport.Transport{Kind: kind, Tls: tmpl.Tls, Template: tmpl.Template}
						address := t.MakeAddress(fqdn, svc.String(), networkID)
						out = append(out, New(svc, networkID, t, fqdn, address))
					}
				}
			}
		}
	}
	return out
}
