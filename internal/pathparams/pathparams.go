// Package pathparams defines the election bucket key and the closed set
// of networks/transports the resolver iterates when preallocating
// per-bucket state.
package pathparams

import (
	"fmt"

	"github.com/aspectron/kaspa-resolver/internal/transport"
)

// Networks is the closed set of network ids the resolver currently knows
// about. Unlike the original, network ids here are free-form strings
// rather than a closed Rust enum, but the fleet still only ever iterates
// this fixed table when preallocating Monitor state.
var Networks = []string{"mainnet", "testnet-10", "testnet-11"}

// Transports lists the transport kinds a Monitor preallocates buckets
// for. grpc is intentionally absent: it has no compatible wRPC encoding
// and is rejected at Connection construction (rerr.ErrConnectionProtocolEncoding).
var Transports = []transport.Kind{transport.WrpcBorsh, transport.WrpcJson}

// PathParams is the election bucket key: (protocol, encoding, network, tls).
type PathParams struct {
	Protocol transport.ProtocolKind
	Encoding transport.EncodingKind
	Network  string
	Tls      transport.TlsKind
}

func New(kind transport.Kind, tls transport.TlsKind, network string) PathParams {
	return PathParams{
		Protocol: kind.Protocol(),
		Encoding: kind.Encoding(),
		Network:  network,
		Tls:      tls,
	}
}

// WithTls returns a copy of p with its Tls field replaced.
func (p PathParams) WithTls(tls transport.TlsKind) PathParams {
	p.Tls = tls
	return p
}

// IsTlsStrict reports whether p is a concrete (non-aggregate) TLS bucket.
func (p PathParams) IsTlsStrict() bool {
	return p.Tls == transport.TlsOn || p.Tls == transport.TlsNone
}

func (p PathParams) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.Tls, p.Protocol, p.Encoding, p.Network)
}

// IterTLSStrict yields every (transport, tls ∈ {tls,none}, network) triple.
func IterTLSStrict() []PathParams {
	var out []PathParams
	for _, network := range Networks {
		for _, kind := range Transports {
			out = append(out, New(kind, transport.TlsOn, network))
		}
		for _, kind := range Transports {
			out = append(out, New(kind, transport.TlsNone, network))
		}
	}
	return out
}

// FromRoute parses the tls, encoding and network segments of the
// election route into a PathParams. The route's protocol segment is not
// parsed: Protocol is always set to wrpc, whatever the encoding.
func FromRoute(tls, encoding, network string) (PathParams, bool) {
	tlsKind, ok := transport.ParseTlsKind(tls)
	if !ok {
		return PathParams{}, false
	}
	encodingKind, ok := transport.ParseEncodingKind(encoding)
	if !ok {
		return PathParams{}, false
	}
	return PathParams{
		Protocol: transport.ProtocolWrpc,
		Encoding: encodingKind,
		Network:  network,
		Tls:      tlsKind,
	}, true
}

// IterTLSAny yields the strict set plus the tls=any virtual mirror for
// every triple. Monitor preallocates its sort-flag table from this.
func IterTLSAny() []PathParams {
	var out []PathParams
	for _, network := range Networks {
		for _, kind := range Transports {
			out = append(out, New(kind, transport.TlsOn, network))
		}
		for _, kind := range Transports {
			out = append(out, New(kind, transport.TlsNone, network))
		}
		for _, kind := range Transports {
			out = append(out, New(kind, transport.TlsAny, network))
		}
	}
	return out
}
