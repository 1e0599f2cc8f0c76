// Package transport defines the closed set of wire transports a Node can
// speak and the ${var} template substitution used to expand their
// addresses.
package transport

// TlsKind distinguishes a concrete transport's TLS usage from the virtual
// "any" bucket used to aggregate election queries across both.
type TlsKind int

const (
	TlsNone TlsKind = iota
	TlsOn
	TlsAny
)

func TlsFromBool(b bool) TlsKind {
	if b {
		return TlsOn
	}
	return TlsNone
}

func (k TlsKind) String() string {
	switch k {
	case TlsOn:
		return "tls"
	case TlsAny:
		return "any"
	default:
		return "none"
	}
}

// ParseTlsKind maps a URL path segment ("tls", "none", "any") to a
// TlsKind.
func ParseTlsKind(s string) (TlsKind, bool) {
	switch s {
	case "tls":
		return TlsOn, true
	case "none":
		return TlsNone, true
	case "any":
		return TlsAny, true
	default:
		return 0, false
	}
}

// ProtocolKind is the wire protocol a TransportKind speaks.
type ProtocolKind int

const (
	ProtocolWrpc ProtocolKind = iota
	ProtocolGrpc
)

func (p ProtocolKind) String() string {
	if p == ProtocolGrpc {
		return "grpc"
	}
	return "wrpc"
}

// EncodingKind is the payload encoding a TransportKind speaks.
type EncodingKind int

const (
	EncodingBorsh EncodingKind = iota
	EncodingJson
	EncodingProtobuf
)

func (e EncodingKind) String() string {
	switch e {
	case EncodingJson:
		return "json"
	case EncodingProtobuf:
		return "protobuf"
	default:
		return "borsh"
	}
}

// ParseEncodingKind maps a URL path segment to an EncodingKind.
func ParseEncodingKind(s string) (EncodingKind, bool) {
	switch s {
	case "borsh":
		return EncodingBorsh, true
	case "json":
		return EncodingJson, true
	case "protobuf":
		return EncodingProtobuf, true
	default:
		return 0, false
	}
}

// Kind is the closed set of transports a Node can be reached over.
type Kind int

const (
	WrpcBorsh Kind = iota
	WrpcJson
	Grpc
)

func (k Kind) String() string {
	switch k {
	case WrpcJson:
		return "wrpc-json"
	case Grpc:
		return "grpc"
	default:
		return "wrpc-borsh"
	}
}

// Protocol reports the protocol a transport kind projects to; Encoding
// reports the encoding.
func (k Kind) Protocol() ProtocolKind {
	if k == Grpc {
		return ProtocolGrpc
	}
	return ProtocolWrpc
}

func (k Kind) Encoding() EncodingKind {
	switch k {
	case WrpcJson:
		return EncodingJson
	case Grpc:
		return EncodingProtobuf
	default:
		return EncodingBorsh
	}
}

// ParseKind maps a config `type` string to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "wrpc-borsh":
		return WrpcBorsh, true
	case "wrpc-json":
		return WrpcJson, true
	case "grpc":
		return Grpc, true
	default:
		return 0, false
	}
}

// Template is a reusable, config-declared transport definition keyed by
// dictionary name; it may apply to more than one Kind (the `type` field in
// TOML is a list).
type Template struct {
	Kinds    []Kind
	Tls      bool
	Template string
}

// Transport is a Template narrowed to one concrete Kind, attached to a Node.
type Transport struct {
	Kind     Kind
	Tls      bool
	Template string
}

// MakeAddress expands the transport's template with the standard variable
// set: ${service}, ${fqdn}, ${network}, ${protocol}, ${encoding}.
func (t Transport) MakeAddress(fqdn, service, network string) string {
	tpl := NewTpl(map[string]string{
		"service":  service,
		"fqdn":     fqdn,
		"network":  network,
		"protocol": t.Kind.Protocol().String(),
		"encoding": t.Kind.Encoding().String(),
	})
	return tpl.Render(t.Template)
}

// Dictionary maps a configured transport name to its Template.
type Dictionary map[string]Template

// Get looks up a transport Template by name. It does not narrow the
// Template to a single Kind; callers iterate its Kinds list.
func (d Dictionary) Get(name string) (Template, bool) {
	t, ok := d[name]
	return t, ok
}
