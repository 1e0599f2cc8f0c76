package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindProjections(t *testing.T) {
	assert.Equal(t, ProtocolWrpc, WrpcBorsh.Protocol())
	assert.Equal(t, EncodingBorsh, WrpcBorsh.Encoding())
	assert.Equal(t, ProtocolWrpc, WrpcJson.Protocol())
	assert.Equal(t, EncodingJson, WrpcJson.Encoding())
	assert.Equal(t, ProtocolGrpc, Grpc.Protocol())
	assert.Equal(t, EncodingProtobuf, Grpc.Encoding())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("wrpc-json")
	assert.True(t, ok)
	assert.Equal(t, WrpcJson, k)

	_, ok = ParseKind("nonsense")
	assert.False(t, ok)
}

func TestTplRenderSubstitutesKnownVariables(t *testing.T) {
	tpl := NewTpl(map[string]string{
		"service": "kaspa",
		"network": "mainnet",
	})
	out := tpl.Render("wss://${fqdn}.example.com/${service}/${network}")
	assert.Equal(t, "wss://${fqdn}.example.com/kaspa/mainnet", out)
}

func TestTplRenderLeavesUnknownVariablesInPlace(t *testing.T) {
	tpl := NewTpl(nil)
	out := tpl.Render("${unset}")
	assert.Equal(t, "${unset}", out)
}

func TestMakeAddress(t *testing.T) {
	tr := Transport{Kind: WrpcBorsh, Tls: true, Template: "wss://${fqdn}/${service}/${network}/${protocol}/${encoding}"}
	addr := tr.MakeAddress("node-1.example.com", "kaspa", "mainnet")
	assert.Equal(t, "wss://node-1.example.com/kaspa/mainnet/wrpc/borsh", addr)
}
