package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleToml = `
[transport.public]
type = ["wrpc-borsh", "wrpc-json"]
tls = true
template = "wss://${fqdn}/${protocol}/${encoding}/${network}"

[[group]]
fqdn = "*.example.com"
transports = ["public"]
services = ["kaspa"]

[group.network]
mainnet = ["n1", "n2"]

[[node]]
service = "sparkle"
network = "mainnet"
type = "wrpc-borsh"
tls = true
fqdn = "fixed.example.com"
address = "wss://fixed.example.com/sparkle"
`

func TestParseNodesExpandsGroupsAndInlinedNodes(t *testing.T) {
	nodes, err := ParseNodes(sampleToml, nil)
	require.NoError(t, err)

	// 2 ids * 2 transport kinds (group) + 1 inlined node.
	require.Len(t, nodes, 5)

	var inlined bool
	for _, n := range nodes {
		if n.FQDN == "fixed.example.com" {
			inlined = true
		}
	}
	assert.True(t, inlined)
}

func TestParseNodesRejectsDuplicateGroupFQDN(t *testing.T) {
	doc := `
[[group]]
fqdn = "*.example.com"
transports = ["public"]
services = ["kaspa"]
[group.network]
mainnet = ["n1"]

[[group]]
fqdn = "*.example.com"
transports = ["public"]
services = ["kaspa"]
[group.network]
mainnet = ["n2"]
`
	_, err := ParseNodes(doc, nil)
	require.Error(t, err)
}

func TestParseNodesSkipsDisabledEntries(t *testing.T) {
	doc := `
[[node]]
enable = false
service = "kaspa"
network = "mainnet"
type = "wrpc-borsh"
tls = true
fqdn = "disabled.example.com"
address = "wss://disabled.example.com"
`
	nodes, err := ParseNodes(doc, nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
