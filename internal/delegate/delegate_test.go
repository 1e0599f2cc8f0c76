package delegate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadOrStoreFirstCallerBecomesDelegate(t *testing.T) {
	r := NewRegistry[string]()
	key := Key{SystemID: 0x42, NetworkID: "mainnet"}

	got, stored := r.LoadOrStore(key, "connection-a")
	assert.True(t, stored)
	assert.Equal(t, "connection-a", got)

	got, stored = r.LoadOrStore(key, "connection-b")
	assert.False(t, stored)
	assert.Equal(t, "connection-a", got)
}

func TestDeleteIfMatches(t *testing.T) {
	r := NewRegistry[string]()
	key := Key{SystemID: 1, NetworkID: "mainnet"}
	r.LoadOrStore(key, "delegate")

	assert.False(t, r.DeleteIfMatches(key, "someone-else"))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.DeleteIfMatches(key, "delegate"))
	assert.Equal(t, 0, r.Len())

	_, ok := r.Lookup(key)
	assert.False(t, ok)
}

func TestKeyString(t *testing.T) {
	k := Key{SystemID: 0xdeadbeef, NetworkID: "testnet-10"}
	assert.Equal(t, "00000000deadbeef:testnet-10", k.String())
}
