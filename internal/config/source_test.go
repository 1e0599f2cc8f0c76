package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundledDoc = `
[[node]]
service = "kaspa"
network = "mainnet"
type = "wrpc-borsh"
tls = true
fqdn = "bundled.example.com"
address = "wss://bundled.example.com"
`

const userDoc = `
[[node]]
service = "kaspa"
network = "mainnet"
type = "wrpc-borsh"
tls = true
fqdn = "user.example.com"
address = "wss://user.example.com"
`

func TestPrecedenceSourceUsesUserFileOnceThenBundled(t *testing.T) {
	s := NewPrecedenceSource(bundledDoc, WithUserFile(userDoc))

	nodes, changed, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, nodes, 1)
	assert.Equal(t, "user.example.com", nodes[0].FQDN)

	// Second call: user file is spent, falls through to bundled default.
	nodes, changed, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, nodes, 1)
	assert.Equal(t, "bundled.example.com", nodes[0].FQDN)

	// Third call: bundled default already loaded once, no-op.
	nodes, changed, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, nodes)
}

func TestPrecedenceSourceNoUserOrAutoUpdateUsesBundledOnce(t *testing.T) {
	s := NewPrecedenceSource(bundledDoc)

	nodes, changed, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, nodes, 1)

	_, changed, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

// fakeGetter scripts the auto-update HTTP fetch without a real server.
type fakeGetter struct {
	calls int
	data  [][]byte
	err   error
}

func (f *fakeGetter) Get(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.data) {
		idx = len(f.data) - 1
	}
	return f.data[idx], nil
}

func TestPrecedenceSourceAutoUpdateFallsBackOnFirstFetchFailure(t *testing.T) {
	getter := &fakeGetter{err: errors.New("connection refused")}
	s := NewPrecedenceSource(bundledDoc, WithAutoUpdate("https://updates.example.com/bundle", getter, stubKeySource{}))

	nodes, changed, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, nodes, 1)
	assert.Equal(t, "bundled.example.com", nodes[0].FQDN)
}

func TestPrecedenceSourceAutoUpdateFailsAfterFirstLoad(t *testing.T) {
	getter := &fakeGetter{data: [][]byte{make([]byte, 32)}}
	s := NewPrecedenceSource(bundledDoc, WithAutoUpdate("https://updates.example.com/bundle", getter, stubKeySource{}))

	// First call: fetch succeeds but key source is the stub (always
	// errors), so auto-update falls back to bundled on this first load.
	_, changed, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	// Second call: the fetch itself fails, but this is no longer the
	// first load, so the error propagates instead of silently falling
	// back.
	getter.err = errors.New("network down")
	_, _, err = s.Load(context.Background())
	assert.Error(t, err)
}
