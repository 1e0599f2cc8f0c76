package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspectron/kaspa-resolver/internal/connection"
	"github.com/aspectron/kaspa-resolver/internal/node"
	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/service"
	"github.com/aspectron/kaspa-resolver/internal/transport"
)

// fixedSource hands back a preset node list; loadErr/changed let tests
// drive Update's error/short-circuit paths directly.
type fixedSource struct {
	nodes   []*node.Node
	changed bool
	loadErr error
	calls   int
}

func (s *fixedSource) Load(ctx context.Context) ([]*node.Node, bool, error) {
	s.calls++
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	return s.nodes, s.changed, nil
}

func mkResolverNode(addr, fqdn, network string, svc service.Kind, kind transport.Kind) *node.Node {
	tr := transport.Transport{Kind: kind, Tls: true, Template: "wss://${fqdn}"}
	return node.New(svc, network, tr, fqdn, addr)
}

func TestUpdateDispatchesNodesByService(t *testing.T) {
	kaspaNode := mkResolverNode("wss://k1/borsh", "k1", "mainnet", service.Kaspa, transport.WrpcBorsh)
	sparkleNode := mkResolverNode("wss://s1/borsh", "s1", "mainnet", service.Sparkle, transport.WrpcBorsh)
	src := &fixedSource{nodes: []*node.Node{kaspaNode, sparkleNode}, changed: true}

	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)
	require.NoError(t, r.Update(context.Background()))

	kaspaBucket := r.kaspa.Connections()[kaspaNode.Params]
	require.Len(t, kaspaBucket, 1)
	assert.Equal(t, kaspaNode.Address, kaspaBucket[0].Address())

	sparkleBucket := r.sparkle.Connections()[sparkleNode.Params]
	require.Len(t, sparkleBucket, 1)
	assert.Equal(t, sparkleNode.Address, sparkleBucket[0].Address())
}

func TestUpdateSkipsDispatchWhenUnchanged(t *testing.T) {
	kaspaNode := mkResolverNode("wss://k1/borsh", "k1", "mainnet", service.Kaspa, transport.WrpcBorsh)
	src := &fixedSource{nodes: []*node.Node{kaspaNode}, changed: false}

	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)
	require.NoError(t, r.Update(context.Background()))

	assert.Empty(t, r.kaspa.Connections()[kaspaNode.Params])
}

func TestUpdateFirstFailureIsFatal(t *testing.T) {
	src := &fixedSource{loadErr: errors.New("network unreachable")}
	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)

	err := r.Update(context.Background())
	require.Error(t, err)
}

func TestUpdateSubsequentFailureKeepsPreviousConfig(t *testing.T) {
	kaspaNode := mkResolverNode("wss://k1/borsh", "k1", "mainnet", service.Kaspa, transport.WrpcBorsh)
	src := &fixedSource{nodes: []*node.Node{kaspaNode}, changed: true}
	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)

	require.NoError(t, r.Update(context.Background()))
	require.Len(t, r.kaspa.Connections()[kaspaNode.Params], 1)

	src.loadErr = errors.New("transient fetch failure")
	require.NoError(t, r.Update(context.Background()))
	assert.Len(t, r.kaspa.Connections()[kaspaNode.Params], 1, "previous configuration is retained")
}

func TestElectionDispatchesToNamedService(t *testing.T) {
	src := &fixedSource{changed: true}
	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)
	require.NoError(t, r.Update(context.Background()))

	params := pathparams.New(transport.WrpcBorsh, transport.TlsOn, "mainnet")

	_, ok, err := r.Election(context.Background(), "kaspa", params)
	require.NoError(t, err)
	assert.False(t, ok, "no connections configured yet")

	_, _, err = r.Election(context.Background(), "bogus-service", params)
	assert.Error(t, err)
}

func TestAllAggregatesBothServices(t *testing.T) {
	kaspaNode := mkResolverNode("wss://k1/borsh", "k1", "mainnet", service.Kaspa, transport.WrpcBorsh)
	sparkleNode := mkResolverNode("wss://s1/borsh", "s1", "mainnet", service.Sparkle, transport.WrpcBorsh)
	src := &fixedSource{nodes: []*node.Node{kaspaNode, sparkleNode}, changed: true}

	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)
	require.NoError(t, r.Update(context.Background()))

	all := r.All()
	require.Len(t, all, 2)

	urls := []string{all[0].URL, all[1].URL}
	assert.Contains(t, urls, kaspaNode.Address)
	assert.Contains(t, urls, sparkleNode.Address)
}

func TestAllViewsExposesConnectionViewAcrossBothServices(t *testing.T) {
	kaspaNode := mkResolverNode("wss://k1/borsh", "k1", "mainnet", service.Kaspa, transport.WrpcBorsh)
	sparkleNode := mkResolverNode("wss://s1/borsh", "s1", "mainnet", service.Sparkle, transport.WrpcBorsh)
	src := &fixedSource{nodes: []*node.Node{kaspaNode, sparkleNode}, changed: true}

	r := New(src, time.Hour, connection.SyncSettings{Poll: time.Hour}, connection.TtlSettings{}, false)
	require.NoError(t, r.Update(context.Background()))

	views := r.AllViews()
	require.Len(t, views, 2)

	services := []string{views[0].Service(), views[1].Service()}
	assert.Contains(t, services, "kaspa")
	assert.Contains(t, services, "sparkle")
}
