package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/session"
	"github.com/aspectron/kaspa-resolver/internal/view"
)

type fakeResolver struct {
	out view.Output
	ok  bool
	err error
	all []view.ConnectionView
}

func (f fakeResolver) Election(ctx context.Context, svc string, params pathparams.PathParams) (view.Output, bool, error) {
	return f.out, f.ok, f.err
}

func (f fakeResolver) AllViews() []view.ConnectionView {
	return f.all
}

type fakeConnectionView struct {
	uid, url, fqdn, service, protocol, encoding, tls, network, status, version string
	clients, peers, sid, capacity, cores, memory                              uint64
	delegates                                                                 []string
}

func (c fakeConnectionView) UIDString() string       { return c.uid }
func (c fakeConnectionView) Address() string         { return c.url }
func (c fakeConnectionView) FQDN() string            { return c.fqdn }
func (c fakeConnectionView) Service() string         { return c.service }
func (c fakeConnectionView) Protocol() string        { return c.protocol }
func (c fakeConnectionView) Encoding() string        { return c.encoding }
func (c fakeConnectionView) Tls() string             { return c.tls }
func (c fakeConnectionView) Network() string         { return c.network }
func (c fakeConnectionView) Status() string          { return c.status }
func (c fakeConnectionView) Clients() uint64         { return c.clients }
func (c fakeConnectionView) Peers() uint64           { return c.peers }
func (c fakeConnectionView) Version() string         { return c.version }
func (c fakeConnectionView) DelegateSystemID() uint64 { return c.sid }
func (c fakeConnectionView) Capacity() uint64        { return c.capacity }
func (c fakeConnectionView) Cores() uint64           { return c.cores }
func (c fakeConnectionView) Memory() uint64          { return c.memory }
func (c fakeConnectionView) DelegateChain() []string { return c.delegates }

func newSessions() *session.Sessions {
	return session.New(8, time.Hour)
}

func TestElectionReturns200WithHeadersAndBody(t *testing.T) {
	r := fakeResolver{out: view.Output{UID: "abc123", URL: "wss://node.example.com"}, ok: true}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/kaspa/mainnet/tls/wrpc/borsh")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate, proxy-revalidate, max-age=0", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "close", resp.Header.Get("Connection"))

	var out view.Output
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "abc123", out.UID)
	assert.Equal(t, "wss://node.example.com", out.URL)
}

func TestElectionReturns404WhenNoCandidate(t *testing.T) {
	r := fakeResolver{ok: false}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/kaspa/mainnet/tls/wrpc/borsh")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestElectionReturns404OnMalformedRoute(t *testing.T) {
	r := fakeResolver{}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/kaspa/mainnet")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestElectionReturns404OnUnknownTlsSegment(t *testing.T) {
	r := fakeResolver{ok: true}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/kaspa/mainnet/bogus/wrpc/borsh")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublicStatusReturnsAggregateDump(t *testing.T) {
	r := fakeResolver{all: []view.ConnectionView{
		fakeConnectionView{uid: "a", url: "wss://a", service: "kaspa", clients: 3},
		fakeConnectionView{uid: "b", url: "wss://b", service: "sparkle", peers: 5},
	}}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out []view.Public
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].UID)
	assert.Equal(t, uint64(3), out[0].Clients)
	assert.Equal(t, "b", out[1].UID)
	assert.Equal(t, uint64(5), out[1].Peers)
}

func TestPrivateStatusRequiresValidSession(t *testing.T) {
	r := fakeResolver{all: []view.ConnectionView{
		fakeConnectionView{uid: "a", url: "wss://a", fqdn: "a.example.com", version: "v1", cores: 4},
	}}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/status/private")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPrivateStatusReturnsRichProjectionForLiveSession(t *testing.T) {
	r := fakeResolver{all: []view.ConnectionView{
		fakeConnectionView{uid: "a", url: "wss://a", fqdn: "a.example.com", version: "v1", cores: 4},
	}}
	sessions := newSessions()
	sessions.Set("valid-key", session.NewSession())
	srv := httptest.NewServer(NewMux(r, sessions))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v2/status/private", nil)
	require.NoError(t, err)
	req.Header.Set("X-Session-Key", "valid-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out []view.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "a.example.com", out[0].FQDN)
	assert.Equal(t, "v1", out[0].Version)
	assert.Equal(t, uint64(4), out[0].Cores)
}

func TestHealthReturns200(t *testing.T) {
	r := fakeResolver{}
	srv := httptest.NewServer(NewMux(r, newSessions()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
