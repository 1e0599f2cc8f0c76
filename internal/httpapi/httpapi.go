// Package httpapi exposes the election JSON contract as a plain
// http.Handler. Routing here is deliberately minimal — no CORS, rate
// limiting, template rendering, or session *creation*, all of which
// belong to the excluded HTTP front end and sit in front of this
// handler in a real deployment: a bare `http.NewServeMux` wiring
// handlers directly, no router framework.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aspectron/kaspa-resolver/internal/logger"
	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/session"
	"github.com/aspectron/kaspa-resolver/internal/view"
)

// Resolver is the subset of *resolver.Resolver this handler depends on.
type Resolver interface {
	Election(ctx context.Context, svc string, params pathparams.PathParams) (view.Output, bool, error)
	AllViews() []view.ConnectionView
}

// NewMux builds the election handler tree:
// `/v2/{service}/{network}/{tls}/{protocol}/{encoding}`, the public
// `/v2/status` aggregate dump, the session-gated `/v2/status/private`
// dump, and `/health` for liveness probes. sessions entitles requests
// to the private dump; minting session keys (login/passphrase
// validation) is out of scope here and left to whatever front end
// populates sessions.
func NewMux(r Resolver, sessions *session.Sessions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/status", handlePublicStatus(r))
	mux.HandleFunc("/v2/status/private", handlePrivateStatus(r, sessions))
	mux.HandleFunc("/v2/", handleElection(r))
	mux.HandleFunc("/health", handleHealth)
	return mux
}

func setElectionHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, proxy-revalidate, max-age=0")
	w.Header().Set("Connection", "close")
}

// handleElection implements `GET /v2/{service}/{network}/{tls}/{protocol}/{encoding}`.
func handleElection(r Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		setElectionHeaders(w)

		parts := strings.Split(strings.Trim(strings.TrimPrefix(req.URL.Path, "/v2/"), "/"), "/")
		if len(parts) != 5 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		svc, network, tlsSeg, protocolSeg, encodingSeg := parts[0], parts[1], parts[2], parts[3], parts[4]

		params, ok := pathparams.FromRoute(tlsSeg, encodingSeg, network)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = protocolSeg // implied by the encoding/transport combination; kept for route symmetry

		out, ok, err := r.Election(req.Context(), svc, params)
		if err != nil {
			logger.With("httpapi").Error("election", "err", err)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.With("httpapi").Error("encode election response", "err", err)
		}
	}
}

// handlePublicStatus implements the unauthenticated aggregate dump,
// grounded on the original's public.rs json_handler: every connection's
// Public projection, unconditionally.
func handlePublicStatus(r Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		setElectionHeaders(w)
		views := r.AllViews()
		out := make([]view.Public, len(views))
		for i, v := range views {
			out[i] = view.NewPublic(v)
		}
		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.With("httpapi").Error("encode public status response", "err", err)
		}
	}
}

// handlePrivateStatus implements the session-gated aggregate dump,
// grounded on the original's status.rs json_handler: the richer Status
// projection, returned only once the `X-Session-Key` header names a
// live entry in sessions. A valid session is touched on every successful
// request, extending its lifetime.
func handlePrivateStatus(r Resolver, sessions *session.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		setElectionHeaders(w)

		sess, ok := sessions.Get(req.Header.Get("X-Session-Key"))
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sess.Touch()

		views := r.AllViews()
		out := make([]view.Status, len(views))
		for i, v := range views {
			out[i] = view.NewStatus(v)
		}
		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.With("httpapi").Error("encode private status response", "err", err)
		}
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
