// Package resolver implements the top-level coordinator: it owns one
// Monitor per service, drives the periodic configuration update loop,
// and answers election queries by dispatching to the Monitor named in
// the request.
package resolver

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aspectron/kaspa-resolver/internal/connection"
	"github.com/aspectron/kaspa-resolver/internal/logger"
	"github.com/aspectron/kaspa-resolver/internal/metrics"
	"github.com/aspectron/kaspa-resolver/internal/monitor"
	"github.com/aspectron/kaspa-resolver/internal/node"
	"github.com/aspectron/kaspa-resolver/internal/pathparams"
	"github.com/aspectron/kaspa-resolver/internal/rerr"
	"github.com/aspectron/kaspa-resolver/internal/rpc/kaspa"
	"github.com/aspectron/kaspa-resolver/internal/rpc/sparkle"
	"github.com/aspectron/kaspa-resolver/internal/service"
	"github.com/aspectron/kaspa-resolver/internal/view"
)

var tracer = otel.Tracer("github.com/aspectron/kaspa-resolver/internal/resolver")

// Source produces the authoritative node list for one update tick. It
// encapsulates a three-way precedence (user file once / auto-update
// with hash short-circuit and first-update fallback / bundled default)
// — that decision tree belongs to whatever concrete
// Source internal/config constructs; the Resolver only needs to know
// whether the list changed and whether the attempt failed.
type Source interface {
	// Load returns the current node list. changed is false when an
	// auto-update source's bundle hash is unchanged since the last
	// call, telling the Resolver to skip dispatch entirely. err is
	// non-nil only when no node list could be produced at all.
	Load(ctx context.Context) (nodes []*node.Node, changed bool, err error)
}

// Resolver owns the kaspa and sparkle Monitors plus the update loop
// that keeps both in sync with Source. The service set is a closed
// two-element set, so no further generic abstraction
// over "N services" is needed here.
type Resolver struct {
	source Source

	kaspa   *monitor.Monitor[*kaspa.Client]
	sparkle *monitor.Monitor[*sparkle.Client]

	updateInterval time.Duration
	firstUpdate    bool

	shutdownReq chan struct{}
	shutdownAck chan struct{}
}

func kaspaFactory(n *node.Node) (*kaspa.Client, error) {
	return kaspa.New(n.TransportKind, n.Address)
}

func sparkleFactory(n *node.Node) (*sparkle.Client, error) {
	return sparkle.New(n.TransportKind, n.Address)
}

// New constructs a Resolver. sync/ttl/verbose are shared across both
// Monitors, matching the original's single global [sync]/[ttl] config
// section.
func New(source Source, updateInterval time.Duration, sync connection.SyncSettings, ttl connection.TtlSettings, verbose bool) *Resolver {
	return &Resolver{
		source:         source,
		kaspa:          monitor.New("kaspa", kaspaFactory, sync, ttl, verbose),
		sparkle:        monitor.New("sparkle", sparkleFactory, sync, ttl, verbose),
		updateInterval: updateInterval,
		firstUpdate:    true,
		shutdownReq:    make(chan struct{}),
		shutdownAck:    make(chan struct{}),
	}
}

// Start performs the first (blocking, fatal-on-error) configuration
// update and launches the periodic update loop and both Monitors' sort
// tasks.
func (r *Resolver) Start(ctx context.Context) error {
	r.kaspa.Start(ctx)
	r.sparkle.Start(ctx)

	if err := r.Update(ctx); err != nil {
		return err
	}

	go r.task(ctx)
	return nil
}

// Stop stops the update loop, then stops sparkle before kaspa, mirroring
// the original's shutdown ordering.
func (r *Resolver) Stop(ctx context.Context) error {
	select {
	case r.shutdownReq <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-r.shutdownAck:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := r.sparkle.Stop(ctx); err != nil {
		return err
	}
	return r.kaspa.Stop(ctx)
}

func (r *Resolver) task(ctx context.Context) {
	ticker := time.NewTicker(r.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Update(ctx); err != nil {
				logger.With("resolver").Error("update", "err", err)
			}
			r.kaspa.ReportMetrics(metrics.Get())
			r.sparkle.ReportMetrics(metrics.Get())
		case <-r.shutdownReq:
			r.shutdownAck <- struct{}{}
			return
		case <-ctx.Done():
			return
		}
	}
}

// Update fetches the current node list from Source and dispatches it to
// the owning Monitor by service. A Source error is fatal only on the
// very first update (no usable configuration at all); afterward
// it is logged and the previous configuration is kept in place.
func (r *Resolver) Update(ctx context.Context) error {
	nodes, changed, err := r.source.Load(ctx)
	if err != nil {
		if r.firstUpdate {
			return rerr.Wrap(rerr.CodeLocalConfigNotFound, rerr.SeverityFatal, err)
		}
		logger.With("resolver").Error("config source", "err", err)
		return nil
	}
	r.firstUpdate = false
	if !changed {
		return nil
	}

	var kaspaNodes, sparkleNodes []*node.Node
	for _, n := range nodes {
		switch n.Service {
		case service.Kaspa:
			kaspaNodes = append(kaspaNodes, n)
		case service.Sparkle:
			sparkleNodes = append(sparkleNodes, n)
		default:
			logger.With("resolver").Warn("dangling node entry", "address", n.Address, "service", n.Service)
		}
	}

	if err := r.kaspa.UpdateNodes(ctx, kaspaNodes); err != nil {
		return err
	}
	return r.sparkle.UpdateNodes(ctx, sparkleNodes)
}

// Election dispatches a weighted election query to the named service's
// Monitor. svc must be "kaspa" or "sparkle".
func (r *Resolver) Election(ctx context.Context, svc string, params pathparams.PathParams) (view.Output, bool, error) {
	_, span := tracer.Start(ctx, "resolver.election", trace.WithAttributes(
		attribute.String("service", svc),
		attribute.String("network", params.Network),
	))
	defer span.End()

	kind, ok := service.Parse(svc)
	if !ok {
		return view.Output{}, false, fmt.Errorf("resolver: unknown service %q", svc)
	}

	switch kind {
	case service.Kaspa:
		out, ok := r.kaspa.Election(params)
		metrics.Get().RecordElection(svc, ok)
		return out, ok, nil
	default:
		out, ok := r.sparkle.Election(params)
		metrics.Get().RecordElection(svc, ok)
		return out, ok, nil
	}
}

// All returns every connection's minimal Output projection across both
// services, mirroring the original's get_status_all_nodes aggregate
// dump.
func (r *Resolver) All() []view.Output {
	views := r.AllViews()
	out := make([]view.Output, len(views))
	for i, v := range views {
		out[i] = view.NewOutput(v)
	}
	return out
}

// AllViews returns the raw ConnectionView projection across both
// services, letting callers choose their own view (Output/Public/
// Status) instead of being locked into Output.
func (r *Resolver) AllViews() []view.ConnectionView {
	return append(r.kaspa.AllViews(), r.sparkle.AllViews()...)
}
