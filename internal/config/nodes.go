package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/aspectron/kaspa-resolver/internal/node"
	"github.com/aspectron/kaspa-resolver/internal/rerr"
	"github.com/aspectron/kaspa-resolver/internal/service"
	"github.com/aspectron/kaspa-resolver/internal/transport"
)

// transportEntry is one `[transport.<name>]` dictionary entry.
type transportEntry struct {
	Type     []string `koanf:"type"`
	Tls      bool     `koanf:"tls"`
	Template string   `koanf:"template"`
}

// groupEntry is one `[[group]]` wildcard definition.
type groupEntry struct {
	Enable     *bool               `koanf:"enable"`
	FQDN       string              `koanf:"fqdn"`
	Transports []string            `koanf:"transports"`
	Services   []string            `koanf:"services"`
	Network    map[string][]string `koanf:"network"`
}

// nodeEntry is one inlined `[[node]]` entry: a pre-expanded variant that
// skips group expansion entirely.
type nodeEntry struct {
	Enable  *bool  `koanf:"enable"`
	Service string `koanf:"service"`
	Network string `koanf:"network"`
	Type    string `koanf:"type"`
	Tls     bool   `koanf:"tls"`
	FQDN    string `koanf:"fqdn"`
	Address string `koanf:"address"`
}

func (n nodeEntry) enabled() bool {
	return n.Enable == nil || *n.Enable
}

func (g groupEntry) enabled() bool {
	return g.Enable == nil || *g.Enable
}

// nodeFile is the subset of the TOML schema ParseNodes consumes:
// `[transport.*]`, `[[group]]`, `[[node]]`.
type nodeFile struct {
	Transport map[string]transportEntry `koanf:"transport"`
	Group     []groupEntry              `koanf:"group"`
	Node      []nodeEntry               `koanf:"node"`
}

func buildDictionary(entries map[string]transportEntry) (transport.Dictionary, error) {
	dict := make(transport.Dictionary, len(entries))
	for name, entry := range entries {
		kinds := make([]transport.Kind, 0, len(entry.Type))
		for _, s := range entry.Type {
			kind, ok := transport.ParseKind(s)
			if !ok {
				return nil, rerr.Config("unknown transport kind %q in transport %q", s, name)
			}
			kinds = append(kinds, kind)
		}
		dict[name] = transport.Template{Kinds: kinds, Tls: entry.Tls, Template: entry.Template}
	}
	return dict, nil
}

// ParseNodes parses a TOML document into the node list the resolver
// dispatches to its Monitors, mirroring the original's
// Config::try_parse: inlined `[[node]]` entries first, then every
// enabled `[[group]]` expanded via node.ExpandGroup. A duplicate group
// FQDN is a fatal CodeConfig error. A group with an invalid FQDN, or a
// node entry with an unknown service or type, is logged and skipped; an
// unknown transport name in a group is logged and only that transport
// is skipped, rather than failing the whole parse.
func ParseNodes(raw string, logf func(format string, args ...any)) ([]*node.Node, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(raw)), toml.Parser()); err != nil {
		return nil, rerr.Wrap(rerr.CodeConfig, rerr.SeverityFatal, fmt.Errorf("parse config: %w", err))
	}
	var file nodeFile
	if err := k.Unmarshal("", &file); err != nil {
		return nil, rerr.Wrap(rerr.CodeConfig, rerr.SeverityFatal, fmt.Errorf("unmarshal config: %w", err))
	}

	dict, err := buildDictionary(file.Transport)
	if err != nil {
		return nil, err
	}

	var nodes []*node.Node

	for _, n := range file.Node {
		if !n.enabled() {
			continue
		}
		svc, ok := service.Parse(n.Service)
		if !ok {
			if logf != nil {
				logf("unknown service in node entry: %s", n.Service)
			}
			continue
		}
		kind, ok := transport.ParseKind(n.Type)
		if !ok {
			if logf != nil {
				logf("unknown transport type in node entry: %s", n.Type)
			}
			continue
		}
		t := transport.Transport{Kind: kind, Tls: n.Tls, Template: ""}
		address := n.Address
		if address == "" {
			address = t.MakeAddress(n.FQDN, svc.String(), n.Network)
		}
		nodes = append(nodes, node.New(svc, n.Network, t, n.FQDN, address))
	}

	seenGroupFQDN := make(map[string]bool, len(file.Group))
	for _, g := range file.Group {
		if !g.enabled() {
			continue
		}
		if seenGroupFQDN[g.FQDN] {
			return nil, rerr.Config("duplicate group: %s", g.FQDN)
		}
		seenGroupFQDN[g.FQDN] = true

		services := make([]service.Kind, 0, len(g.Services))
		for _, s := range g.Services {
			svc, ok := service.Parse(s)
			if !ok {
				if logf != nil {
					logf("unknown service in group %s: %s", g.FQDN, s)
				}
				continue
			}
			services = append(services, svc)
		}

		group := node.Group{
			Enable:     g.Enable,
			FQDN:       g.FQDN,
			Transports: g.Transports,
			Services:   services,
			Network:    g.Network,
		}
		nodes = append(nodes, node.ExpandGroup(group, dict, logf)...)
	}

	return nodes, nil
}
