// Package config loads the resolver's TOML configuration schema:
// settings (updates/limits/sync/ttl/http), the node/group/
// transport dictionary, and the encrypted auto-update bundle source.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aspectron/kaspa-resolver/internal/connection"
	"github.com/aspectron/kaspa-resolver/internal/rerr"
)

const envPrefix = "RESOLVER_"

// Settings is the subset of the TOML schema that configures the core
// directly: update cadence, fd limits, and per-connection sync/ttl
// behavior. Node/group/transport entries are parsed separately by
// ParseNodes since they produce domain values, not scalar settings.
type Settings struct {
	Updates Updates    `koanf:"updates"`
	Limits  Limits     `koanf:"limits"`
	Sync    SyncConfig `koanf:"sync"`
	Ttl     TtlConfig  `koanf:"ttl"`
	Http    HttpConfig `koanf:"http"`
}

type Updates struct {
	Url         string  `koanf:"url"`
	DurationHrs float64 `koanf:"duration-hrs"`
}

// Duration converts the hours-scale TOML field to a time.Duration.
func (u Updates) Duration() time.Duration {
	return time.Duration(u.DurationHrs * float64(time.Hour))
}

type Limits struct {
	Fd uint64 `koanf:"fd"`
}

type SyncConfig struct {
	PollSec float64 `koanf:"poll-sec"`
	PingSec float64 `koanf:"ping-sec"`
}

// ToConnectionSettings narrows the TOML-facing scalar config to the
// connection.SyncSettings the core consumes.
func (s SyncConfig) ToConnectionSettings() connection.SyncSettings {
	return connection.SyncSettings{
		Poll: time.Duration(s.PollSec * float64(time.Second)),
		Ping: time.Duration(s.PingSec * float64(time.Second)),
	}
}

type TtlConfig struct {
	Enable    bool    `koanf:"enable"`
	PeriodHrs float64 `koanf:"period-hrs"`
	PeriodSec float64 `koanf:"period-sec"`
	Noise     float64 `koanf:"noise"`
}

// ToConnectionSettings resolves the period-hrs/period-sec union (the
// original's `Option<f64>` pair, exactly one of which is set) into the
// connection.TtlSettings the core consumes.
func (t TtlConfig) ToConnectionSettings() connection.TtlSettings {
	base := time.Duration(t.PeriodSec * float64(time.Second))
	if t.PeriodSec == 0 && t.PeriodHrs != 0 {
		base = time.Duration(t.PeriodHrs * float64(time.Hour))
	}
	return connection.TtlSettings{Enable: t.Enable, Base: base, Noise: t.Noise}
}

type HttpConfig struct {
	Status HttpStatusConfig `koanf:"status"`
}

type HttpStatusConfig struct {
	Sessions int     `koanf:"sessions"`
	TtlHrs   float64 `koanf:"ttl-hrs"`
}

func (h HttpStatusConfig) SessionLimit() int {
	if h.Sessions <= 0 {
		return 128
	}
	return h.Sessions
}

func (h HttpStatusConfig) TTL() time.Duration {
	if h.TtlHrs <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(h.TtlHrs * float64(time.Hour))
}

func defaults() map[string]any {
	return map[string]any{
		"updates.duration-hrs": 24.0,
		"limits.fd":            65536,
		"sync.poll-sec":        10.0,
		"sync.ping-sec":        30.0,
		"ttl.enable":           false,
		"ttl.period-hrs":       6.0,
		"ttl.noise":            0.1,
		"http.status.sessions": 128,
		"http.status.ttl-hrs":  48.0,
	}
}

// LoadSettings loads Settings with the precedence: built-in defaults,
// then the TOML file at path (if non-empty and present), then
// RESOLVER_-prefixed environment variables.
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Settings{}, rerr.Wrap(rerr.CodeConfig, rerr.SeverityFatal, err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return Settings{}, rerr.Wrap(rerr.CodeConfig, rerr.SeverityFatal, fmt.Errorf("load settings file %s: %w", path, err))
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", nil), nil); err != nil {
		return Settings{}, rerr.Wrap(rerr.CodeConfig, rerr.SeverityFatal, err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, rerr.Wrap(rerr.CodeConfig, rerr.SeverityFatal, err)
	}
	return s, nil
}
