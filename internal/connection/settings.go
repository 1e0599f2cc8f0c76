package connection

import (
	"math/rand"
	"time"
)

// SyncSettings controls how often a Connection polls its upstream: the
// delegate polls at Poll interval (sync+metrics), a bound connection
// only pings at Ping interval.
type SyncSettings struct {
	Poll time.Duration
	Ping time.Duration
}

// TtlSettings controls the TTL-driven reconnect rotation: each epoch's
// deadline is Base perturbed by ±Noise*Base, sampled fresh at connect
// time.
type TtlSettings struct {
	Enable bool
	Base   time.Duration
	Noise  float64
}

// sample draws one jittered TTL duration for a fresh connection epoch.
func (t TtlSettings) sample() time.Duration {
	if !t.Enable || t.Base <= 0 {
		return 0
	}
	spread := t.Noise * float64(t.Base)
	jitter := (rand.Float64()*2 - 1) * spread
	return t.Base + time.Duration(jitter)
}
