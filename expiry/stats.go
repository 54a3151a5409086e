package expiry

import "go.uber.org/atomic"

// Stats is a point-in-time copy of the expirer counters.
type Stats struct {
	Ticks    int64 `json:"ticks"`
	Probes   int64 `json:"probes"`
	Reloads  int64 `json:"reloads"`
	Prunes   int64 `json:"prunes"`
	Pruned   int64 `json:"pruned"`
	Skips    int64 `json:"skips"`
	Failures int64 `json:"failures"`
}

type counters struct {
	ticks    atomic.Int64
	probes   atomic.Int64
	reloads  atomic.Int64
	prunes   atomic.Int64
	pruned   atomic.Int64
	skips    atomic.Int64
	failures atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Ticks:    c.ticks.Load(),
		Probes:   c.probes.Load(),
		Reloads:  c.reloads.Load(),
		Prunes:   c.prunes.Load(),
		Pruned:   c.pruned.Load(),
		Skips:    c.skips.Load(),
		Failures: c.failures.Load(),
	}
}
