package offline

import (
	"log/slog"
	"sync/atomic"
	"time"
)

type statsCollector struct {
	network   atomic.Uint64 // served live from the origin
	hits      atomic.Uint64 // served from cache without a network attempt
	fallbacks atomic.Uint64 // served from cache after a network failure
	synthetic atomic.Uint64 // offline page, 408, 503
	excluded  atomic.Uint64 // tunneled past the cache
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

// StatsSnapshot is a point-in-time copy of the serving counters.
type StatsSnapshot struct {
	Network   uint64 `json:"network"`
	Hits      uint64 `json:"hits"`
	Fallbacks uint64 `json:"fallbacks"`
	Synthetic uint64 `json:"synthetic"`
	Excluded  uint64 `json:"excluded"`
}

func (s *statsCollector) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Network:   s.network.Load(),
		Hits:      s.hits.Load(),
		Fallbacks: s.fallbacks.Load(),
		Synthetic: s.synthetic.Load(),
		Excluded:  s.excluded.Load(),
	}
}

func (c *Controller) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			ss := c.stats.Snapshot()
			entries, err := c.store.EntryCount(c.generation)
			if err != nil {
				slog.Warn("stats: entry count failed", "error", err)
			}
			slog.Info("cache stats",
				"generation", c.generation,
				"entries", entries,
				"network", ss.Network,
				"hits", ss.Hits,
				"fallbacks", ss.Fallbacks,
				"synthetic", ss.Synthetic,
				"excluded", ss.Excluded,
			)
		}
	}
}
