package pathmap

import "sync/atomic"

// Counters tracks a handful of atomic operation counts for a PathMap,
// following the same "count with a bare atomic, expose a snapshot struct"
// idiom the node cache uses for its own hit/miss bookkeeping. There is no
// metrics-exporter wiring here: a counters snapshot is a plain struct a
// caller can log, assert on in a test, or forward to whatever observability
// stack they already run, matching this repo's habit of keeping ambient
// concerns to what the standard library and the counted state itself can
// express.
//
// reads is incremented from Get and writes from Insert/Remove (ContainsPath
// is not counted);
// cowClones from NodeHandle.cloneForCoW whenever it actually has to copy a
// shared node rather than mutate in place; arenaHits/arenaMisses from
// trieNode.resolved whenever it decodes an ArenaCompact node, split on
// whether the decode succeeded. Every increment site checks
// Config.EnableCounters first, so a PathMap constructed with it left off
// never pays for the atomics.
type Counters struct {
	reads       atomic.Int64
	writes      atomic.Int64
	cowClones   atomic.Int64
	arenaHits   atomic.Int64
	arenaMisses atomic.Int64
}

// CountersSnapshot is a point-in-time copy of a Counters, safe to retain and
// compare after the map has moved on.
type CountersSnapshot struct {
	Reads       int64
	Writes      int64
	CoWClones   int64
	ArenaHits   int64
	ArenaMisses int64
}

func (c *Counters) snapshot() CountersSnapshot {
	return CountersSnapshot{
		Reads:       c.reads.Load(),
		Writes:      c.writes.Load(),
		CoWClones:   c.cowClones.Load(),
		ArenaHits:   c.arenaHits.Load(),
		ArenaMisses: c.arenaMisses.Load(),
	}
}
