package pathmap

// Config defines a set of tuning parameters for a PathMap. New replaces a
// zero SparseThreshold or BridgeInlineCap with its DefaultConfig value, and
// zero fields of a non-nil Arena with DefaultArenaConfig's; every other
// field, EnableCounters among them, is used exactly as given.
type Config struct {
	// A descriptive name for this configuration. It has no effect except for
	// logging and debugging purposes.
	Name string

	// SparseThreshold is the maximum number of children a node may hold
	// before it is promoted from Sparse to Dense representation. A node
	// with a single child is an ordinary Sparse node; Line nodes are not
	// created by insertion.
	SparseThreshold int

	// BridgeInlineCap is the number of children kept inline on a Bridge
	// node before the remaining, heavier branch is chased through its tail
	// edge instead.
	BridgeInlineCap int

	// RightBiasedMerge flips the tie-break rule used by Join and Meet when
	// both operand tries carry a value at the same path. The default,
	// false, keeps the left operand's value on a tie, per the algebra's
	// "l wins" convention.
	RightBiasedMerge bool

	// Arena, when non-nil, lets PathMap.PackArena move eligible subtrees
	// into a page store instead of leaving them resident on the Go heap.
	// Nothing is moved until PackArena is called. A nil Arena keeps the
	// whole PathMap heap-resident.
	Arena *ArenaConfig

	// EnableCounters turns on the atomic operation counters exposed through
	// PathMap.Counters. Counting a handful of atomics per operation is
	// cheap enough to default on, but bulk-loading workloads that do not
	// care about the counters can turn it off to shave the increments.
	EnableCounters bool

	// AllDenseNodes forces every node with at least one child into Dense
	// representation, skipping Line/Sparse/Bridge entirely. It trades the
	// memory savings of the smaller variants for the simplicity of a
	// single representation to reason about (and a flat bitmap256 test
	// instead of a linear scan on every lookup). Mutually exclusive with
	// BridgeNodes; when both are set, AllDenseNodes wins and Bridge is
	// never entered.
	AllDenseNodes bool

	// BridgeNodes enables promoting a Sparse node into Bridge, rather than
	// straight to Dense, once it grows past SparseThreshold. Off by
	// default, matching the source model's build-time opt-in: Bridge only
	// pays for itself on tries with the short-branch-into-long-run shape
	// it targets, and otherwise adds a representation the traversal code
	// has to switch on for no benefit.
	BridgeNodes bool

	// ZipperTracking turns on the live/total zipper counters exposed
	// through PathMap.ZipperStats. Like EnableCounters, this is a handful
	// of extra atomics per zipper open/close that a caller uninterested in
	// the introspection can skip.
	ZipperTracking bool

	// counters points back at the owning PathMap's Counters so that CoW
	// clone and arena hit/miss bookkeeping, which happen deep inside
	// trieNode/NodeHandle methods that never see a *PathMap, can still
	// reach the right counters. It rides along on every copy of Config
	// (insertPath, cloneForCoW, and friends all take Config by value), so
	// it is populated once by New and never touched again by the caller.
	counters *Counters
}

// ArenaConfig tunes the small-node page allocator used for ArenaCompact
// nodes. See internal/arena for the allocation strategy.
type ArenaConfig struct {
	// Path is the backing file for the arena's page image. An empty Path
	// keeps the arena anonymous (heap-backed pages, no persistence).
	Path string

	// EvictThreshold is passed to the arena store when it is opened, but
	// no packing or allocation decision reads it: eligibility is decided
	// by MinEvictThreshold and page fit, and the store treats a record as
	// small by its encoded size alone.
	EvictThreshold int

	// MinEvictThreshold is the floor below which a node is never packed
	// into the arena, regardless of memory pressure; it stays heap
	// resident because packing overhead would outweigh the saving.
	MinEvictThreshold int

	// PageCacheSize is the number of 4 KiB pages retained in the in-memory
	// LRU cache in front of the backing file.
	PageCacheSize int
}

// DefaultConfig is the stock configuration. New takes its SparseThreshold
// and BridgeInlineCap for a Config that leaves them zero.
var DefaultConfig = Config{
	Name:             "default",
	SparseThreshold:  8,
	BridgeInlineCap:  4,
	RightBiasedMerge: false,
	Arena:            nil,
	EnableCounters:   true,
}

// DefaultArenaConfig is applied to any ArenaConfig field left at its zero
// value once an ArenaConfig is present at all.
var DefaultArenaConfig = ArenaConfig{
	EvictThreshold:    32,
	MinEvictThreshold: 4,
	PageCacheSize:     1024,
}

func (c Config) withDefaults() Config {
	if c.SparseThreshold == 0 {
		c.SparseThreshold = DefaultConfig.SparseThreshold
	}
	if c.BridgeInlineCap == 0 {
		c.BridgeInlineCap = DefaultConfig.BridgeInlineCap
	}
	if c.Arena != nil {
		a := *c.Arena
		if a.EvictThreshold == 0 {
			a.EvictThreshold = DefaultArenaConfig.EvictThreshold
		}
		if a.MinEvictThreshold == 0 {
			a.MinEvictThreshold = DefaultArenaConfig.MinEvictThreshold
		}
		if a.PageCacheSize == 0 {
			a.PageCacheSize = DefaultArenaConfig.PageCacheSize
		}
		c.Arena = &a
	}
	return c
}
