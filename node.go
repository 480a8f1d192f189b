package pathmap

import (
	"slices"

	"github.com/pathmap-go/pathmap/internal/arena"
)

// Variant identifies which of the closed set of node representations a
// trieNode is currently using. The algebraic engine and the zipper cursor
// switch on this tag directly rather than going through an interface, since
// the set of variants is fixed and the switch sits on every traversal step.
type Variant uint8

const (
	// VariantLine is a single outgoing edge, possibly with a long prefix
	// extension. Insert and the other write paths never create it: a node
	// with one child is an ordinary Sparse node, and a run of single-child
	// positions is held as one edge's extension. Line nodes come from the
	// algebraic engine's split wrappers (see splitWrapper), which DropHead
	// results can keep, and from decoding such a node out of the arena.
	VariantLine Variant = iota

	// VariantSparse holds up to Config.SparseThreshold children in a
	// pair of parallel slices, sorted by first byte, and is scanned
	// linearly.
	VariantSparse

	// VariantDense holds up to 256 children behind a bitmap256 presence
	// mask and a packed array indexed by popcount rank.
	VariantDense

	// VariantBridge holds a small inline set of children (Config.
	// BridgeInlineCap of them) plus one further "tail" edge for a single
	// heavier branch, matching the common shape of a short branch that
	// immediately continues into a long run on one side.
	VariantBridge

	// VariantArenaCompact is a node whose children live in an
	// internal/arena page rather than on the Go heap. It is immutable in
	// place: any mutation first decodes it into a heap node of the variant
	// it was packed from.
	VariantArenaCompact
)

func (v Variant) String() string {
	switch v {
	case VariantLine:
		return "Line"
	case VariantSparse:
		return "Sparse"
	case VariantDense:
		return "Dense"
	case VariantBridge:
		return "Bridge"
	case VariantArenaCompact:
		return "ArenaCompact"
	default:
		return "Unknown"
	}
}

// edge is one outgoing transition from a node: an extension of zero or more
// path bytes consumed without branching, followed by the child reached at
// the end of that extension.
type edge[V any] struct {
	ext   []byte
	child NodeHandle[V]
}

// trieNode is the mutable payload a NodeHandle points at. Its refcount is
// carried on NodeHandle rather than here so that a node can be read without
// dereferencing atomics on a hot path that never mutates; see handle.go.
type trieNode[V any] struct {
	variant Variant
	value   *V

	// VariantLine
	line edge[V]

	// VariantSparse
	sparseKey  []byte
	sparseEdge []edge[V]

	// VariantDense
	denseMask bitmap256
	denseEdge []edge[V]

	// VariantBridge
	bridgeKey    []byte
	bridgeEdge   []edge[V]
	bridgeTail   int // first byte of the tail edge, or -1 if unused
	bridgeTailEd edge[V]

	// VariantArenaCompact
	arenaStore nodeStore
	arenaRef   arena.Ref
}

func newEmptyNode[V any]() *trieNode[V] {
	return &trieNode[V]{variant: VariantSparse}
}

// resolved returns n, decoding it out of the arena into a heap node of the
// variant it was packed from first if n is VariantArenaCompact. Reads never
// mutate the arena image; the decoded copy is used only for the duration of
// the traversal unless the caller keeps it (the write paths wrap it in a new
// handle in place of the arena node).
func (n *trieNode[V]) resolved(cfg Config) *trieNode[V] {
	if n.variant != VariantArenaCompact {
		return n
	}
	decoded, err := decodeArenaNode[V](n.arenaStore, n.arenaRef)
	if cfg.EnableCounters && cfg.counters != nil {
		if err != nil {
			cfg.counters.arenaMisses.Add(1)
		} else {
			cfg.counters.arenaHits.Add(1)
		}
	}
	if err != nil {
		// A corrupt or evicted arena page leaves the node unreadable.
		// Treat it as empty rather than panicking a read path; the
		// failure is counted in ArenaMisses when counters are enabled.
		return newEmptyNode[V]()
	}
	return decoded
}

// childCount reports the number of outgoing edges, resolving arena nodes
// first since their bitmap is not materialized on the struct itself.
func (n *trieNode[V]) childCount(cfg Config) int {
	n = n.resolved(cfg)
	switch n.variant {
	case VariantLine:
		return 1
	case VariantSparse:
		return len(n.sparseKey)
	case VariantDense:
		return n.denseMask.popCount()
	case VariantBridge:
		c := len(n.bridgeKey)
		if n.bridgeTail >= 0 {
			c++
		}
		return c
	default:
		return 0
	}
}

// childEdge returns the edge starting with byte b, or nil if there is none.
func (n *trieNode[V]) childEdge(cfg Config, b byte) *edge[V] {
	n = n.resolved(cfg)
	switch n.variant {
	case VariantLine:
		if len(n.line.ext) > 0 && n.line.ext[0] == b {
			return &n.line
		}
		return nil
	case VariantSparse:
		for i, k := range n.sparseKey {
			if k == b {
				return &n.sparseEdge[i]
			}
		}
		return nil
	case VariantDense:
		if !n.denseMask.has(b) {
			return nil
		}
		return &n.denseEdge[n.denseMask.rank(b)]
	case VariantBridge:
		for i, k := range n.bridgeKey {
			if k == b {
				return &n.bridgeEdge[i]
			}
		}
		if n.bridgeTail == int(b) {
			return &n.bridgeTailEd
		}
		return nil
	default:
		return nil
	}
}

// childMask returns the set of first-bytes with an outgoing edge. It is used
// by the zipper's ChildMask API and by the algebraic engine to bound
// lockstep walks to the union or intersection of two nodes' children.
func (n *trieNode[V]) childMask(cfg Config) bitmap256 {
	n = n.resolved(cfg)
	var m bitmap256
	switch n.variant {
	case VariantLine:
		if len(n.line.ext) > 0 {
			m.set(n.line.ext[0])
		}
	case VariantSparse:
		for _, k := range n.sparseKey {
			m.set(k)
		}
	case VariantDense:
		m = n.denseMask
	case VariantBridge:
		for _, k := range n.bridgeKey {
			m.set(k)
		}
		if n.bridgeTail >= 0 {
			m.set(byte(n.bridgeTail))
		}
	}
	return m
}

// forEachEdge calls fn for every outgoing edge in ascending first-byte
// order, stopping early if fn returns false.
func (n *trieNode[V]) forEachEdge(cfg Config, fn func(b byte, e *edge[V]) bool) {
	n = n.resolved(cfg)
	switch n.variant {
	case VariantLine:
		if len(n.line.ext) > 0 {
			fn(n.line.ext[0], &n.line)
		}
	case VariantSparse:
		for i, k := range n.sparseKey {
			if !fn(k, &n.sparseEdge[i]) {
				return
			}
		}
	case VariantDense:
		stopped := false
		n.denseMask.forEach(func(b byte) {
			if !stopped && !fn(b, &n.denseEdge[n.denseMask.rank(b)]) {
				stopped = true
			}
		})
	case VariantBridge:
		merged := make([]byte, len(n.bridgeKey))
		copy(merged, n.bridgeKey)
		if n.bridgeTail >= 0 {
			merged = append(merged, byte(n.bridgeTail))
		}
		slices.Sort(merged)
		for _, k := range merged {
			e := n.mustBridgeEdge(k)
			if !fn(k, e) {
				return
			}
		}
	}
}

func (n *trieNode[V]) mustBridgeEdge(b byte) *edge[V] {
	for i, k := range n.bridgeKey {
		if k == b {
			return &n.bridgeEdge[i]
		}
	}
	return &n.bridgeTailEd
}

// withChild returns a copy of n (always a fresh allocation; callers are
// expected to only call this from cloneForCoW or node construction, never on
// a shared node in place) with the edge for b replaced or inserted, promoting
// the representation if the child count now exceeds the current variant's
// capacity.
func (n *trieNode[V]) withChild(cfg Config, b byte, e edge[V]) *trieNode[V] {
	out := n.shallowCopy(cfg)
	out.setChild(cfg, b, e)
	return out
}

// setChild mutates out in place; out must not be shared (refcount 1, or a
// brand new node under construction). When Config.AllDenseNodes is set, any
// node about to gain a child is forced into Dense first, so Line/Sparse/
// Bridge never appear at all past a single call to setChild.
func (n *trieNode[V]) setChild(cfg Config, b byte, e edge[V]) {
	if cfg.AllDenseNodes && n.variant != VariantDense && n.variant != VariantArenaCompact {
		n.forceDense(cfg)
	}
	switch n.variant {
	case VariantSparse:
		for i, k := range n.sparseKey {
			if k == b {
				n.sparseEdge[i] = e
				return
			}
		}
		n.insertSparseSorted(b, e)
		if len(n.sparseKey) > cfg.SparseThreshold {
			if cfg.BridgeNodes {
				n.promoteToBridge(cfg)
			} else {
				n.promoteToDense(cfg)
			}
		}
	case VariantLine:
		if len(n.line.ext) > 0 && n.line.ext[0] == b {
			n.line = e
			return
		}
		// A Line node gaining a second, distinct first byte must first
		// demote back to Sparse so both edges have a slot.
		n.demoteLineToSparse()
		n.setChild(cfg, b, e)
	case VariantDense:
		if n.denseMask.has(b) {
			n.denseEdge[n.denseMask.rank(b)] = e
			return
		}
		n.insertDenseSorted(b, e)
	case VariantBridge:
		for i, k := range n.bridgeKey {
			if k == b {
				n.bridgeEdge[i] = e
				return
			}
		}
		if n.bridgeTail == int(b) {
			n.bridgeTailEd = e
			return
		}
		if len(n.bridgeKey) < cfg.BridgeInlineCap {
			n.bridgeKey = append(n.bridgeKey, b)
			n.bridgeEdge = append(n.bridgeEdge, e)
			return
		}
		if n.bridgeTail < 0 {
			n.bridgeTail = int(b)
			n.bridgeTailEd = e
			return
		}
		n.promoteBridgeToDense(cfg)
		n.setChild(cfg, b, e)
	case VariantArenaCompact:
		panic("pathmap: setChild called on an unpromoted arena node")
	}
}

func (n *trieNode[V]) insertSparseSorted(b byte, e edge[V]) {
	i := 0
	for i < len(n.sparseKey) && n.sparseKey[i] < b {
		i++
	}
	n.sparseKey = append(n.sparseKey, 0)
	copy(n.sparseKey[i+1:], n.sparseKey[i:])
	n.sparseKey[i] = b
	n.sparseEdge = append(n.sparseEdge, edge[V]{})
	copy(n.sparseEdge[i+1:], n.sparseEdge[i:])
	n.sparseEdge[i] = e
}

func (n *trieNode[V]) insertDenseSorted(b byte, e edge[V]) {
	i := n.denseMask.rank(b)
	n.denseEdge = append(n.denseEdge, edge[V]{})
	copy(n.denseEdge[i+1:], n.denseEdge[i:])
	n.denseEdge[i] = e
	n.denseMask.set(b)
}

func (n *trieNode[V]) removeChild(cfg Config, b byte) {
	switch n.variant {
	case VariantSparse:
		for i, k := range n.sparseKey {
			if k == b {
				n.sparseKey = append(n.sparseKey[:i], n.sparseKey[i+1:]...)
				n.sparseEdge = append(n.sparseEdge[:i], n.sparseEdge[i+1:]...)
				return
			}
		}
	case VariantLine:
		if len(n.line.ext) > 0 && n.line.ext[0] == b {
			n.line = edge[V]{}
		}
	case VariantDense:
		if n.denseMask.has(b) {
			i := n.denseMask.rank(b)
			n.denseEdge = append(n.denseEdge[:i], n.denseEdge[i+1:]...)
			n.denseMask.clear(b)
		}
	case VariantBridge:
		for i, k := range n.bridgeKey {
			if k == b {
				n.bridgeKey = append(n.bridgeKey[:i], n.bridgeKey[i+1:]...)
				n.bridgeEdge = append(n.bridgeEdge[:i], n.bridgeEdge[i+1:]...)
				return
			}
		}
		if n.bridgeTail == int(b) {
			n.bridgeTail = -1
			n.bridgeTailEd = edge[V]{}
		}
	}
}

func (n *trieNode[V]) demoteLineToSparse() {
	old := n.line
	n.variant = VariantSparse
	n.line = edge[V]{}
	n.sparseKey = nil
	n.sparseEdge = nil
	if len(old.ext) > 0 {
		n.sparseKey = []byte{old.ext[0]}
		n.sparseEdge = []edge[V]{old}
	}
}

func (n *trieNode[V]) promoteToDense(cfg Config) {
	var mask bitmap256
	edges := make([]edge[V], 0, len(n.sparseKey))
	order := make([]byte, len(n.sparseKey))
	copy(order, n.sparseKey)
	for i, k := range order {
		mask.set(k)
		edges = append(edges, n.sparseEdge[i])
	}
	// sparseKey is already sorted ascending, matching dense rank order.
	n.variant = VariantDense
	n.denseMask = mask
	n.denseEdge = edges
	n.sparseKey = nil
	n.sparseEdge = nil
}

// forceDense converts n directly to Dense from whatever variant it currently
// holds (Line, Sparse or Bridge), used by setChild when Config.AllDenseNodes
// forces every branching node into a single representation.
func (n *trieNode[V]) forceDense(cfg Config) {
	switch n.variant {
	case VariantLine:
		old := n.line
		n.variant = VariantDense
		n.denseMask = bitmap256{}
		n.denseEdge = nil
		n.line = edge[V]{}
		if len(old.ext) > 0 {
			n.insertDenseSorted(old.ext[0], old)
		}
	case VariantSparse:
		n.promoteToDense(cfg)
	case VariantBridge:
		n.promoteBridgeToDense(cfg)
	}
}

// promoteToBridge converts a Sparse node that just crossed SparseThreshold
// into Bridge instead of Dense: the child with the longest edge extension
// (the "heavier" branch Bridge's doc comment describes, the one most likely
// to itself continue as a long single-child run) becomes the tail edge, and
// the rest stay inline. If more children remain than BridgeInlineCap can
// hold once the tail is set aside, Bridge cannot represent the node at all
// and it falls through to Dense instead.
func (n *trieNode[V]) promoteToBridge(cfg Config) {
	tailIdx := 0
	for i, e := range n.sparseEdge {
		if len(e.ext) > len(n.sparseEdge[tailIdx].ext) {
			tailIdx = i
		}
	}
	if len(n.sparseKey)-1 > cfg.BridgeInlineCap {
		n.promoteToDense(cfg)
		return
	}
	tailKey := n.sparseKey[tailIdx]
	tailEdge := n.sparseEdge[tailIdx]
	inlineKey := make([]byte, 0, len(n.sparseKey)-1)
	inlineEdge := make([]edge[V], 0, len(n.sparseKey)-1)
	for i, k := range n.sparseKey {
		if i == tailIdx {
			continue
		}
		inlineKey = append(inlineKey, k)
		inlineEdge = append(inlineEdge, n.sparseEdge[i])
	}
	n.variant = VariantBridge
	n.bridgeKey = inlineKey
	n.bridgeEdge = inlineEdge
	n.bridgeTail = int(tailKey)
	n.bridgeTailEd = tailEdge
	n.sparseKey = nil
	n.sparseEdge = nil
}

func (n *trieNode[V]) promoteBridgeToDense(cfg Config) {
	n.variant = VariantDense
	n.denseMask = bitmap256{}
	n.denseEdge = nil
	for i, k := range n.bridgeKey {
		n.insertDenseSorted(k, n.bridgeEdge[i])
	}
	if n.bridgeTail >= 0 {
		n.insertDenseSorted(byte(n.bridgeTail), n.bridgeTailEd)
	}
	n.bridgeKey = nil
	n.bridgeEdge = nil
	n.bridgeTail = -1
	n.bridgeTailEd = edge[V]{}
}

// shallowCopy allocates a fresh node with the same value and edges as n
// (retaining, not deep-copying, every child handle) and resolves n out of
// the arena first if needed. Every child handle in the copy is Retain()'d
// since both n and the copy now reference it.
func (n *trieNode[V]) shallowCopy(cfg Config) *trieNode[V] {
	n = n.resolved(cfg)
	out := &trieNode[V]{variant: n.variant, bridgeTail: -1}
	if n.value != nil {
		v := *n.value
		out.value = &v
	}
	switch n.variant {
	case VariantLine:
		out.line = n.line
		out.line.child.Retain()
	case VariantSparse:
		out.sparseKey = append([]byte(nil), n.sparseKey...)
		out.sparseEdge = append([]edge[V](nil), n.sparseEdge...)
		for _, e := range out.sparseEdge {
			e.child.Retain()
		}
	case VariantDense:
		out.denseMask = n.denseMask
		out.denseEdge = append([]edge[V](nil), n.denseEdge...)
		for _, e := range out.denseEdge {
			e.child.Retain()
		}
	case VariantBridge:
		out.bridgeKey = append([]byte(nil), n.bridgeKey...)
		out.bridgeEdge = append([]edge[V](nil), n.bridgeEdge...)
		for _, e := range out.bridgeEdge {
			e.child.Retain()
		}
		out.bridgeTail = n.bridgeTail
		out.bridgeTailEd = n.bridgeTailEd
		if n.bridgeTail >= 0 {
			out.bridgeTailEd.child.Retain()
		}
	}
	return out
}

// releaseChildren decrements every outgoing edge's handle. It is called once
// a node's own refcount has dropped to zero, cascading the release the same
// way dropping an Rc<TrieNode> would drop its fields in the source model.
func (n *trieNode[V]) releaseChildren() {
	switch n.variant {
	case VariantLine:
		n.line.child.Release()
	case VariantSparse:
		for _, e := range n.sparseEdge {
			e.child.Release()
		}
	case VariantDense:
		for _, e := range n.denseEdge {
			e.child.Release()
		}
	case VariantBridge:
		for _, e := range n.bridgeEdge {
			e.child.Release()
		}
		if n.bridgeTail >= 0 {
			n.bridgeTailEd.child.Release()
		}
	}
}

func (n *trieNode[V]) isLeaf(cfg Config) bool {
	n = n.resolved(cfg)
	return n.childCount(cfg) == 0
}
