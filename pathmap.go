// Package pathmap implements an in-memory, byte-path-keyed associative
// container backed by a reference-counted, copy-on-write trie. Keys are
// arbitrary byte strings; any prefix of a stored key may itself carry a
// value, and any two PathMaps (or any two snapshots produced by write
// zippers of the same map) can be combined with the algebraic operations in
// algebra.go, which exploit structural sharing to skip whole subtrees that
// are identical between operands.
package pathmap

import "sync"

// PathMap is a trie mapping byte-string paths to values of type V. The zero
// value is not usable; construct one with New. A *PathMap is safe for
// concurrent reads and for a single concurrent writer, or for many
// concurrent writers each holding a disjoint write-zipper obtained from the
// same ZipperHead; see zipper_head.go.
type PathMap[V any] struct {
	mu   sync.RWMutex
	cfg  Config
	root NodeHandle[V]

	arena *arenaBinding

	counters Counters
	zippers  zipperTracker
}

// arenaBinding lazily opens the configured arena store on first use so a
// PathMap with Config.Arena == nil never touches the filesystem.
type arenaBinding struct {
	once  sync.Once
	store *arenaStoreHandle
	cfg   ArenaConfig
	err   error
}

// New creates an empty PathMap. Zero thresholds in cfg take DefaultConfig's
// values; the other fields are used as given (see Config).
func New[V any](cfg Config) *PathMap[V] {
	cfg = cfg.withDefaults()
	m := &PathMap[V]{
		root: newNodeHandle[V](newEmptyNode[V]()),
	}
	cfg.counters = &m.counters
	m.cfg = cfg
	if cfg.Arena != nil {
		m.arena = &arenaBinding{cfg: *cfg.Arena}
	}
	return m
}

// Config returns the configuration this map was constructed with.
func (m *PathMap[V]) Config() Config {
	return m.cfg
}

// Get returns the value stored at path and whether it was present.
func (m *PathMap[V]) Get(path []byte) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg.EnableCounters {
		m.counters.reads.Add(1)
	}
	n, rest := descendToNode(m.cfg, m.root.node, path)
	var zero V
	if len(rest) != 0 || n == nil || n.value == nil {
		return zero, false
	}
	return *n.value, true
}

// ContainsPath reports whether path addresses a node of the trie, with or
// without its own value. A path that ends partway along an edge reports
// false even when values exist below it.
func (m *PathMap[V]) ContainsPath(path []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, rest := descendToNode(m.cfg, m.root.node, path)
	return n != nil && len(rest) == 0
}

// Insert stores value at path, returning the previous value if any.
func (m *PathMap[V]) Insert(path []byte, value V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.EnableCounters {
		m.counters.writes.Add(1)
	}
	old, oldOK, newRoot := insertPath(m.cfg, m.root, path, value)
	m.root = newRoot
	return old, oldOK
}

// Remove deletes the value at path, returning it if it was present. Along
// the removed path, a node left with no value and no children is dropped
// from its parent, and a node left with no value and a single child is
// merged into its parent's edge.
func (m *PathMap[V]) Remove(path []byte) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.EnableCounters {
		m.counters.writes.Add(1)
	}
	old, oldOK, newRoot := removePath(m.cfg, m.root, path)
	m.root = newRoot
	return old, oldOK
}

// Clear empties the map, releasing its root subtree.
func (m *PathMap[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root.Release()
	m.root = newNodeHandle[V](newEmptyNode[V]())
}

// IsEmpty reports whether the map has no entries at all, including no value
// at the empty path.
func (m *PathMap[V]) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root.node.value == nil && m.root.node.childCount(m.cfg) == 0
}

// Counters returns a snapshot of the map's atomic operation counters.
func (m *PathMap[V]) Counters() CountersSnapshot {
	return m.counters.snapshot()
}

// ZipperStats returns a snapshot of the map's zipper-lifetime counters. It
// reads as all zeros unless Config.ZipperTracking is set.
func (m *PathMap[V]) ZipperStats() ZipperStatsSnapshot {
	return m.zippers.snapshot()
}

// descendToNode walks path from n as far as it can, returning the node
// reached and whatever suffix of path was not consumed. An empty suffix
// with a non-nil node means path exactly addresses that node.
func descendToNode[V any](cfg Config, n *trieNode[V], path []byte) (*trieNode[V], []byte) {
	for {
		if len(path) == 0 {
			return n, path
		}
		e := n.childEdge(cfg, path[0])
		if e == nil {
			return nil, path
		}
		if len(path) < len(e.ext) || !hasPrefix(path, e.ext) {
			return nil, path
		}
		path = path[len(e.ext):]
		n = e.child.node.resolved(cfg)
	}
}

func hasPrefix(path, ext []byte) bool {
	if len(path) < len(ext) {
		return false
	}
	for i, b := range ext {
		if path[i] != b {
			return false
		}
	}
	return true
}

// commonPrefixLen returns the length of the shared prefix of a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// insertPath performs the copy-on-write descent used by both Insert and
// WriteZipper.SetValue: it clones every node from the root down to the
// insertion point (or splits an edge along the way), retaining siblings
// rather than copying them. It consumes root's single structural reference
// and returns newRoot as its sole replacement, whether or not any cloning
// actually happened; the caller must not use root again after the call.
func insertPath[V any](cfg Config, root NodeHandle[V], path []byte, value V) (old V, oldOK bool, newRoot NodeHandle[V]) {
	h := root.cloneForCoW(cfg)
	n := h.node
	if n.variant == VariantArenaCompact {
		n = n.resolved(cfg)
		h = newNodeHandle(n)
		root.Release()
	}

	if len(path) == 0 {
		if n.value != nil {
			old, oldOK = *n.value, true
		}
		v := value
		n.value = &v
		return old, oldOK, h
	}

	e := n.childEdge(cfg, path[0])
	if e == nil {
		v := value
		leaf := newNodeHandle(&trieNode[V]{variant: VariantSparse, value: &v, bridgeTail: -1})
		n.setChild(cfg, path[0], edge[V]{ext: append([]byte(nil), path...), child: leaf})
		return old, oldOK, h
	}

	shared := commonPrefixLen(path, e.ext)
	switch {
	case shared == len(e.ext):
		// Full edge consumed; recurse into the child.
		childOld, childOK, newChild := insertPath(cfg, e.child, path[shared:], value)
		n.setChild(cfg, path[0], edge[V]{ext: e.ext, child: newChild})
		return childOld, childOK, h

	case shared == len(path):
		// path ends inside this edge's extension: split the edge so the
		// new value lands on the split point, with the old target
		// hanging below it via the remaining extension.
		remaining := append([]byte(nil), e.ext[shared:]...)
		child := e.child.Retain()
		v := value
		mid := newNodeHandle(&trieNode[V]{
			variant:    VariantSparse,
			value:      &v,
			bridgeTail: -1,
		})
		mid.node.setChild(cfg, remaining[0], edge[V]{ext: remaining, child: child})
		n.setChild(cfg, path[0], edge[V]{ext: append([]byte(nil), path...), child: mid})
		e.child.Release()
		return old, oldOK, h

	default:
		// path and the edge diverge partway through: introduce a branch
		// node at the divergence point with two children, the old
		// continuation and the new leaf.
		oldRemaining := append([]byte(nil), e.ext[shared:]...)
		newRemaining := append([]byte(nil), path[shared:]...)
		oldChild := e.child.Retain()
		v := value
		newLeaf := newNodeHandle(&trieNode[V]{variant: VariantSparse, value: &v, bridgeTail: -1})

		branch := &trieNode[V]{variant: VariantSparse, bridgeTail: -1}
		branch.setChild(cfg, oldRemaining[0], edge[V]{ext: oldRemaining, child: oldChild})
		branch.setChild(cfg, newRemaining[0], edge[V]{ext: newRemaining, child: newLeaf})

		branchExt := append([]byte(nil), path[:shared]...)
		n.setChild(cfg, path[0], edge[V]{ext: branchExt, child: newNodeHandle(branch)})
		e.child.Release()
		return old, oldOK, h
	}
}

// removePath mirrors insertPath's descent (and its calling convention: it
// consumes root's reference and returns newRoot as the sole replacement),
// but deletes the value at path and collapses any node left with neither a
// value nor more than one child back into a Line edge merged with its
// parent, matching the invariant that a PathMap never retains a childless,
// valueless interior node.
func removePath[V any](cfg Config, root NodeHandle[V], path []byte) (old V, oldOK bool, newRoot NodeHandle[V]) {
	h := root.cloneForCoW(cfg)
	n := h.node
	if n.variant == VariantArenaCompact {
		n = n.resolved(cfg)
		h = newNodeHandle(n)
		root.Release()
	}

	if len(path) == 0 {
		if n.value != nil {
			old, oldOK = *n.value, true
			n.value = nil
		}
		return old, oldOK, h
	}

	e := n.childEdge(cfg, path[0])
	if e == nil || len(path) < len(e.ext) || !hasPrefix(path, e.ext) {
		return old, oldOK, h
	}

	childOld, childOK, newChild := removePath(cfg, e.child, path[len(e.ext):])
	old, oldOK = childOld, childOK

	// newChild is e.child's sole replacement regardless of whether a value
	// was actually found below it: removePath's descent may still have had
	// to clone a shared node on the way down even when nothing was
	// removed, so the edge must always be spliced to newChild rather than
	// left pointing at the (possibly now-released) old child.
	switch cc := newChild.node; {
	case cc.value == nil && cc.childCount(cfg) == 0:
		// The child became a dead leaf; drop the edge to it entirely.
		n.removeChild(cfg, path[0])
		newChild.Release()

	case cc.value == nil && cc.childCount(cfg) == 1:
		// The child is now a valueless pass-through node; splice its
		// single remaining edge directly onto ours so no childless,
		// valueless interior node survives the removal.
		var onlyEdge *edge[V]
		cc.forEachEdge(cfg, func(_ byte, ed *edge[V]) bool {
			onlyEdge = ed
			return false
		})
		grandchild := onlyEdge.child.Retain()
		mergedExt := append(append([]byte(nil), e.ext...), onlyEdge.ext...)
		n.setChild(cfg, path[0], edge[V]{ext: mergedExt, child: grandchild})
		newChild.Release()

	default:
		n.setChild(cfg, path[0], edge[V]{ext: e.ext, child: newChild})
	}
	return old, oldOK, h
}

// takePath descends to path with the same clone-and-split behavior as
// insertPath, then detaches whatever subtree hangs there as a standalone,
// separately owned handle rather than merely reading it: the edge that used
// to reach it is deleted from its parent outright (and, per removePath's
// collapsing rule, any interior node the deletion leaves childless and
// valueless is pruned back through Line merging). It shares insertPath and
// removePath's consume-root/return-newRoot convention. If path ends partway
// along an edge, taken is a new node holding the rest of that edge and its
// child. taken is the zero NodeHandle if path leads off the trie.
func takePath[V any](cfg Config, root NodeHandle[V], path []byte) (taken NodeHandle[V], newRoot NodeHandle[V]) {
	h := root.cloneForCoW(cfg)
	n := h.node
	if n.variant == VariantArenaCompact {
		n = n.resolved(cfg)
		h = newNodeHandle(n)
		root.Release()
	}

	if len(path) == 0 {
		return h, newNodeHandle[V](newEmptyNode[V]())
	}

	e := n.childEdge(cfg, path[0])
	if e != nil && len(path) < len(e.ext) && hasPrefix(e.ext, path) {
		// MidEdge: the edge's reference to its child moves to the new node.
		rest := append([]byte(nil), e.ext[len(path):]...)
		tn := &trieNode[V]{variant: VariantSparse, bridgeTail: -1}
		tn.setChild(cfg, rest[0], edge[V]{ext: rest, child: e.child})
		n.removeChild(cfg, path[0])
		return newNodeHandle(tn), h
	}
	if e == nil || len(path) < len(e.ext) || !hasPrefix(path, e.ext) {
		return NodeHandle[V]{}, h
	}

	childTaken, newChild := takePath(cfg, e.child, path[len(e.ext):])
	switch cc := newChild.node; {
	case cc.value == nil && cc.childCount(cfg) == 0:
		n.removeChild(cfg, path[0])
		newChild.Release()

	case cc.value == nil && cc.childCount(cfg) == 1:
		var onlyEdge *edge[V]
		cc.forEachEdge(cfg, func(_ byte, ed *edge[V]) bool {
			onlyEdge = ed
			return false
		})
		grandchild := onlyEdge.child.Retain()
		mergedExt := append(append([]byte(nil), e.ext...), onlyEdge.ext...)
		n.setChild(cfg, path[0], edge[V]{ext: mergedExt, child: grandchild})
		newChild.Release()

	default:
		n.setChild(cfg, path[0], edge[V]{ext: e.ext, child: newChild})
	}
	return childTaken, h
}
