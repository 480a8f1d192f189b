package pathmap

import "sync/atomic"

// NodeHandle is a refcounted pointer to a trieNode. Unlike a bare *trieNode,
// a NodeHandle's Retain/Release pair tracks how many parent edges (across
// every PathMap, zipper and in-flight algebra result that shares this repo's
// nodes) currently point at the node, independent of the Go garbage
// collector. cloneForCoW consults this count, not GC reachability, to decide
// whether a mutation may happen in place: the count only ever reaches zero
// once every structural owner has explicitly released it, mirroring the
// strong-count semantics of a reference-counted pointer in the language this
// container was ported from.
//
// A forgotten Release leaves the count permanently inflated, which forces
// cloneForCoW to keep copying a node that has, in truth, become exclusively
// owned; that is a missed sharing optimization, never a correctness bug, and
// every call site in this package pairs an edge overwrite or a handle drop
// with the matching Release.
type NodeHandle[V any] struct {
	node *trieNode[V]
	rc   *atomic.Int32
}

// newNodeHandle wraps a freshly allocated node with an initial strong count
// of one: the reference implicitly held by whoever is about to store the
// handle somewhere (a parent edge, a PathMap root, an owned zipper).
func newNodeHandle[V any](n *trieNode[V]) NodeHandle[V] {
	rc := new(atomic.Int32)
	rc.Store(1)
	return NodeHandle[V]{node: n, rc: rc}
}

// IsNil reports whether the handle points at anything at all. The zero
// NodeHandle is used as the "no child" sentinel in edge{}.
func (h NodeHandle[V]) IsNil() bool {
	return h.node == nil
}

// Retain increments the strong count and returns h unchanged, so a second
// structural owner can start with `child = e.child.Retain()`.
func (h NodeHandle[V]) Retain() NodeHandle[V] {
	if h.node == nil {
		return h
	}
	h.rc.Add(1)
	return h
}

// Release decrements the strong count. When it reaches zero, the node's own
// children are released in turn, cascading the drop down the (now
// unreferenced) subtree. It is a no-op on the zero NodeHandle.
func (h NodeHandle[V]) Release() {
	if h.node == nil {
		return
	}
	if h.rc.Add(-1) == 0 {
		h.node.releaseChildren()
	}
}

// shared reports whether more than one structural owner currently points at
// this node, which is exactly the condition under which a mutation must
// clone rather than write in place.
func (h NodeHandle[V]) shared() bool {
	return h.rc.Load() > 1
}

// cloneForCoW consumes exactly one structural reference (h) and returns
// exactly one structural reference in its place: h itself, unchanged, if it
// was exclusively owned (safe to mutate in place), or a fresh handle
// wrapping a shallow copy (with every child edge retained) if it was
// shared, in which case h's own reference is released here. Every call site
// can therefore treat the return value as h's sole replacement without any
// further bookkeeping.
func (h NodeHandle[V]) cloneForCoW(cfg Config) NodeHandle[V] {
	if h.node == nil {
		return newNodeHandle[V](newEmptyNode[V]())
	}
	if !h.shared() {
		return h
	}
	if cfg.EnableCounters && cfg.counters != nil {
		cfg.counters.cowClones.Add(1)
	}
	clone := newNodeHandle(h.node.shallowCopy(cfg))
	h.Release()
	return clone
}
