package pathmap

import (
	"bytes"
	"sync"
)

// ZipperHead grants many disjoint WriteZippers over one PathMap at once. It
// takes the map's write lock for its entire lifetime, exactly as the source
// model's zipper_head() consumes &mut self: no ordinary Get, Insert, Remove
// or ReadZipper can observe the map while a head is open, which is what lets
// the head skip per-node locking against the rest of the map. Two zippers
// issued by the same head are still required to address disjoint regions
// (WriteZipperAt rejects an overlapping prefix with ErrExclusivityViolation),
// so their own subtree mutations never contend with each other: once a
// zipper's anchor is established, everything below it is exclusively its
// own. The first write copies the anchor node once, since both the head's
// tree and the zipper hold a reference to it; after that insertPath/
// removePath mutate the zipper's subtree in place without cloning. What
// they do still share is the path from the head's root down to each anchor
// (a later WriteZipperAt can split an edge an earlier zipper's anchor hangs
// off of), so committing a zipper's new subtree back into root always
// re-resolves that path from scratch (graftPath, keyed on the zipper's
// reserved prefix, rather than a pointer cached at issue time) under rootMu,
// the one point of coordination outstanding zippers pay for.
type ZipperHead[V any] struct {
	m      *PathMap[V]
	cfg    Config
	root   NodeHandle[V]
	rootMu sync.Mutex
	active [][]byte
	closed bool
}

// ZipperHead locks m for exclusive access and returns a head that can issue
// any number of disjoint write zippers over it. Close must be called to
// release the lock.
func (m *PathMap[V]) ZipperHead() *ZipperHead[V] {
	m.mu.Lock()
	return &ZipperHead[V]{m: m, cfg: m.cfg, root: m.root}
}

// Close installs whatever structure the head's zippers built and releases
// the map for ordinary use again. Any zipper the caller failed to Close
// itself is left as-is; its writes are already reflected in the head's
// working root regardless; only the exclusivity bookkeeping is skipped.
func (h *ZipperHead[V]) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.rootMu.Lock()
	h.m.root = h.root
	h.rootMu.Unlock()
	h.m.mu.Unlock()
}

// overlaps reports whether a and b are equal or one is a prefix of the
// other, the condition WriteZipperAt must reject between any two
// simultaneously outstanding zippers.
func overlaps(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return bytes.Equal(a[:n], b[:n])
}

// WriteZipperAt reserves prefix and returns a write zipper anchored there.
// It fails with ErrExclusivityViolation if prefix overlaps (is a prefix of,
// is equal to, or has as a prefix) any zipper this head has already issued
// and not yet closed. The path down to prefix is created on demand, exactly
// as SetValue would create it, so a WriteZipperAt on a path that does not
// exist yet is not itself an error.
func (h *ZipperHead[V]) WriteZipperAt(prefix []byte) (*WriteZipper[V], error) {
	if h.closed {
		return nil, ErrZipperHeadClosed
	}
	for _, p := range h.active {
		if overlaps(p, prefix) {
			return nil, ErrExclusivityViolation
		}
	}
	reserved := append([]byte(nil), prefix...)
	h.active = append(h.active, reserved)

	if len(prefix) == 0 {
		z := &WriteZipper[V]{cfg: h.cfg, origin: h.root}
		z.commit = func(newOrigin NodeHandle[V]) {
			h.rootMu.Lock()
			h.root = newOrigin
			h.rootMu.Unlock()
		}
		z.onClose = func() { h.releasePrefix(reserved) }
		h.track(z)
		return z, nil
	}

	h.rootMu.Lock()
	newRoot, target := ensureNodeAt(h.cfg, h.root, prefix)
	h.root = newRoot
	h.rootMu.Unlock()

	z := &WriteZipper[V]{cfg: h.cfg, origin: target}
	z.commit = func(newOrigin NodeHandle[V]) {
		h.rootMu.Lock()
		h.root = graftPath(h.cfg, h.root, reserved, newOrigin)
		h.rootMu.Unlock()
	}
	z.onClose = func() { h.releasePrefix(reserved) }
	h.track(z)
	return z, nil
}

// track wires z's trackDone hook into the owning map's zipper-lifetime
// counters when Config.ZipperTracking is set, the same bookkeeping
// PathMap.WriteZipper does for a non-head-issued zipper.
func (h *ZipperHead[V]) track(z *WriteZipper[V]) {
	if !h.cfg.ZipperTracking {
		return
	}
	h.m.zippers.liveWrite.Add(1)
	h.m.zippers.totalWrite.Add(1)
	z.trackDone = func() { h.m.zippers.liveWrite.Add(-1) }
}

func (h *ZipperHead[V]) releasePrefix(prefix []byte) {
	for i, p := range h.active {
		if bytes.Equal(p, prefix) {
			h.active = append(h.active[:i], h.active[i+1:]...)
			return
		}
	}
}

// ensureNodeAt walks root down to path, splitting or auto-vivifying edges
// exactly as insertPath does, but without ever touching a value: it exists
// purely to establish a node boundary at path and hand back a second,
// independently owned reference to the node that ends up there. newRoot is
// path's ordinary single-reference replacement for root (see insertPath);
// target is a second reference to the node now living at path, retained on
// top of the one newRoot's chain already holds, since the caller keeps
// target as a zipper's own origin while newRoot's chain keeps its own.
//
// Unlike an earlier version of this function, it does not hand back a
// pointer to path's immediate parent for a write zipper to commit through
// later: a subsequent WriteZipperAt call can freely reshape any ancestor
// edge above path (splitting it to fork off a sibling prefix), which would
// leave a cached parent pointer dangling. Committing instead always
// re-resolves path from the head's current root (see WriteZipperAt's use of
// graftPath), so restructuring an ancestor never orphans an anchor that was
// already handed out.
func ensureNodeAt[V any](cfg Config, root NodeHandle[V], path []byte) (newRoot NodeHandle[V], target NodeHandle[V]) {
	h := root.cloneForCoW(cfg)
	n := h.node
	if n.variant == VariantArenaCompact {
		n = n.resolved(cfg)
		h = newNodeHandle(n)
		root.Release()
	}

	e := n.childEdge(cfg, path[0])
	if e == nil {
		leaf := newNodeHandle[V](newEmptyNode[V]())
		ext := append([]byte(nil), path...)
		n.setChild(cfg, path[0], edge[V]{ext: ext, child: leaf})
		return h, leaf.Retain()
	}

	shared := commonPrefixLen(path, e.ext)
	switch {
	case shared == len(e.ext) && shared == len(path):
		child := e.child.cloneForCoW(cfg)
		if child.node.variant == VariantArenaCompact {
			resolved := child.node.resolved(cfg)
			prev := child
			child = newNodeHandle(resolved)
			prev.Release()
		}
		n.setChild(cfg, path[0], edge[V]{ext: e.ext, child: child})
		return h, child.Retain()

	case shared == len(e.ext):
		childNewRoot, cTarget := ensureNodeAt(cfg, e.child, path[shared:])
		n.setChild(cfg, path[0], edge[V]{ext: e.ext, child: childNewRoot})
		return h, cTarget

	case shared == len(path):
		remaining := append([]byte(nil), e.ext[shared:]...)
		oldChild := e.child.Retain()
		mid := newNodeHandle[V](newEmptyNode[V]())
		mid.node.setChild(cfg, remaining[0], edge[V]{ext: remaining, child: oldChild})
		ext := append([]byte(nil), path...)
		n.setChild(cfg, path[0], edge[V]{ext: ext, child: mid})
		e.child.Release()
		return h, mid.Retain()

	default:
		oldRemaining := append([]byte(nil), e.ext[shared:]...)
		newRemaining := append([]byte(nil), path[shared:]...)
		oldChild := e.child.Retain()
		leaf := newNodeHandle[V](newEmptyNode[V]())
		branch := &trieNode[V]{variant: VariantSparse, bridgeTail: -1}
		branch.setChild(cfg, oldRemaining[0], edge[V]{ext: oldRemaining, child: oldChild})
		branch.setChild(cfg, newRemaining[0], edge[V]{ext: newRemaining, child: leaf})
		branchExt := append([]byte(nil), path[:shared]...)
		n.setChild(cfg, path[0], edge[V]{ext: branchExt, child: newNodeHandle(branch)})
		e.child.Release()
		return h, leaf.Retain()
	}
}
