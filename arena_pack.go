package pathmap

// PackArena walks the map looking for heap-resident subtrees eligible for
// arena packing (at least Config.Arena.MinEvictThreshold children, and an
// encoding that fits one arena page) and
// moves them into the configured arena store, replacing them in place with
// an ArenaCompact node. It is a no-op if the map has no ArenaConfig.
//
// Packing is opt-in rather than automatic on every write: a workload that
// inserts and removes in the same hot region would otherwise pay
// encode/decode costs on every mutation. Call PackArena periodically, or
// once a bulk load has settled, the same way a caller decides when to call
// Flush.
func (m *PathMap[V]) PackArena() error {
	if m.cfg.Arena == nil {
		return nil
	}
	handle, err := m.arena.resolve()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	packed, err := packSubtree(m.cfg, handle.store, m.root)
	if err != nil {
		// Whatever subtrees were already promoted before the failing
		// Alloc stay promoted: they were exclusively owned, so the
		// promotion happened in place on the same nodes m.root already
		// points into, not on a scratch copy. That is a partially
		// packed tree, never a corrupt one; a later PackArena call will
		// simply pick up where this one stopped, since already-packed
		// ArenaCompact nodes are skipped on sight.
		return err
	}
	m.root = packed
	return nil
}

// packSubtree returns a handle equivalent to h, with any eligible
// descendant (and possibly h itself) replaced by an ArenaCompact node. It
// only descends into nodes that are exclusively owned (refcount == 1),
// since packing a shared node would force a clone of everything above it
// that later turned out to be unnecessary if the sharing owner never packs.
func packSubtree[V any](cfg Config, store nodeStore, h NodeHandle[V]) (NodeHandle[V], error) {
	if h.IsNil() || h.shared() || h.node.variant == VariantArenaCompact {
		return h, nil
	}
	n := h.node
	var walkErr error
	n.forEachEdge(cfg, func(b byte, e *edge[V]) bool {
		packed, err := packSubtree(cfg, store, e.child)
		if err != nil {
			walkErr = err
			return false
		}
		n.setChild(cfg, b, edge[V]{ext: e.ext, child: packed})
		return true
	})
	if walkErr != nil {
		return h, walkErr
	}
	promoted, ok, err := tryPromoteToArena(cfg, store, n)
	if err != nil {
		return h, err
	}
	if ok {
		return newNodeHandle(promoted), nil
	}
	return h, nil
}
