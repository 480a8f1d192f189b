package pathmap

import "reflect"

// algebraOp selects which of the three binary operators a lockstep walk over
// two node graphs is performing. Every op shares the same traversal shape
// (per-byte fusion of the operands' children, with edges of mismatched
// length virtually split so both sides align before recursing); only the
// value-slot rule and which side's children survive on a byte differ.
type algebraOp int

const (
	opJoin algebraOp = iota
	opMeet
	opSubtract
)

// Join returns a new PathMap holding every path present in m or other. Where
// both carry a value at the same path, m's value wins unless
// Config.RightBiasedMerge is set. A subtree under a byte that only one
// operand has, or one both operands already share, is shared with the
// operands rather than copied. Every node the two operands are walked
// through together is freshly allocated, even when all of its content
// comes from one side.
func (m *PathMap[V]) Join(other *PathMap[V]) *PathMap[V] {
	return m.combineWith(other, opJoin)
}

// Meet returns a new PathMap holding only the paths present in both m and
// other, with values resolved the same way as Join.
func (m *PathMap[V]) Meet(other *PathMap[V]) *PathMap[V] {
	return m.combineWith(other, opMeet)
}

// Subtract returns a new PathMap holding every value of m at a path where
// other has no value, i.e. m with other's value-bearing paths masked out.
// This is the DistributiveLattice extension over the Join/Meet Lattice.
func (m *PathMap[V]) Subtract(other *PathMap[V]) *PathMap[V] {
	return m.combineWith(other, opSubtract)
}

func (m *PathMap[V]) combineWith(other *PathMap[V], op algebraOp) *PathMap[V] {
	first, second := lockPairRLock(m, other)
	defer first.mu.RUnlock()
	if second != first {
		defer second.mu.RUnlock()
	}
	cfg := m.cfg
	root := combine(cfg, op, m.root, other.root)
	out := New[V](cfg)
	out.root.Release()
	out.root = root
	return out
}

// lockPairRLock RLocks a and b in a total order (by memory address) so two
// goroutines racing a.Join(b) and b.Join(a) never deadlock waiting on each
// other's lock. It returns the maps in the order their locks were taken; if
// a == b it locks once and returns a, a.
func lockPairRLock[V any](a, b *PathMap[V]) (*PathMap[V], *PathMap[V]) {
	if a == b {
		a.mu.RLock()
		return a, a
	}
	if reflect.ValueOf(a).Pointer() < reflect.ValueOf(b).Pointer() {
		a.mu.RLock()
		b.mu.RLock()
		return a, b
	}
	b.mu.RLock()
	a.mu.RLock()
	return b, a
}

// combine performs the lockstep walk described in the algebraic engine's
// per-byte fusion rule. It borrows l and r (never releasing or mutating
// them) and returns a freshly owned handle for the result; the caller is
// responsible for l and r's own lifetimes exactly as it was before the
// call, matching an ordinary read operation rather than insertPath's
// consume-and-replace convention.
func combine[V any](cfg Config, op algebraOp, l, r NodeHandle[V]) NodeHandle[V] {
	if l.node == r.node {
		switch op {
		case opJoin, opMeet:
			return l.Retain()
		default: // opSubtract: l minus itself is empty
			return newNodeHandle[V](newEmptyNode[V]())
		}
	}

	ln := l.node.resolved(cfg)
	rn := r.node.resolved(cfg)

	out := &trieNode[V]{variant: VariantSparse, bridgeTail: -1}
	switch op {
	case opJoin:
		switch {
		case ln.value != nil && rn.value != nil:
			src := ln
			if cfg.RightBiasedMerge {
				src = rn
			}
			v := *src.value
			out.value = &v
		case ln.value != nil:
			v := *ln.value
			out.value = &v
		case rn.value != nil:
			v := *rn.value
			out.value = &v
		}
	case opMeet:
		if ln.value != nil && rn.value != nil {
			src := ln
			if cfg.RightBiasedMerge {
				src = rn
			}
			v := *src.value
			out.value = &v
		}
	case opSubtract:
		if ln.value != nil && rn.value == nil {
			v := *ln.value
			out.value = &v
		}
	}

	lMask, rMask := ln.childMask(cfg), rn.childMask(cfg)
	var mask bitmap256
	switch {
	case op == opMeet && !lMask.intersects(rMask):
		// No child byte survives an intersection; skip the fold entirely.
	case op == opMeet:
		for i := range mask {
			mask[i] = lMask[i] & rMask[i]
		}
	default:
		for i := range mask {
			mask[i] = lMask[i] | rMask[i]
		}
	}

	mask.forEach(func(b byte) {
		el, er := ln.childEdge(cfg, b), rn.childEdge(cfg, b)
		if e, ok := combineEdge(cfg, op, el, er); ok {
			out.setChild(cfg, b, e)
		}
	})

	return newNodeHandle(out)
}

// combineEdge resolves one byte's contribution to a combine result. It
// returns ok == false when the byte contributes no edge at all (meet found
// only one side present, or the recursion below produced an empty node).
func combineEdge[V any](cfg Config, op algebraOp, el, er *edge[V]) (edge[V], bool) {
	switch {
	case el != nil && er == nil:
		switch op {
		case opJoin, opSubtract:
			return edge[V]{ext: el.ext, child: el.child.Retain()}, true
		default: // opMeet: this byte isn't in the intersection mask, unreachable
			return edge[V]{}, false
		}
	case el == nil && er != nil:
		if op == opJoin {
			return edge[V]{ext: er.ext, child: er.child.Retain()}, true
		}
		return edge[V]{}, false

	default:
		shared := commonPrefixLen(el.ext, er.ext)

		lHandle, rHandle := el.child, er.child
		var lTemp, rTemp bool
		if shared < len(el.ext) {
			lHandle = splitWrapper(append([]byte(nil), el.ext[shared:]...), el.child)
			lTemp = true
		}
		if shared < len(er.ext) {
			rHandle = splitWrapper(append([]byte(nil), er.ext[shared:]...), er.child)
			rTemp = true
		}

		child := combine(cfg, op, lHandle, rHandle)
		if lTemp {
			lHandle.Release()
		}
		if rTemp {
			rHandle.Release()
		}

		if child.node.value == nil && child.node.childCount(cfg) == 0 {
			child.Release()
			return edge[V]{}, false
		}
		return edge[V]{ext: append([]byte(nil), el.ext[:shared]...), child: child}, true
	}
}

// splitWrapper builds a throwaway single-edge node standing in for the
// portion of a real edge past a virtual split point, so combine's lockstep
// recursion can treat both operands as if they branched at the same byte
// without ever mutating either one. Its child reference is Retain()'d on
// construction and released by the caller once the wrapper itself is
// discarded.
func splitWrapper[V any](remainingExt []byte, child NodeHandle[V]) NodeHandle[V] {
	w := &trieNode[V]{variant: VariantLine, bridgeTail: -1}
	w.line = edge[V]{ext: remainingExt, child: child.Retain()}
	return newNodeHandle(w)
}

// Restrict returns a new PathMap holding every value of m whose path has
// some prefix present in prefixes (a value anywhere along the path in
// prefixes, not necessarily at the same depth, marks the whole subtree
// below it as included). Unlike Join/Meet/Subtract this only ever walks m's
// own children: prefixes contributes nothing prefixes doesn't already share
// a path with m.
func (m *PathMap[V]) Restrict(prefixes *PathMap[V]) *PathMap[V] {
	first, second := lockPairRLock(m, prefixes)
	defer first.mu.RUnlock()
	if second != first {
		defer second.mu.RUnlock()
	}
	root := restrictNode(m.cfg, m.root, prefixes.root, false)
	out := New[V](m.cfg)
	out.root.Release()
	out.root = root
	return out
}

// restrictNode walks l (the data) guided by r (the set of allowed
// prefixes). markedAbove is true once some ancestor of the current position
// in r already carried a value, at which point the rest of l's subtree is
// kept unchanged (and shared, per sharing preservation) regardless of
// whether r's structure continues to track it.
func restrictNode[V any](cfg Config, l, r NodeHandle[V], markedAbove bool) NodeHandle[V] {
	if l.node == r.node {
		return l.Retain()
	}
	if markedAbove {
		return l.Retain()
	}

	ln := l.node.resolved(cfg)
	rn := r.node.resolved(cfg)
	marked := markedAbove || rn.value != nil

	out := &trieNode[V]{variant: VariantSparse, bridgeTail: -1}
	if ln.value != nil && marked {
		v := *ln.value
		out.value = &v
	}

	ln.forEachEdge(cfg, func(b byte, el *edge[V]) bool {
		er := rn.childEdge(cfg, b)
		switch {
		case er == nil && marked:
			out.setChild(cfg, b, edge[V]{ext: el.ext, child: el.child.Retain()})
		case er == nil:
			// Neither this byte nor any ancestor is marked in r: nothing
			// of l's subtree here is restricted in.
		default:
			shared := commonPrefixLen(el.ext, er.ext)
			lHandle, rHandle := el.child, er.child
			var lTemp, rTemp bool
			if shared < len(el.ext) {
				lHandle = splitWrapper(append([]byte(nil), el.ext[shared:]...), el.child)
				lTemp = true
			}
			if shared < len(er.ext) {
				rHandle = splitWrapper(append([]byte(nil), er.ext[shared:]...), er.child)
				rTemp = true
			}
			child := restrictNode(cfg, lHandle, rHandle, marked)
			if lTemp {
				lHandle.Release()
			}
			if rTemp {
				rHandle.Release()
			}
			if child.node.value != nil || child.node.childCount(cfg) > 0 {
				out.setChild(cfg, b, edge[V]{ext: append([]byte(nil), el.ext[:shared]...), child: child})
			} else {
				child.Release()
			}
		}
		return true
	})
	return newNodeHandle(out)
}

// DropHead returns a new PathMap built by dropping the first n bytes off
// every path of m: the node reached after consuming exactly n bytes along
// any branch becomes a new root-level subtree, and where the remaining paths
// of two branches coincide after the drop, their subtrees are combined with
// Join.
func (m *PathMap[V]) DropHead(n int) *PathMap[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	parts := dropHeadCollect(m.cfg, m.root, n)
	out := New[V](m.cfg)
	if len(parts) == 0 {
		return out
	}
	acc := parts[0]
	for _, p := range parts[1:] {
		merged := combine(m.cfg, opJoin, acc, p)
		acc.Release()
		p.Release()
		acc = merged
	}
	out.root.Release()
	out.root = acc
	return out
}

// dropHeadCollect gathers one owned handle per branch of h that consumes
// exactly `remaining` bytes to reach, wrapping a partially consumed edge in
// a synthetic Line node (the same virtual-split device combine uses) when
// remaining bytes land inside an edge's extension rather than exactly at
// its end.
func dropHeadCollect[V any](cfg Config, h NodeHandle[V], remaining int) []NodeHandle[V] {
	if remaining == 0 {
		return []NodeHandle[V]{h.Retain()}
	}
	n := h.node.resolved(cfg)
	var out []NodeHandle[V]
	n.forEachEdge(cfg, func(_ byte, e *edge[V]) bool {
		switch {
		case len(e.ext) == remaining:
			out = append(out, e.child.Retain())
		case len(e.ext) > remaining:
			out = append(out, splitWrapper(append([]byte(nil), e.ext[remaining:]...), e.child))
		default:
			out = append(out, dropHeadCollect(cfg, e.child, remaining-len(e.ext))...)
		}
		return true
	})
	return out
}
