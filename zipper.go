package pathmap

// ReadZipper is an immutable cursor over a snapshot of a PathMap. It pins
// the subtree it was created over via a retained NodeHandle, so structural
// changes made to the map afterwards (through Insert, Remove, or another
// zipper) are invisible to it: copy-on-write means the nodes it holds
// references into are never mutated in place once shared.
type ReadZipper[V any] struct {
	cfg       Config
	origin    NodeHandle[V]
	basePath  []byte
	focus     []byte
	closed    bool
	trackDone func()
}

// ReadZipper returns a zipper positioned at the map's root.
func (m *PathMap[V]) ReadZipper() *ReadZipper[V] {
	return m.ReadZipperAt(nil)
}

// ReadZipperAt returns a zipper whose absolute position starts at prefix.
// prefix need not land on a node boundary; the zipper's initial CursorState
// reflects wherever prefix actually lands (AtNode, MidEdge, or OffTrie).
func (m *PathMap[V]) ReadZipperAt(prefix []byte) *ReadZipper[V] {
	m.mu.RLock()
	origin := m.root.Retain()
	m.mu.RUnlock()
	z := &ReadZipper[V]{
		cfg:      m.cfg,
		origin:   origin,
		basePath: append([]byte(nil), prefix...),
	}
	if m.cfg.ZipperTracking {
		m.zippers.liveRead.Add(1)
		m.zippers.totalRead.Add(1)
		z.trackDone = func() { m.zippers.liveRead.Add(-1) }
	}
	return z
}

// Close releases the zipper's retained snapshot. A closed zipper must not
// be used again.
func (z *ReadZipper[V]) Close() {
	if z.closed {
		return
	}
	z.origin.Release()
	z.closed = true
	if z.trackDone != nil {
		z.trackDone()
	}
}

func (z *ReadZipper[V]) absPath() []byte {
	return append(append([]byte(nil), z.basePath...), z.focus...)
}

// Path returns the zipper's current absolute path.
func (z *ReadZipper[V]) Path() []byte {
	return z.absPath()
}

// State classifies the zipper's current focus.
func (z *ReadZipper[V]) State() CursorState {
	return locate(z.cfg, z.origin.node, z.absPath()).state
}

// Value returns the value at the current focus, if the focus is AtNode and
// that node carries one.
func (z *ReadZipper[V]) Value() (V, bool) {
	var zero V
	pos := locate(z.cfg, z.origin.node, z.absPath())
	if pos.state != AtNode || pos.node.value == nil {
		return zero, false
	}
	return *pos.node.value, true
}

// ChildMask returns the set of bytes that continue the path from the
// current focus: the first-bytes of the node's outgoing edges when AtNode,
// or the edge's next extension byte when MidEdge. It is the zero bitmap
// when the focus is OffTrie.
func (z *ReadZipper[V]) ChildMask() bitmap256 {
	pos := locate(z.cfg, z.origin.node, z.absPath())
	switch pos.state {
	case AtNode:
		return pos.node.childMask(z.cfg)
	case MidEdge:
		var m bitmap256
		m.set(pos.edge.ext[pos.offset])
		return m
	}
	return bitmap256{}
}

// ChildBytes returns, in ascending order, the bytes in ChildMask: the
// first-bytes of every outgoing edge from the current focus, or the next
// extension byte at a MidEdge focus. It is the exported enumeration counterpart
// to ChildMask for callers outside the package, which cannot range over a
// bitmap256 directly.
func (z *ReadZipper[V]) ChildBytes() []byte {
	mask := z.ChildMask()
	var out []byte
	mask.forEach(func(b byte) { out = append(out, b) })
	return out
}

// DescendByte moves the focus one byte deeper, returning false (and leaving
// the focus unchanged) if that byte has no outgoing edge or extension byte
// to follow from the current position.
func (z *ReadZipper[V]) DescendByte(b byte) bool {
	candidate := append(append([]byte(nil), z.focus...), b)
	if locate(z.cfg, z.origin.node, append(append([]byte(nil), z.basePath...), candidate...)).state == OffTrie {
		return false
	}
	z.focus = candidate
	return true
}

// Descend moves the focus along the whole of path. Once a byte has no
// outgoing edge or extension byte to follow, the rest of path is appended
// as is and the focus is OffTrie. It returns the number of leading bytes of
// path that stayed on existing structure.
func (z *ReadZipper[V]) Descend(path []byte) int {
	n := 0
	for _, b := range path {
		if !z.DescendByte(b) {
			break
		}
		n++
	}
	z.focus = append(append([]byte(nil), z.focus...), path[n:]...)
	return n
}

// Ascend moves the focus n bytes back toward the zipper's base path. It
// returns false, leaving the focus unchanged, if n exceeds the number of
// bytes already descended from the base.
func (z *ReadZipper[V]) Ascend(n int) bool {
	if n < 0 || n > len(z.focus) {
		return false
	}
	z.focus = z.focus[:len(z.focus)-n]
	return true
}

// Reset moves the focus back to the zipper's base path.
func (z *ReadZipper[V]) Reset() {
	z.focus = nil
}

// AscendToByte walks the focus back toward the base one byte at a time until
// the last byte it steps over equals b, landing the focus immediately after
// that byte. It returns false, leaving the focus unchanged, if b does not
// occur anywhere between the current focus and the base.
func (z *ReadZipper[V]) AscendToByte(b byte) bool {
	for i := len(z.focus) - 1; i >= 0; i-- {
		if z.focus[i] == b {
			z.focus = z.focus[:i+1]
			return true
		}
	}
	return false
}

// IsValue reports whether the current focus is AtNode and carries a value.
func (z *ReadZipper[V]) IsValue() bool {
	pos := locate(z.cfg, z.origin.node, z.absPath())
	return pos.state == AtNode && pos.node.value != nil
}

// IsEmptySpace reports whether the current focus is AtNode but the node
// there carries neither a value nor any children, i.e. addresses a position
// with nothing at all. Insert and Remove never leave such a node behind an
// interior edge, but a ZipperHead anchor whose zipper wrote nothing stays
// in the trie as one.
func (z *ReadZipper[V]) IsEmptySpace() bool {
	pos := locate(z.cfg, z.origin.node, z.absPath())
	return pos.state == AtNode && pos.node.value == nil && pos.node.childCount(z.cfg) == 0
}

// IsDangling reports whether the current focus has walked off the trie
// entirely, i.e. some byte along the path had no matching edge or extension
// to follow.
func (z *ReadZipper[V]) IsDangling() bool {
	return z.State() == OffTrie
}

// WriteZipper is a mutable cursor over a PathMap (or, when issued by a
// ZipperHead, over one disjoint region of one). Every mutating call performs
// the same copy-on-write splice Insert/Remove perform on the map directly;
// the zipper's value is holding position across a sequence of them without
// re-walking from the top each time and, when head-issued, doing so without
// contending with sibling zippers over disjoint regions.
type WriteZipper[V any] struct {
	cfg   Config
	focus []byte

	// origin is this zipper's private view of the subtree at its base
	// path; every mutation replaces it with insertPath/removePath's
	// returned handle.
	origin NodeHandle[V]

	// commit installs a new origin as the map's (or the anchor's) current
	// child. origin and that slot alias one structural reference for the
	// zipper's whole lifetime: whatever was there before was already
	// consumed by insertPath/removePath/graftPath in producing newOrigin.
	// For a root zipper the slot is pm.root, guarded by pm.mu held for the
	// zipper's life, and commit is a plain assignment. For a head-issued
	// zipper the slot is the edge reaching the zipper's reserved prefix;
	// commit re-resolves that prefix from the head's current root with
	// graftPath under the head's rootMu.
	commit    func(newOrigin NodeHandle[V])
	closed    bool
	onClose   func()
	trackDone func()
}

// WriteZipper returns a zipper over the whole map, holding it exclusively
// for the zipper's lifetime. Close must be called to release it.
func (m *PathMap[V]) WriteZipper() *WriteZipper[V] {
	m.mu.Lock()
	origin := m.root
	z := &WriteZipper[V]{
		cfg:    m.cfg,
		origin: origin,
	}
	z.commit = func(newOrigin NodeHandle[V]) {
		m.root = newOrigin
	}
	z.onClose = func() { m.mu.Unlock() }
	if m.cfg.ZipperTracking {
		m.zippers.liveWrite.Add(1)
		m.zippers.totalWrite.Add(1)
		z.trackDone = func() { m.zippers.liveWrite.Add(-1) }
	}
	return z
}

// Close commits the zipper's final state (if not already committed by the
// most recent mutation, which it always is) and releases any exclusive
// access it was holding.
func (z *WriteZipper[V]) Close() {
	if z.closed {
		return
	}
	z.closed = true
	if z.onClose != nil {
		z.onClose()
	}
	if z.trackDone != nil {
		z.trackDone()
	}
}

func (z *WriteZipper[V]) absFocus() []byte {
	return z.focus
}

// Path returns the zipper's current position relative to its base.
func (z *WriteZipper[V]) Path() []byte {
	return append([]byte(nil), z.focus...)
}

// State classifies the zipper's current focus.
func (z *WriteZipper[V]) State() CursorState {
	return locate(z.cfg, z.origin.node, z.absFocus()).state
}

// Value returns the value at the current focus.
func (z *WriteZipper[V]) Value() (V, bool) {
	var zero V
	pos := locate(z.cfg, z.origin.node, z.absFocus())
	if pos.state != AtNode || pos.node.value == nil {
		return zero, false
	}
	return *pos.node.value, true
}

// ChildMask returns the set of first-bytes with an outgoing edge from the
// current focus.
func (z *WriteZipper[V]) ChildMask() bitmap256 {
	pos := locate(z.cfg, z.origin.node, z.absFocus())
	if pos.state != AtNode {
		return bitmap256{}
	}
	return pos.node.childMask(z.cfg)
}

// DescendByte moves the focus one byte deeper along an existing edge or
// extension. Unlike SetValue, it does not create structure; it returns
// false if the byte has no outgoing edge or extension byte to follow.
func (z *WriteZipper[V]) DescendByte(b byte) bool {
	candidate := append(append([]byte(nil), z.focus...), b)
	if locate(z.cfg, z.origin.node, candidate).state == OffTrie {
		return false
	}
	z.focus = candidate
	return true
}

// Descend moves the focus along the whole of path. Once a byte has no
// outgoing edge or extension byte to follow, the rest of path is appended
// as is and the focus is OffTrie, where SetValue creates the missing
// structure. It returns the number of leading bytes of path that stayed on
// existing structure.
func (z *WriteZipper[V]) Descend(path []byte) int {
	n := 0
	for _, b := range path {
		if !z.DescendByte(b) {
			break
		}
		n++
	}
	z.focus = append(append([]byte(nil), z.focus...), path[n:]...)
	return n
}

// Ascend moves the focus n bytes back toward the zipper's base.
func (z *WriteZipper[V]) Ascend(n int) bool {
	if n < 0 || n > len(z.focus) {
		return false
	}
	z.focus = z.focus[:len(z.focus)-n]
	return true
}

// Reset moves the focus back to the zipper's base path.
func (z *WriteZipper[V]) Reset() {
	z.focus = nil
}

// AscendToByte walks the focus back toward the base one byte at a time until
// the last byte it steps over equals b, landing the focus immediately after
// that byte. It returns false, leaving the focus unchanged, if b does not
// occur anywhere between the current focus and the base.
func (z *WriteZipper[V]) AscendToByte(b byte) bool {
	for i := len(z.focus) - 1; i >= 0; i-- {
		if z.focus[i] == b {
			z.focus = z.focus[:i+1]
			return true
		}
	}
	return false
}

// IsValue reports whether the current focus is AtNode and carries a value.
func (z *WriteZipper[V]) IsValue() bool {
	pos := locate(z.cfg, z.origin.node, z.absFocus())
	return pos.state == AtNode && pos.node.value != nil
}

// IsEmptySpace reports whether the current focus is AtNode but the node
// there carries neither a value nor any children.
func (z *WriteZipper[V]) IsEmptySpace() bool {
	pos := locate(z.cfg, z.origin.node, z.absFocus())
	return pos.state == AtNode && pos.node.value == nil && pos.node.childCount(z.cfg) == 0
}

// IsDangling reports whether the current focus has walked off the trie
// entirely.
func (z *WriteZipper[V]) IsDangling() bool {
	return z.State() == OffTrie
}

// SetValue writes value at the current focus, creating whatever structure
// (edge splits, new branch nodes) is needed to address it, and returns the
// previous value if there was one.
func (z *WriteZipper[V]) SetValue(value V) (V, bool) {
	old, ok, newOrigin := insertPath(z.cfg, z.origin, z.focus, value)
	z.origin = newOrigin
	z.commit(newOrigin)
	return old, ok
}

// RemoveValue deletes the value at the current focus, returning it if
// present, and prunes any interior node the removal leaves childless and
// valueless.
func (z *WriteZipper[V]) RemoveValue() (V, bool) {
	old, ok, newOrigin := removePath(z.cfg, z.origin, z.focus)
	z.origin = newOrigin
	z.commit(newOrigin)
	return old, ok
}

// graft replaces the entire subtree at the current focus with src's whole
// content (its value at the empty path becomes the focus's value, and so
// on down). src is consumed: its handle is transferred to this zipper's
// tree rather than copied, matching the algebraic engine's structural
// sharing (see algebra.go); pass a Retain()'d handle if the caller still
// needs src afterwards.
func (z *WriteZipper[V]) graft(src NodeHandle[V]) {
	newOrigin := graftPath(z.cfg, z.origin, z.focus, src)
	z.origin = newOrigin
	z.commit(newOrigin)
}

// GraftMap replaces the entire subtree at the current focus with src's whole
// content, the same way graft does from a raw handle. Unlike graft's
// internal consume convention, src itself is left untouched: GraftMap only
// retains src's root under its own read lock, so the source map is still
// usable afterward, matching the way Join/Meet/Subtract/Restrict never
// mutate their operands.
func (z *WriteZipper[V]) GraftMap(src *PathMap[V]) {
	src.mu.RLock()
	h := src.root.Retain()
	src.mu.RUnlock()
	z.graft(h)
}

// TakeMap detaches the subtree at the current focus into a standalone
// PathMap and leaves nothing behind at the focus, the way lifting a branch
// off one trie and replanting it as its own would. At a MidEdge focus the
// taken map holds the rest of that edge and everything below it. If the
// focus is OffTrie, it returns an empty map without disturbing this
// zipper's tree.
func (z *WriteZipper[V]) TakeMap() *PathMap[V] {
	taken, newOrigin := takePath(z.cfg, z.origin, z.focus)
	z.origin = newOrigin
	z.commit(newOrigin)
	if taken.IsNil() {
		taken = newNodeHandle[V](newEmptyNode[V]())
	}
	out := New[V](z.cfg)
	out.root.Release()
	out.root = taken
	return out
}

// combineAt extracts the subtree at the current focus, combines it with
// other's root using op via the same lockstep walk PathMap's Join/Meet/
// Subtract use, and grafts the result back at the focus. other is only
// read: its root is Retain()'d under a read lock and released once the
// combine finishes.
func (z *WriteZipper[V]) combineAt(other *PathMap[V], op algebraOp) {
	other.mu.RLock()
	otherRoot := other.root.Retain()
	other.mu.RUnlock()

	extracted, newOrigin := takePath(z.cfg, z.origin, z.focus)
	if extracted.IsNil() {
		extracted = newNodeHandle[V](newEmptyNode[V]())
	}
	combined := combine(z.cfg, op, extracted, otherRoot)
	extracted.Release()
	otherRoot.Release()

	newOrigin = graftPath(z.cfg, newOrigin, z.focus, combined)
	z.origin = newOrigin
	z.commit(newOrigin)
}

// JoinMap merges other's content into the subtree at the current focus,
// following the same value-precedence and sharing rules as PathMap.Join.
func (z *WriteZipper[V]) JoinMap(other *PathMap[V]) {
	z.combineAt(other, opJoin)
}

// MeetMap restricts the subtree at the current focus to the paths also
// present in other, following the same rules as PathMap.Meet.
func (z *WriteZipper[V]) MeetMap(other *PathMap[V]) {
	z.combineAt(other, opMeet)
}

// SubtractMap removes from the subtree at the current focus every path that
// carries a value in other, following the same rules as PathMap.Subtract.
func (z *WriteZipper[V]) SubtractMap(other *PathMap[V]) {
	z.combineAt(other, opSubtract)
}

// RestrictMap keeps only the parts of the subtree at the current focus whose
// path has some prefix present in prefixes, following the same rules as
// PathMap.Restrict.
func (z *WriteZipper[V]) RestrictMap(prefixes *PathMap[V]) {
	prefixes.mu.RLock()
	prefixesRoot := prefixes.root.Retain()
	prefixes.mu.RUnlock()

	extracted, newOrigin := takePath(z.cfg, z.origin, z.focus)
	if extracted.IsNil() {
		extracted = newNodeHandle[V](newEmptyNode[V]())
	}
	restricted := restrictNode(z.cfg, extracted, prefixesRoot, false)
	extracted.Release()
	prefixesRoot.Release()

	newOrigin = graftPath(z.cfg, newOrigin, z.focus, restricted)
	z.origin = newOrigin
	z.commit(newOrigin)
}

// DropHead drops the first n bytes off every path in the subtree at the
// current focus, the same way PathMap.DropHead does for a whole map, and
// grafts the result back at the focus in their place.
func (z *WriteZipper[V]) DropHead(n int) {
	extracted, newOrigin := takePath(z.cfg, z.origin, z.focus)
	if extracted.IsNil() {
		extracted = newNodeHandle[V](newEmptyNode[V]())
	}
	parts := dropHeadCollect(z.cfg, extracted, n)
	extracted.Release()

	var acc NodeHandle[V]
	if len(parts) == 0 {
		acc = newNodeHandle[V](newEmptyNode[V]())
	} else {
		acc = parts[0]
		for _, p := range parts[1:] {
			merged := combine(z.cfg, opJoin, acc, p)
			acc.Release()
			p.Release()
			acc = merged
		}
	}

	newOrigin = graftPath(z.cfg, newOrigin, z.focus, acc)
	z.origin = newOrigin
	z.commit(newOrigin)
}

// graftPath descends to path (cloning/splitting exactly like insertPath)
// and replaces whatever is there with src wholesale.
func graftPath[V any](cfg Config, root NodeHandle[V], path []byte, src NodeHandle[V]) NodeHandle[V] {
	if len(path) == 0 {
		// A head-issued zipper's origin is the very reference held in
		// this slot; grafting it onto itself must not drop that reference.
		if root.node != src.node {
			root.Release()
		}
		return src
	}
	h := root.cloneForCoW(cfg)
	n := h.node
	if n.variant == VariantArenaCompact {
		n = n.resolved(cfg)
		h = newNodeHandle(n)
		root.Release()
	}
	e := n.childEdge(cfg, path[0])
	if e == nil {
		n.setChild(cfg, path[0], edge[V]{ext: append([]byte(nil), path...), child: src})
		return h
	}
	shared := commonPrefixLen(path, e.ext)
	switch {
	case shared == len(e.ext):
		newChild := graftPath(cfg, e.child, path[shared:], src)
		n.setChild(cfg, path[0], edge[V]{ext: e.ext, child: newChild})
	case shared == len(path):
		// path ends partway through this edge (a MidEdge focus): grafting
		// replaces the whole subtree from here down, so the edge just
		// shortens to path and whatever used to hang off the remainder
		// (the old tail bytes and old child) is discarded, not preserved
		// underneath src.
		n.setChild(cfg, path[0], edge[V]{ext: append([]byte(nil), path...), child: src})
		e.child.Release()
	default:
		oldRemaining := append([]byte(nil), e.ext[shared:]...)
		newRemaining := append([]byte(nil), path[shared:]...)
		oldChild := e.child.Retain()
		branch := &trieNode[V]{variant: VariantSparse, bridgeTail: -1}
		branch.setChild(cfg, oldRemaining[0], edge[V]{ext: oldRemaining, child: oldChild})
		branch.setChild(cfg, newRemaining[0], edge[V]{ext: newRemaining, child: src})
		n.setChild(cfg, path[0], edge[V]{ext: append([]byte(nil), path[:shared]...), child: newNodeHandle(branch)})
		e.child.Release()
	}
	return h
}
