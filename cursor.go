package pathmap

// CursorState classifies where a zipper's focus sits relative to the trie's
// actual structure.
type CursorState int

const (
	// AtNode means the focus lands exactly on a node boundary: the path
	// consumed so far exactly matches some sequence of whole edges.
	AtNode CursorState = iota

	// MidEdge means the focus lands strictly inside an edge's prefix
	// extension: the trie has a value or further branching beyond this
	// point along the same edge, but no node exists at the focus itself.
	MidEdge

	// OffTrie means no edge of the trie agrees with the path taken to
	// reach the focus: either the very next byte has no outgoing edge, or
	// the path diverges from an edge's extension partway through.
	OffTrie
)

func (s CursorState) String() string {
	switch s {
	case AtNode:
		return "AtNode"
	case MidEdge:
		return "MidEdge"
	default:
		return "OffTrie"
	}
}

// position is the result of locating an absolute (relative-to-subtree-root)
// path within a trie. It captures exactly enough context for a zipper to
// answer Value/ChildMask queries and, on the write side, splice a
// replacement in without re-walking from the top.
type position[V any] struct {
	state CursorState

	// Valid when state == AtNode.
	node *trieNode[V]

	// Valid when state == MidEdge: parent is the node the edge hangs off
	// of, edge is that outgoing edge, and offset is how many of its
	// extension bytes the path has already consumed (0 < offset <
	// len(edge.ext)).
	parent *trieNode[V]
	edge   *edge[V]
	offset int
}

// locate walks path from root, classifying the endpoint per CursorState.
func locate[V any](cfg Config, root *trieNode[V], path []byte) position[V] {
	n := root
	for {
		if len(path) == 0 {
			return position[V]{state: AtNode, node: n}
		}
		e := n.childEdge(cfg, path[0])
		if e == nil {
			return position[V]{state: OffTrie}
		}
		m := commonPrefixLen(path, e.ext)
		switch {
		case m == len(e.ext) && m == len(path):
			return position[V]{state: AtNode, node: e.child.node.resolved(cfg)}
		case m == len(e.ext):
			path = path[m:]
			n = e.child.node.resolved(cfg)
		case m == len(path):
			return position[V]{state: MidEdge, parent: n, edge: e, offset: m}
		default:
			return position[V]{state: OffTrie}
		}
	}
}
