package pathmap

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/pathmap-go/pathmap/internal/arena"
)

// Arena promotion packs a whole small subtree into a single arena record:
// the ArenaCompact node's Ref addresses the encoded bytes of itself and
// every descendant. This keeps the format self-contained (no cross-record
// pointers to resolve) at the cost of only being able to arena-pack subtrees
// that, encoded, fit within one page; that limitation matches the variant's
// purpose of hosting many small, rarely-touched leaves rather than large
// interior structure, which stays Dense/Sparse/Bridge on the heap.

// tryPromoteToArena attempts to pack n (already resolved, not itself
// ArenaCompact) into store. It returns the promoted node and true on
// success, or n unchanged and false if the subtree does not fit a page or
// no arena is configured. A non-nil error means the store itself refused
// the allocation (ErrAlloc); a plain false with a nil error means the
// subtree was simply not a candidate (too small, or its encoding exceeds
// what the arena record format supports), which is routine and not an
// error at all.
func tryPromoteToArena[V any](cfg Config, store nodeStore, n *trieNode[V]) (*trieNode[V], bool, error) {
	if store == nil || n.variant == VariantArenaCompact {
		return n, false, nil
	}
	if n.childCount(cfg) < cfg.Arena.MinEvictThreshold {
		return n, false, nil
	}
	encoded, err := encodeArenaSubtree(n)
	if err != nil {
		return n, false, nil
	}
	if len(encoded) > arena.PageSize-2 {
		return n, false, nil
	}
	ref, err := store.Alloc(encoded)
	if err != nil {
		return n, false, fmt.Errorf("%w: %v", ErrAlloc, err)
	}
	return &trieNode[V]{
		variant:    VariantArenaCompact,
		arenaStore: store,
		arenaRef:   ref,
	}, true, nil
}

func encodeArenaSubtree[V any](n *trieNode[V]) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeArenaNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeArenaNode[V any](buf *bytes.Buffer, n *trieNode[V]) error {
	buf.WriteByte(byte(n.variant))
	if n.value != nil {
		buf.WriteByte(1)
		var vb bytes.Buffer
		if err := gob.NewEncoder(&vb).Encode(*n.value); err != nil {
			return fmt.Errorf("arena: encoding value: %w", err)
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(vb.Len()))
		buf.Write(lenBuf[:])
		buf.Write(vb.Bytes())
	} else {
		buf.WriteByte(0)
	}

	writeEdge := func(b byte, e *edge[V]) error {
		buf.WriteByte(b)
		if len(e.ext) > 255 {
			return fmt.Errorf("arena: edge extension of %d bytes exceeds 255", len(e.ext))
		}
		buf.WriteByte(byte(len(e.ext)))
		buf.Write(e.ext)
		if e.child.IsNil() {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		return writeArenaNode(buf, e.child.node)
	}

	switch n.variant {
	case VariantLine:
		if err := writeEdge(n.line.ext[0], &n.line); err != nil {
			return err
		}
	case VariantSparse:
		buf.WriteByte(byte(len(n.sparseKey)))
		for i, k := range n.sparseKey {
			if err := writeEdge(k, &n.sparseEdge[i]); err != nil {
				return err
			}
		}
	case VariantDense:
		for i := 0; i < 4; i++ {
			var wb [8]byte
			binary.BigEndian.PutUint64(wb[:], n.denseMask[i])
			buf.Write(wb[:])
		}
		var count int
		n.denseMask.forEach(func(byte) { count++ })
		i := 0
		var werr error
		n.denseMask.forEach(func(b byte) {
			if werr != nil {
				return
			}
			werr = writeEdge(b, &n.denseEdge[i])
			i++
		})
		if werr != nil {
			return werr
		}
	case VariantBridge:
		buf.WriteByte(byte(len(n.bridgeKey)))
		for i, k := range n.bridgeKey {
			if err := writeEdge(k, &n.bridgeEdge[i]); err != nil {
				return err
			}
		}
		if n.bridgeTail >= 0 {
			buf.WriteByte(1)
			if err := writeEdge(byte(n.bridgeTail), &n.bridgeTailEd); err != nil {
				return err
			}
		} else {
			buf.WriteByte(0)
		}
	}
	return nil
}

// decodeArenaNode reconstructs the full heap-resident subtree stored at ref.
// Every call re-materializes fresh nodes and handles; ArenaCompact reads are
// not cached, trading repeat-read cost for a simple, allocation-owning
// decode path.
func decodeArenaNode[V any](store nodeStore, ref arena.Ref) (*trieNode[V], error) {
	data, err := store.Read(ref)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	return readArenaNode[V](r)
}

func readArenaNode[V any](r *bytes.Reader) (*trieNode[V], error) {
	variantByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	n := &trieNode[V]{variant: Variant(variantByte), bridgeTail: -1}
	hasValue, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hasValue == 1 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, err
		}
		vlen := binary.BigEndian.Uint32(lenBuf[:])
		vb := make([]byte, vlen)
		if _, err := io.ReadFull(r, vb); err != nil {
			return nil, err
		}
		var v V
		if err := gob.NewDecoder(bytes.NewReader(vb)).Decode(&v); err != nil {
			return nil, fmt.Errorf("arena: decoding value: %w", err)
		}
		n.value = &v
	}

	readEdge := func() (byte, edge[V], error) {
		var e edge[V]
		b, err := r.ReadByte()
		if err != nil {
			return 0, e, err
		}
		extLen, err := r.ReadByte()
		if err != nil {
			return 0, e, err
		}
		if extLen > 0 {
			ext := make([]byte, extLen)
			if _, err := io.ReadFull(r, ext); err != nil {
				return 0, e, err
			}
			e.ext = ext
		}
		hasChild, err := r.ReadByte()
		if err != nil {
			return 0, e, err
		}
		if hasChild == 1 {
			child, err := readArenaNode[V](r)
			if err != nil {
				return 0, e, err
			}
			e.child = newNodeHandle(child)
		}
		return b, e, nil
	}

	switch n.variant {
	case VariantLine:
		b, e, err := readEdge()
		if err != nil {
			return nil, err
		}
		if e.ext == nil {
			e.ext = []byte{b}
		}
		n.line = e
	case VariantSparse:
		count, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(count); i++ {
			b, e, err := readEdge()
			if err != nil {
				return nil, err
			}
			n.sparseKey = append(n.sparseKey, b)
			n.sparseEdge = append(n.sparseEdge, e)
		}
	case VariantDense:
		for i := 0; i < 4; i++ {
			var wb [8]byte
			if _, err := io.ReadFull(r, wb[:]); err != nil {
				return nil, err
			}
			n.denseMask[i] = binary.BigEndian.Uint64(wb[:])
		}
		count := n.denseMask.popCount()
		n.denseEdge = make([]edge[V], count)
		for i := 0; i < count; i++ {
			_, e, err := readEdge()
			if err != nil {
				return nil, err
			}
			n.denseEdge[i] = e
		}
	case VariantBridge:
		count, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(count); i++ {
			b, e, err := readEdge()
			if err != nil {
				return nil, err
			}
			n.bridgeKey = append(n.bridgeKey, b)
			n.bridgeEdge = append(n.bridgeEdge, e)
		}
		hasTail, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if hasTail == 1 {
			b, e, err := readEdge()
			if err != nil {
				return nil, err
			}
			n.bridgeTail = int(b)
			n.bridgeTailEd = e
		}
	}
	return n, nil
}
