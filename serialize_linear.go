package pathmap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

const (
	linearMagic   = "PMLN"
	linearVersion = 1
)

// hashingWriter mirrors every byte written through it into an xxhash
// digest, so WriteLinear can compute the trailing checksum in one pass
// instead of buffering the whole encoded tree first.
type hashingWriter struct {
	w io.Writer
	h *xxhash.Digest
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	hw.h.Write(p)
	return hw.w.Write(p)
}

// WriteLinear encodes m as a pre-order traversal: for every node, whether it
// carries a value and (if so) its gob-encoded bytes, followed by its child
// count and, for each child, the edge's first byte, extension length and
// bytes, then the child node recursively. The stream ends with an 8-byte
// big-endian xxhash64 checksum of everything written before it. Linear is
// round-trippable but not sharing-preserving: a DAG collapsed by repeated
// structural sharing is re-expanded into a tree on decode, exactly like the
// teacher's own export path collapses its trie to a flat account stream.
func (m *PathMap[V]) WriteLinear(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bw := bufio.NewWriter(w)
	hw := &hashingWriter{w: bw, h: xxhash.New()}
	if _, err := hw.Write([]byte(linearMagic)); err != nil {
		return err
	}
	if _, err := hw.Write([]byte{linearVersion}); err != nil {
		return err
	}
	if err := writeLinearNode(hw, m.root.node.resolved(m.cfg), m.cfg); err != nil {
		return err
	}
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], hw.h.Sum64())
	if _, err := bw.Write(sum[:]); err != nil {
		return err
	}
	return bw.Flush()
}

func writeLinearNode[V any](w io.Writer, n *trieNode[V], cfg Config) error {
	n = n.resolved(cfg)
	if err := writeLinearValue(w, n.value); err != nil {
		return err
	}
	var uv [binary.MaxVarintLen64]byte
	count := n.childCount(cfg)
	if err := writeUvarint(w, uv[:], uint64(count)); err != nil {
		return err
	}
	var walkErr error
	n.forEachEdge(cfg, func(b byte, e *edge[V]) bool {
		if _, err := w.Write([]byte{b}); err != nil {
			walkErr = err
			return false
		}
		if err := writeUvarint(w, uv[:], uint64(len(e.ext))); err != nil {
			walkErr = err
			return false
		}
		if _, err := w.Write(e.ext); err != nil {
			walkErr = err
			return false
		}
		walkErr = writeLinearNode(w, e.child.node, cfg)
		return walkErr == nil
	})
	return walkErr
}

func writeLinearValue[V any](w io.Writer, value *V) error {
	if value == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	var vb bytes.Buffer
	if err := gob.NewEncoder(&vb).Encode(*value); err != nil {
		return fmt.Errorf("pathmap: encoding value: %w", err)
	}
	var uv [binary.MaxVarintLen64]byte
	if err := writeUvarint(w, uv[:], uint64(vb.Len())); err != nil {
		return err
	}
	_, err := w.Write(vb.Bytes())
	return err
}

func writeUvarint(w io.Writer, scratch []byte, v uint64) error {
	n := binary.PutUvarint(scratch, v)
	_, err := w.Write(scratch[:n])
	return err
}

// ReadLinear decodes a stream produced by WriteLinear into a fresh PathMap,
// verifying the trailing checksum before trusting any of the body. cfg
// configures the resulting map the same way New does (zero thresholds take
// DefaultConfig's values).
func ReadLinear[V any](r io.Reader, cfg Config) (*PathMap[V], error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < len(linearMagic)+1+8 {
		return nil, ErrSerialization
	}
	if string(data[:len(linearMagic)]) != linearMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrSerialization)
	}
	if data[len(linearMagic)] != linearVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSerialization, data[len(linearMagic)])
	}
	body := data[:len(data)-8]
	want := binary.BigEndian.Uint64(data[len(data)-8:])
	if xxhash.Sum64(body) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrSerialization)
	}

	br := bytes.NewReader(data[len(linearMagic)+1 : len(data)-8])
	cfg = cfg.withDefaults()
	root, err := readLinearNode[V](br, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	m := New[V](cfg)
	m.root.Release()
	m.root = newNodeHandle(root)
	return m, nil
}

func readLinearNode[V any](r *bytes.Reader, cfg Config) (*trieNode[V], error) {
	value, err := readLinearValue[V](r)
	if err != nil {
		return nil, err
	}
	n := &trieNode[V]{variant: VariantSparse, value: value, bridgeTail: -1}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		extLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		ext := make([]byte, extLen)
		if _, err := io.ReadFull(r, ext); err != nil {
			return nil, err
		}
		child, err := readLinearNode[V](r, cfg)
		if err != nil {
			return nil, err
		}
		n.setChild(cfg, b, edge[V]{ext: ext, child: newNodeHandle(child)})
	}
	return n, nil
}

func readLinearValue[V any](r *bytes.Reader) (*V, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	vlen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	vb := make([]byte, vlen)
	if _, err := io.ReadFull(r, vb); err != nil {
		return nil, err
	}
	var v V
	if err := gob.NewDecoder(bytes.NewReader(vb)).Decode(&v); err != nil {
		return nil, fmt.Errorf("pathmap: decoding value: %w", err)
	}
	return &v, nil
}
