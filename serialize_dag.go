package pathmap

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/crypto/blake2b"
)

const (
	dagMagic   = "PMDG"
	dagVersion = 1
)

// hasherPool recycles blake2b-128 state the way the teacher's keccak helper
// pools its hash.Hash: content-hashing every node of a large tree allocates
// one hasher per call otherwise, and blake2b's pure-Go path (no cgo, unlike
// the teacher's optional sha3 acceleration) makes the allocation cost the
// dominant one rather than the hashing itself.
var hasherPool = sync.Pool{
	New: func() any {
		h, err := blake2b.New(16, nil)
		if err != nil {
			panic(err)
		}
		return h
	},
}

func hashDAGRecord(value []byte, children [][16]byte, keys []byte, exts [][]byte) [16]byte {
	h := hasherPool.Get().(interface {
		io.Writer
		Sum([]byte) []byte
		Reset()
	})
	defer func() {
		h.Reset()
		hasherPool.Put(h)
	}()
	h.Write(value)
	h.Write(keys)
	for i, e := range exts {
		h.Write(e)
		h.Write(children[i][:])
	}
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// dagRecord is one deduplicated node in the DAG stream: its own value plus
// each child edge addressed by index into the same record table, always at
// a lower index since records are emitted in post-order.
type dagRecord[V any] struct {
	value    *V
	keys     []byte
	exts     [][]byte
	children []uint32
}

// WriteDAG encodes m with structural sharing preserved: every node is
// content-hashed (blake2b-128 over its value and the hashes of its already-
// hashed children) and written at most once, with later references pointing
// back to the earlier record by index. The record table is zlib-compressed
// as a whole, the way the teacher's export tool wraps its account stream in
// gzip.
func (m *PathMap[V]) WriteDAG(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[[16]byte]uint32)
	var records []dagRecord[V]
	if _, _, err := encodeDAGNode(m.root.node.resolved(m.cfg), m.cfg, seen, &records); err != nil {
		return err
	}

	if _, err := w.Write([]byte(dagMagic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{dagVersion}); err != nil {
		return err
	}
	zw := zlib.NewWriter(w)
	if err := writeDAGRecords(zw, records); err != nil {
		return err
	}
	return zw.Close()
}

func encodeDAGNode[V any](n *trieNode[V], cfg Config, seen map[[16]byte]uint32, records *[]dagRecord[V]) ([16]byte, uint32, error) {
	n = n.resolved(cfg)

	var valueBytes []byte
	if n.value != nil {
		var vb bytes.Buffer
		if err := gob.NewEncoder(&vb).Encode(*n.value); err != nil {
			return [16]byte{}, 0, fmt.Errorf("pathmap: encoding value: %w", err)
		}
		valueBytes = vb.Bytes()
	}

	type child struct {
		b     byte
		ext   []byte
		hash  [16]byte
		index uint32
	}
	var kids []child
	var walkErr error
	n.forEachEdge(cfg, func(b byte, e *edge[V]) bool {
		h, idx, err := encodeDAGNode(e.child.node, cfg, seen, records)
		if err != nil {
			walkErr = err
			return false
		}
		kids = append(kids, child{b: b, ext: e.ext, hash: h, index: idx})
		return true
	})
	if walkErr != nil {
		return [16]byte{}, 0, walkErr
	}
	sort.Slice(kids, func(i, j int) bool { return kids[i].b < kids[j].b })

	keys := make([]byte, len(kids))
	exts := make([][]byte, len(kids))
	childHashes := make([][16]byte, len(kids))
	childIdx := make([]uint32, len(kids))
	for i, k := range kids {
		keys[i] = k.b
		exts[i] = k.ext
		childHashes[i] = k.hash
		childIdx[i] = k.index
	}

	hash := hashDAGRecord(valueBytes, childHashes, keys, exts)
	if idx, ok := seen[hash]; ok {
		return hash, idx, nil
	}

	var value *V
	if n.value != nil {
		v := *n.value
		value = &v
	}
	idx := uint32(len(*records))
	*records = append(*records, dagRecord[V]{value: value, keys: keys, exts: exts, children: childIdx})
	seen[hash] = idx
	return hash, idx, nil
}

func writeDAGRecords[V any](w io.Writer, records []dagRecord[V]) error {
	var uv [binary.MaxVarintLen64]byte
	if err := writeUvarint(w, uv[:], uint64(len(records))); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writeLinearValue(w, rec.value); err != nil {
			return err
		}
		if err := writeUvarint(w, uv[:], uint64(len(rec.keys))); err != nil {
			return err
		}
		for i, b := range rec.keys {
			if _, err := w.Write([]byte{b}); err != nil {
				return err
			}
			if err := writeUvarint(w, uv[:], uint64(len(rec.exts[i]))); err != nil {
				return err
			}
			if _, err := w.Write(rec.exts[i]); err != nil {
				return err
			}
			if err := writeUvarint(w, uv[:], uint64(rec.children[i])); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadDAG decodes a stream produced by WriteDAG, reconstructing shared
// subtrees as shared NodeHandles rather than duplicating them, so a large
// map with many repeated small subtrees decodes back to the same memory
// footprint it was encoded from.
func ReadDAG[V any](r io.Reader, cfg Config) (*PathMap[V], error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if string(header[:4]) != dagMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrSerialization)
	}
	if header[4] != dagVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSerialization, header[4])
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	defer zr.Close()

	cfg = cfg.withDefaults()
	root, err := readDAGRecords[V](zr, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	m := New[V](cfg)
	m.root.Release()
	m.root = root
	return m, nil
}

func readDAGRecords[V any](r io.Reader, cfg Config) (NodeHandle[V], error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufioByteReader{r}
	}
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return NodeHandle[V]{}, err
	}
	if count == 0 {
		return newNodeHandle[V](newEmptyNode[V]()), nil
	}

	records := make([]NodeHandle[V], count)
	for i := uint64(0); i < count; i++ {
		value, err := readLinearValueFrom[V](r, br)
		if err != nil {
			return NodeHandle[V]{}, err
		}
		n := &trieNode[V]{variant: VariantSparse, value: value, bridgeTail: -1}
		keyCount, err := binary.ReadUvarint(br)
		if err != nil {
			return NodeHandle[V]{}, err
		}
		for k := uint64(0); k < keyCount; k++ {
			var bBuf [1]byte
			if _, err := io.ReadFull(r, bBuf[:]); err != nil {
				return NodeHandle[V]{}, err
			}
			extLen, err := binary.ReadUvarint(br)
			if err != nil {
				return NodeHandle[V]{}, err
			}
			ext := make([]byte, extLen)
			if _, err := io.ReadFull(r, ext); err != nil {
				return NodeHandle[V]{}, err
			}
			childIdx, err := binary.ReadUvarint(br)
			if err != nil {
				return NodeHandle[V]{}, err
			}
			n.setChild(cfg, bBuf[0], edge[V]{ext: ext, child: records[childIdx].Retain()})
		}
		records[i] = newNodeHandle(n)
	}

	for i := uint64(0); i < count-1; i++ {
		records[i].Release()
	}
	return records[count-1], nil
}

// readLinearValueFrom mirrors readLinearValue but works against a plain
// io.Reader paired with an io.ByteReader, since the DAG stream is read off
// a zlib.Reader rather than a *bytes.Reader.
func readLinearValueFrom[V any](r io.Reader, br io.ByteReader) (*V, error) {
	tag, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	vlen, err := binary.ReadUvarint(br)
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

type bufioByteReader struct {
	io.Reader
}

func (b bufioByteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.Reader, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
