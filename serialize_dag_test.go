package pathmap

import (
	"bytes"
	"errors"
	"testing"
)

func TestDAG_RoundTrip(t *testing.T) {
	m := New[string](DefaultConfig)
	m.Insert([]byte("apple"), "fruit")
	m.Insert([]byte("application"), "software")
	m.Insert(nil, "root")

	var buf bytes.Buffer
	if err := m.WriteDAG(&buf); err != nil {
		t.Fatalf("WriteDAG: %v", err)
	}

	got, err := ReadDAG[string](&buf, DefaultConfig)
	if err != nil {
		t.Fatalf("ReadDAG: %v", err)
	}
	for path, want := range map[string]string{"apple": "fruit", "application": "software", "": "root"} {
		v, ok := got.Get([]byte(path))
		if !ok || v != want {
			t.Errorf("Get(%q) = %q, %v; want %q, true", path, v, ok, want)
		}
	}
}

func TestDAG_DeduplicatesIdenticalSubtrees(t *testing.T) {
	m := New[string](DefaultConfig)
	m.Insert([]byte("a/leaf"), "same")
	m.Insert([]byte("b/leaf"), "same")

	seen := make(map[[16]byte]uint32)
	var records []dagRecord[string]
	if _, _, err := encodeDAGNode(m.root.node.resolved(m.cfg), m.cfg, seen, &records); err != nil {
		t.Fatalf("encodeDAGNode: %v", err)
	}
	// Both "a/leaf" and "b/leaf" terminate in a value-only leaf node with an
	// identical value and no children; they must hash to the same record
	// rather than being emitted twice.
	leafRecords := 0
	for _, rec := range records {
		if rec.value != nil && *rec.value == "same" && len(rec.keys) == 0 {
			leafRecords++
		}
	}
	if leafRecords != 1 {
		t.Errorf("expected the two identical leaves to dedupe into 1 record, got %d", leafRecords)
	}
}

func TestDAG_RoundTripPreservesStructuralSharing(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("x/leaf"), 7)
	m.Insert([]byte("y/leaf"), 7)

	var buf bytes.Buffer
	if err := m.WriteDAG(&buf); err != nil {
		t.Fatalf("WriteDAG: %v", err)
	}
	got, err := ReadDAG[int](&buf, DefaultConfig)
	if err != nil {
		t.Fatalf("ReadDAG: %v", err)
	}

	xLeaf := got.root.node.childEdge(got.cfg, 'x').child.node
	yLeaf := got.root.node.childEdge(got.cfg, 'y').child.node
	if xLeaf != yLeaf {
		t.Errorf("expected the two decoded 'leaf' subtrees to share the same node, got distinct allocations")
	}
}

func TestDAG_RejectsBadMagic(t *testing.T) {
	if _, err := ReadDAG[int](bytes.NewReader([]byte("nope, not a dag stream")), DefaultConfig); !errors.Is(err, ErrSerialization) {
		t.Fatalf("expected ErrSerialization on bad magic, got %v", err)
	}
}

func TestDAG_EmptyMapRoundTrips(t *testing.T) {
	m := New[int](DefaultConfig)
	var buf bytes.Buffer
	if err := m.WriteDAG(&buf); err != nil {
		t.Fatalf("WriteDAG: %v", err)
	}
	got, err := ReadDAG[int](&buf, DefaultConfig)
	if err != nil {
		t.Fatalf("ReadDAG: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("expected an empty map to round trip as empty")
	}
}
