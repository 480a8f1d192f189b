package pathmap

import "testing"

func TestNodeHandle_RetainReleaseBalances(t *testing.T) {
	h := newNodeHandle[string](newEmptyNode[string]())
	if h.shared() {
		t.Fatalf("a freshly created handle must not be shared")
	}
	h2 := h.Retain()
	if !h.shared() || !h2.shared() {
		t.Fatalf("a second reference must mark the handle shared")
	}
	h2.Release()
	if h.shared() {
		t.Fatalf("releasing the second reference should drop back to exclusive")
	}
	h.Release()
}

func TestNodeHandle_IsNil(t *testing.T) {
	var zero NodeHandle[int]
	if !zero.IsNil() {
		t.Errorf("zero value handle should report IsNil")
	}
	h := newNodeHandle[int](newEmptyNode[int]())
	defer h.Release()
	if h.IsNil() {
		t.Errorf("a handle wrapping a real node should not report IsNil")
	}
}

func TestNodeHandle_RetainOnNilIsNoop(t *testing.T) {
	var zero NodeHandle[int]
	got := zero.Retain()
	if !got.IsNil() {
		t.Errorf("retaining the nil handle should stay nil")
	}
	zero.Release() // must not panic
}

func TestCloneForCoW_ExclusiveReusesSameNode(t *testing.T) {
	cfg := DefaultConfig.withDefaults()
	h := newNodeHandle[int](newEmptyNode[int]())
	clone := h.cloneForCoW(cfg)
	if clone.node != h.node {
		t.Errorf("an exclusively owned handle should be mutated in place, not copied")
	}
	clone.Release()
}

func TestCloneForCoW_SharedProducesDistinctNode(t *testing.T) {
	cfg := DefaultConfig.withDefaults()
	h := newNodeHandle[int](newEmptyNode[int]())
	h2 := h.Retain()
	clone := h.cloneForCoW(cfg)
	if clone.node == h2.node {
		t.Errorf("cloning a shared handle must allocate a fresh node")
	}
	if h2.shared() {
		t.Errorf("cloneForCoW should have released h's share, leaving h2 exclusive")
	}
	clone.Release()
	h2.Release()
}

func TestCloneForCoW_CountsSharedClonesOnly(t *testing.T) {
	cfg := DefaultConfig
	cfg.EnableCounters = true
	m := New[int](cfg)
	m.Insert([]byte("a"), 1)
	if got := m.Counters().CoWClones; got != 0 {
		t.Fatalf("inserting into an exclusively owned map should not clone, got %d", got)
	}

	snapshot := m.ReadZipper()
	defer snapshot.Close()
	m.Insert([]byte("b"), 2)
	if got := m.Counters().CoWClones; got == 0 {
		t.Fatalf("inserting while a read zipper shares the root should count at least one clone")
	}
}
