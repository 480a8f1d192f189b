package pathmap

import "testing"

func TestReadZipper_NavigationStates(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("cat"), 1)
	m.Insert([]byte("car"), 2)

	z := m.ReadZipper()
	defer z.Close()

	if got := z.Descend([]byte("ca")); got != 2 {
		t.Fatalf("expected to descend 2 bytes into 'ca', got %d", got)
	}
	if z.State() != MidEdge && z.State() != AtNode {
		t.Fatalf("expected 'ca' to be a live position, got %v", z.State())
	}

	if !z.DescendByte('t') {
		t.Fatalf("expected 't' to extend to 'cat'")
	}
	if v, ok := z.Value(); !ok || v != 1 {
		t.Fatalf("expected value 1 at 'cat', got %d ok=%v", v, ok)
	}

	if z.DescendByte('x') {
		t.Fatalf("expected no edge for 'catx'")
	}

	if !z.Ascend(1) {
		t.Fatalf("expected to ascend back to 'ca'")
	}
	if !z.DescendByte('r') {
		t.Fatalf("expected 'r' to extend to 'car'")
	}
	if v, ok := z.Value(); !ok || v != 2 {
		t.Fatalf("expected value 2 at 'car', got %d ok=%v", v, ok)
	}
}

func TestReadZipper_OffTrieAndDangling(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("hello"), 1)

	z := m.ReadZipper()
	defer z.Close()

	z.Descend([]byte("nope"))
	if !z.IsDangling() {
		t.Fatalf("expected a nonexistent path to land OffTrie")
	}
	if z.IsValue() || z.IsEmptySpace() {
		t.Fatalf("a dangling focus should not report IsValue or IsEmptySpace")
	}
}

func TestReadZipper_AscendToByte(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("a/b/c"), 1)

	z := m.ReadZipper()
	defer z.Close()
	z.Descend([]byte("a/b/c"))

	if !z.AscendToByte('/') {
		t.Fatalf("expected to find a '/' ancestor")
	}
	if string(z.Path()) != "a/b/" {
		t.Fatalf("expected focus 'a/b/', got %q", z.Path())
	}
	if z.AscendToByte('z') {
		t.Fatalf("expected no 'z' byte along the ascended path")
	}
}

func TestReadZipper_ChildBytes(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("aa"), 1)
	m.Insert([]byte("ab"), 2)
	m.Insert([]byte("ac"), 3)

	z := m.ReadZipper()
	defer z.Close()
	z.DescendByte('a')

	got := z.ChildBytes()
	if len(got) != 3 || got[0] != 'a' || got[1] != 'b' || got[2] != 'c' {
		t.Fatalf("expected [a b c] in ascending order, got %v", got)
	}
}

func TestWriteZipper_SetAndRemoveValue(t *testing.T) {
	m := New[int](DefaultConfig)
	z := m.WriteZipper()

	z.Descend([]byte("k"))
	if old, ok := z.SetValue(1); ok {
		t.Fatalf("expected no previous value, got %d", old)
	}
	if old, ok := z.SetValue(2); !ok || old != 1 {
		t.Fatalf("expected previous value 1, got %d ok=%v", old, ok)
	}
	z.Close()

	if v, ok := m.Get([]byte("k")); !ok || v != 2 {
		t.Fatalf("expected the committed value to be visible on the map, got %d ok=%v", v, ok)
	}

	z2 := m.WriteZipper()
	z2.Descend([]byte("k"))
	if old, ok := z2.RemoveValue(); !ok || old != 2 {
		t.Fatalf("expected to remove 2, got %d ok=%v", old, ok)
	}
	z2.Close()
	if _, ok := m.Get([]byte("k")); ok {
		t.Fatalf("expected 'k' gone after RemoveValue")
	}
}

func TestWriteZipper_GraftMapLeavesSourceIntact(t *testing.T) {
	src := New[string](DefaultConfig)
	src.Insert([]byte("x"), "hello")
	src.Insert([]byte("y"), "world")

	dst := New[string](DefaultConfig)
	dst.Insert([]byte("prefix"), "placeholder")

	z := dst.WriteZipper()
	z.Descend([]byte("prefix"))
	z.GraftMap(src)
	z.Close()

	if v, ok := dst.Get([]byte("prefixx")); !ok || v != "hello" {
		t.Fatalf("expected grafted subtree under 'prefix', got %q ok=%v", v, ok)
	}
	if v, ok := dst.Get([]byte("prefixy")); !ok || v != "world" {
		t.Fatalf("expected grafted subtree under 'prefix', got %q ok=%v", v, ok)
	}
	if v, ok := src.Get([]byte("x")); !ok || v != "hello" {
		t.Fatalf("expected the source map to remain usable after GraftMap, got %q ok=%v", v, ok)
	}
}

func TestWriteZipper_TakeMapDetachesSubtree(t *testing.T) {
	m := New[string](DefaultConfig)
	m.Insert([]byte("branch/a"), "1")
	m.Insert([]byte("branch/b"), "2")
	m.Insert([]byte("keep"), "3")

	z := m.WriteZipper()
	z.Descend([]byte("branch"))
	taken := z.TakeMap()
	z.Close()

	if m.ContainsPath([]byte("branch")) {
		t.Fatalf("expected 'branch' to be gone from the source map after TakeMap")
	}
	if v, ok := m.Get([]byte("keep")); !ok || v != "3" {
		t.Fatalf("expected unrelated paths to survive TakeMap, got %q ok=%v", v, ok)
	}
	if v, ok := taken.Get([]byte("/a")); !ok || v != "1" {
		t.Fatalf("expected the taken map to hold the detached subtree, got %q ok=%v", v, ok)
	}
	if v, ok := taken.Get([]byte("/b")); !ok || v != "2" {
		t.Fatalf("expected the taken map to hold the detached subtree, got %q ok=%v", v, ok)
	}
}

func TestWriteZipper_JoinMapAtFocus(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("sub/a"), 1)

	other := New[int](DefaultConfig)
	other.Insert([]byte("b"), 2)

	z := m.WriteZipper()
	z.Descend([]byte("sub"))
	z.JoinMap(other)
	z.Close()

	if v, ok := m.Get([]byte("sub/a")); !ok || v != 1 {
		t.Fatalf("expected the original subtree entry to survive JoinMap, got %d ok=%v", v, ok)
	}
	if v, ok := m.Get([]byte("subb")); !ok || v != 2 {
		t.Fatalf("expected other's entries joined at the focus, got %d ok=%v", v, ok)
	}
}

func TestWriteZipper_SubtractMapAtFocus(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("sub/a"), 1)
	m.Insert([]byte("sub/b"), 2)

	mask := New[int](DefaultConfig)
	mask.Insert([]byte("/a"), 99)

	z := m.WriteZipper()
	z.Descend([]byte("sub"))
	z.SubtractMap(mask)
	z.Close()

	if m.ContainsPath([]byte("sub/a")) {
		t.Fatalf("expected 'sub/a' removed by SubtractMap")
	}
	if v, ok := m.Get([]byte("sub/b")); !ok || v != 2 {
		t.Fatalf("expected 'sub/b' to survive SubtractMap, got %d ok=%v", v, ok)
	}
}

func TestWriteZipper_DropHeadAtFocus(t *testing.T) {
	m := New[string](DefaultConfig)
	m.Insert([]byte("keep"), "x")
	m.Insert([]byte("sub/aa"), "1")
	m.Insert([]byte("sub/bb"), "2")

	z := m.WriteZipper()
	z.Descend([]byte("sub"))
	z.DropHead(1) // drop the leading '/' from each branch under 'sub'
	z.Close()

	if v, ok := m.Get([]byte("subaa")); !ok || v != "1" {
		t.Fatalf("expected 'subaa' after dropping the head byte, got %q ok=%v", v, ok)
	}
	if v, ok := m.Get([]byte("subbb")); !ok || v != "2" {
		t.Fatalf("expected 'subbb' after dropping the head byte, got %q ok=%v", v, ok)
	}
	if v, ok := m.Get([]byte("keep")); !ok || v != "x" {
		t.Fatalf("expected unrelated paths to survive DropHead, got %q ok=%v", v, ok)
	}
}
