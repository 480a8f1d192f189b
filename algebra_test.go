package pathmap

import "testing"

func buildMap(t *testing.T, entries map[string]int) *PathMap[int] {
	t.Helper()
	m := New[int](DefaultConfig)
	for k, v := range entries {
		m.Insert([]byte(k), v)
	}
	return m
}

func assertEntries(t *testing.T, m *PathMap[int], want map[string]int) {
	t.Helper()
	for k, v := range want {
		got, ok := m.Get([]byte(k))
		if !ok || got != v {
			t.Errorf("Get(%q) = %d, %v; want %d, true", k, got, ok, v)
		}
	}
	for _, k := range []string{"__not_present__"} {
		if m.ContainsPath([]byte(k)) {
			t.Errorf("did not expect %q to be present", k)
		}
	}
}

func TestJoin_UnionsPathsLeftWinsTies(t *testing.T) {
	a := buildMap(t, map[string]int{"x": 1, "shared": 10})
	b := buildMap(t, map[string]int{"y": 2, "shared": 20})

	joined := a.Join(b)
	assertEntries(t, joined, map[string]int{"x": 1, "y": 2, "shared": 10})
}

func TestJoin_RightBiasedMerge(t *testing.T) {
	cfg := DefaultConfig
	cfg.RightBiasedMerge = true
	a := New[int](cfg)
	a.Insert([]byte("shared"), 10)
	b := New[int](cfg)
	b.Insert([]byte("shared"), 20)

	joined := a.Join(b)
	if v, _ := joined.Get([]byte("shared")); v != 20 {
		t.Errorf("expected right-biased merge to keep 20, got %d", v)
	}
}

func TestMeet_KeepsOnlyCommonPaths(t *testing.T) {
	a := buildMap(t, map[string]int{"x": 1, "shared": 10})
	b := buildMap(t, map[string]int{"y": 2, "shared": 20})

	met := a.Meet(b)
	if met.ContainsPath([]byte("x")) || met.ContainsPath([]byte("y")) {
		t.Errorf("expected Meet to drop paths not present in both operands")
	}
	assertEntries(t, met, map[string]int{"shared": 10})
}

func TestSubtract_MasksOutOtherPaths(t *testing.T) {
	a := buildMap(t, map[string]int{"x": 1, "shared": 10})
	b := buildMap(t, map[string]int{"shared": 20})

	sub := a.Subtract(b)
	assertEntries(t, sub, map[string]int{"x": 1})
	if sub.ContainsPath([]byte("shared")) {
		t.Errorf("expected Subtract to remove 'shared'")
	}
}

func TestSubtract_SelfIsEmpty(t *testing.T) {
	a := buildMap(t, map[string]int{"x": 1, "y": 2})
	sub := a.Subtract(a)
	if !sub.IsEmpty() {
		t.Errorf("expected a map subtracted from itself to be empty")
	}
}

func TestRestrict_KeepsSubtreesBelowMarkedPrefixes(t *testing.T) {
	data := buildMap(t, map[string]int{
		"books:don_quixote":  1,
		"books:great_gatsby": 2,
		"movies:jaws":        3,
	})
	prefixes := New[int](DefaultConfig)
	prefixes.Insert([]byte("books:"), 1)

	restricted := data.Restrict(prefixes)
	assertEntries(t, restricted, map[string]int{
		"books:don_quixote":  1,
		"books:great_gatsby": 2,
	})
	if restricted.ContainsPath([]byte("movies:jaws")) {
		t.Errorf("expected 'movies:jaws' excluded by Restrict")
	}
}

func TestDropHead_CollapsesCommonPrefix(t *testing.T) {
	data := buildMap(t, map[string]int{
		"books:don_quixote":  1,
		"books:great_gatsby": 2,
		"books:moby_dick":    3,
	})
	dropped := data.DropHead(len("books:"))
	assertEntries(t, dropped, map[string]int{
		"don_quixote":  1,
		"great_gatsby": 2,
		"moby_dick":    3,
	})
}

func TestDropHead_JoinsCollidingBranches(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert([]byte("aaX"), 1)
	m.Insert([]byte("bbX"), 2)

	dropped := m.DropHead(2)
	if v, ok := dropped.Get([]byte("X")); !ok || v != 1 {
		t.Fatalf("expected the two branches to collide and join at 'X', got %d ok=%v", v, ok)
	}
}

func TestDropHead_FocusValue(t *testing.T) {
	m := New[int](DefaultConfig)
	m.Insert(nil, 99)
	m.Insert([]byte("a"), 1)

	dropped := m.DropHead(0)
	if v, ok := dropped.Get(nil); !ok || v != 99 {
		t.Fatalf("expected drop_head(0) to keep the root's own value, got %d ok=%v", v, ok)
	}
	if v, ok := dropped.Get([]byte("a")); !ok || v != 1 {
		t.Fatalf("expected drop_head(0) to be a no-op copy, got %d ok=%v", v, ok)
	}
}

func TestJoin_SharesUnchangedSubtrees(t *testing.T) {
	a := buildMap(t, map[string]int{"x": 1})
	b := New[int](DefaultConfig)

	joined := a.Join(b)
	aEdge := a.root.node.childEdge(a.cfg, 'x')
	joinedEdge := joined.root.node.childEdge(joined.cfg, 'x')
	if aEdge == nil || joinedEdge == nil || aEdge.child.node != joinedEdge.child.node {
		t.Errorf("expected joining with an empty map to share a's 'x' subtree unchanged, not copy it")
	}
}
