package pathmap

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestZipperHead_DisjointPrefixesConcurrentInsert(t *testing.T) {
	m := New[int](DefaultConfig)
	head := m.ZipperHead()

	prefixes := [][]byte{[]byte("P1:"), []byte("P2:"), []byte("P3:")}
	zippers := make([]*WriteZipper[int], len(prefixes))
	for i, p := range prefixes {
		z, err := head.WriteZipperAt(p)
		if err != nil {
			t.Fatalf("WriteZipperAt(%q): %v", p, err)
		}
		zippers[i] = z
	}

	if _, err := head.WriteZipperAt([]byte("P1:sub")); !errors.Is(err, ErrExclusivityViolation) {
		t.Fatalf("expected ErrExclusivityViolation for an overlapping prefix, got %v", err)
	}

	const keysPerThread = 10000
	var wg sync.WaitGroup
	for i, z := range zippers {
		wg.Add(1)
		go func(i int, z *WriteZipper[int]) {
			defer wg.Done()
			for k := 0; k < keysPerThread; k++ {
				z.Descend([]byte(fmt.Sprintf("key%d", k)))
				z.SetValue(k)
				z.Reset()
			}
		}(i, z)
	}
	wg.Wait()

	for _, z := range zippers {
		z.Close()
	}
	head.Close()

	total := 0
	for i, p := range prefixes {
		for k := 0; k < keysPerThread; k++ {
			path := append(append([]byte(nil), p...), []byte(fmt.Sprintf("key%d", k))...)
			v, ok := m.Get(path)
			if !ok || v != k {
				t.Fatalf("prefix %d: Get(%q) = %d, %v; want %d, true", i, path, v, ok, k)
			}
			total++
		}
	}
	if total != 3*keysPerThread {
		t.Fatalf("expected %d keys total, checked %d", 3*keysPerThread, total)
	}
}

func TestZipperHead_ClosedHeadRejectsNewZippers(t *testing.T) {
	m := New[int](DefaultConfig)
	head := m.ZipperHead()
	head.Close()

	if _, err := head.WriteZipperAt([]byte("a")); !errors.Is(err, ErrZipperHeadClosed) {
		t.Fatalf("expected ErrZipperHeadClosed, got %v", err)
	}
}

func TestZipperHead_ReleasedPrefixCanBeReissued(t *testing.T) {
	m := New[int](DefaultConfig)
	head := m.ZipperHead()

	z, err := head.WriteZipperAt([]byte("a"))
	if err != nil {
		t.Fatalf("WriteZipperAt: %v", err)
	}
	z.SetValue(1)
	z.Close()

	z2, err := head.WriteZipperAt([]byte("a"))
	if err != nil {
		t.Fatalf("expected reissuing the same prefix to succeed once released, got %v", err)
	}
	z2.SetValue(2)
	z2.Close()
	head.Close()

	if v, ok := m.Get([]byte("a")); !ok || v != 2 {
		t.Fatalf("expected 2, got %d ok=%v", v, ok)
	}
}
