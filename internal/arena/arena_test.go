package arena

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_AnonymousRoundTrip(t *testing.T) {
	s, err := Open(Config{PageCacheSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	data := []byte("hello, arena")
	ref, err := s.Alloc(data)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	got, err := s.Read(ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestStore_SmallRecordsPackOntoSharedPage(t *testing.T) {
	s, err := Open(Config{PageCacheSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	a, err := s.Alloc([]byte("aaaa"))
	if err != nil {
		t.Fatalf("Alloc a: %v", err)
	}
	b, err := s.Alloc([]byte("bbbb"))
	if err != nil {
		t.Fatalf("Alloc b: %v", err)
	}
	if a.Page != b.Page {
		t.Errorf("expected both small records to share page %d, got %d and %d", a.Page, a.Page, b.Page)
	}
	if a.Off == b.Off {
		t.Errorf("expected distinct offsets on the shared page")
	}
}

func TestStore_LargeRecordGetsItsOwnPage(t *testing.T) {
	s, err := Open(Config{PageCacheSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	small, err := s.Alloc([]byte("tiny"))
	if err != nil {
		t.Fatalf("Alloc small: %v", err)
	}
	large := bytes.Repeat([]byte("x"), smallCeiling+1)
	big, err := s.Alloc(large)
	if err != nil {
		t.Fatalf("Alloc large: %v", err)
	}
	if big.Page == small.Page {
		t.Errorf("expected the oversized record to land on its own page")
	}
	got, err := s.Read(big)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Errorf("large record round trip mismatch")
	}
}

func TestStore_AllocRejectsOversizedRecord(t *testing.T) {
	s, err := Open(Config{PageCacheSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, err = s.Alloc(make([]byte, PageSize+1))
	if err == nil {
		t.Fatalf("expected an error allocating a record larger than a page")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.arena")

	s, err := Open(Config{Path: path, PageCacheSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ref, err := s.Alloc([]byte("persisted"))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected image file to exist: %v", err)
	}
	if stat.Size()%PageSize != 0 {
		t.Errorf("expected image size to be a multiple of PageSize, got %d", stat.Size())
	}

	reopened, err := Open(Config{Path: path, PageCacheSize: 4})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Read(ref)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("got %q after reopen, want %q", got, "persisted")
	}
}

func TestStore_OpenRejectsCorruptImageSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.arena")
	if err := os.WriteFile(path, make([]byte, PageSize/2), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(Config{Path: path}); err == nil {
		t.Fatalf("expected Open to reject a file whose size is not a multiple of PageSize")
	}
}

func TestStore_FreeDropsFullyFreedPageFromCache(t *testing.T) {
	s, err := Open(Config{PageCacheSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ref, err := s.Alloc([]byte("solo"))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := s.Free(ref); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if _, found := s.cache.Get(int64(ref.Page)); found {
		t.Errorf("expected page to be evicted from cache after its sole record was freed")
	}
}
