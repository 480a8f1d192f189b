// Package arena implements the page-backed allocator behind the
// ArenaCompact node variant. Records of at most smallCeiling (64) bytes are
// packed several to a page (allocUpTo64); larger records, up to one page in
// size, get a page to themselves. The allocator is deliberately simple: it
// trades free-list sophistication for a small, auditable implementation,
// the same tradeoff the file this package is grounded on makes for its
// fixed-size stock records.
package arena

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/pathmap-go/pathmap/internal/common"
)

// PageSize is the fixed page size backing every arena image, matching the
// page size used by the container's on-disk page store.
const PageSize = 1 << 12

// smallCeiling is the largest record size eligible for allocUpTo64 packing.
// Anything bigger gets whole pages of its own.
const smallCeiling = 64

// Ref addresses one allocated record: the page it lives on, its byte offset
// within that page, and its encoded length. A page's first record starts
// at Off 0; Alloc returns the zero Ref alongside an error.
type Ref struct {
	Page uint32
	Off  uint16
	Len  uint16
}

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool {
	return r == Ref{}
}

// Config tunes a Store. See pathmap.ArenaConfig, which this mirrors at the
// package boundary so internal/arena has no dependency on the root package.
type Config struct {
	Path              string
	EvictThreshold    int
	MinEvictThreshold int
	PageCacheSize     int
}

type page struct {
	data  [PageSize]byte
	dirty bool
	// used is the number of live allocations on this page; Free drops the
	// page from the cache once used reaches zero. allocUpTo64 never goes
	// back to a page it has left, so freed space is not reused.
	used   int
	cursor uint16 // next free byte offset for small-record bump allocation
}

func (p *page) clear() {
	*p = page{}
}

// Store is a 4 KiB paged allocator. It behaves like a simple bump allocator
// per page for small records, and a whole-page allocator for large ones,
// backed by an *os.File that grows on demand and, once flushed, may be read
// back through a memory-mapped reader for pages the write path has not
// touched since.
type Store struct {
	mu sync.Mutex

	cfg  Config
	file *os.File
	// anonymous is true when cfg.Path is empty: the store never touches
	// disk and lives purely as heap-resident pages, matching Config.Arena
	// == nil at the pathmap.Config level except that some nodes have
	// already been promoted into arena form and need somewhere to live.
	anonymous bool

	pagesInFile int64
	cache       *common.LruCache[int64, *page]
	pool        sync.Pool

	// smallCursorPage is the page currently accepting allocUpTo64 bump
	// allocations; a new one is chosen once it can no longer fit a
	// request.
	smallCursorPage int64
	haveSmallCursor bool

	// ro is an optional read-only memory-mapped view of the backing file,
	// refreshed on Flush. Reads of pages not present in cache and not
	// dirtied since the last flush are served from it to avoid a syscall
	// per page fault under read-heavy workloads.
	ro *mmap.ReaderAt
}

// Open creates or reopens a page store at cfg.Path, or an anonymous
// heap-only store if cfg.Path is empty.
func Open(cfg Config) (*Store, error) {
	s := &Store{
		cfg:   cfg,
		cache: common.NewLruCache[int64, *page](cfg.PageCacheSize),
		pool:  sync.Pool{New: func() any { return new(page) }},
	}
	if cfg.Path == "" {
		s.anonymous = true
		return s, nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(cfg.Path)
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.Size()%PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("arena: invalid image size %d, expected multiple of %d", stat.Size(), PageSize)
	}
	s.file = f
	s.pagesInFile = stat.Size() / PageSize
	if s.pagesInFile > 0 {
		if ro, err := mmap.Open(cfg.Path); err == nil {
			s.ro = ro
		}
	}
	return s, nil
}

// Alloc encodes data into a fresh record and returns its Ref. Records up to
// smallCeiling bytes are packed onto a shared bump-allocated page; larger
// records, up to PageSize-2 bytes, get a single page to themselves.
func (s *Store) Alloc(data []byte) (Ref, error) {
	if len(data) > PageSize-2 {
		return Ref{}, fmt.Errorf("%w: record of %d bytes exceeds page capacity", errAlloc, len(data))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) <= smallCeiling {
		return s.allocUpTo64(data)
	}
	return s.allocWholePage(data)
}

var errAlloc = errors.New("arena")

// allocUpTo64 is the small-node packing strategy: bump-allocate within the
// current small-cursor page, spilling to a fresh page once the record would
// not fit. Every record is length-prefixed by its Ref.Len field alone (the
// page itself carries no per-record header), keeping packing density high
// for the common case of many tiny ArenaCompact leaves.
func (s *Store) allocUpTo64(data []byte) (Ref, error) {
	for {
		if !s.haveSmallCursor {
			pg, id, err := s.newPage()
			if err != nil {
				return Ref{}, err
			}
			pg.cursor = 0
			s.smallCursorPage = id
			s.haveSmallCursor = true
			s.putPage(id, pg)
		}
		id := s.smallCursorPage
		pg, err := s.getPage(id)
		if err != nil {
			return Ref{}, err
		}
		if int(pg.cursor)+len(data) > PageSize {
			s.haveSmallCursor = false
			continue
		}
		off := pg.cursor
		copy(pg.data[off:], data)
		pg.cursor += uint16(len(data))
		pg.used++
		pg.dirty = true
		return Ref{Page: uint32(id), Off: off, Len: uint16(len(data))}, nil
	}
}

func (s *Store) allocWholePage(data []byte) (Ref, error) {
	pg, id, err := s.newPage()
	if err != nil {
		return Ref{}, err
	}
	copy(pg.data[:], data)
	pg.dirty = true
	pg.used = 1
	s.putPage(id, pg)
	return Ref{Page: uint32(id), Off: 0, Len: uint16(len(data))}, nil
}

func (s *Store) newPage() (*page, int64, error) {
	id := s.pagesInFile
	s.pagesInFile++
	pg := s.pool.Get().(*page)
	pg.clear()
	return pg, id, nil
}

// Read decodes the record at ref back into a freshly allocated byte slice.
func (s *Store) Read(ref Ref) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pg, err := s.getPage(int64(ref.Page))
	if err != nil {
		return nil, err
	}
	out := make([]byte, ref.Len)
	copy(out, pg.data[ref.Off:int(ref.Off)+int(ref.Len)])
	return out, nil
}

// Free decrements the owning page's live-record count. Once a whole-page
// allocation's page (used == 1) or every small record on a page has been
// freed, the page is dropped from the cache; the space in the backing file
// is not reclaimed, matching this package's bump-only allocation strategy.
func (s *Store) Free(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pg, err := s.getPage(int64(ref.Page))
	if err != nil {
		return err
	}
	pg.used--
	if pg.used <= 0 {
		s.cache.Remove(int64(ref.Page))
	}
	return nil
}

func (s *Store) getPage(id int64) (*page, error) {
	if pg, found := s.cache.Get(id); found {
		return pg, nil
	}
	pg, err := s.readPage(id)
	if err != nil {
		return nil, err
	}
	s.putPage(id, pg)
	return pg, nil
}

func (s *Store) putPage(id int64, pg *page) {
	evictedID, evictedPage, ok := s.cache.Set(id, pg)
	if ok && evictedPage.dirty {
		if err := s.writePage(evictedID, evictedPage); err == nil {
			evictedPage.clear()
			s.pool.Put(evictedPage)
		}
	}
}

func (s *Store) readPage(id int64) (*page, error) {
	pg := s.pool.Get().(*page)
	pg.clear()
	if s.anonymous || id >= s.pagesInFile {
		return pg, nil
	}
	if s.ro != nil {
		if _, err := s.ro.ReadAt(pg.data[:], id*PageSize); err == nil {
			return pg, nil
		}
	}
	if s.file == nil {
		return pg, nil
	}
	if _, err := s.file.Seek(id*PageSize, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(s.file, pg.data[:]); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return pg, nil
}

func (s *Store) writePage(id int64, pg *page) error {
	if s.anonymous || s.file == nil || !pg.dirty {
		return nil
	}
	if _, err := s.file.Seek(id*PageSize, io.SeekStart); err != nil {
		return err
	}
	if _, err := s.file.Write(pg.data[:]); err != nil {
		return err
	}
	pg.dirty = false
	return nil
}

// Flush writes every dirty page back to the backing file and refreshes the
// read-only mmap view used to short-circuit future reads.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anonymous {
		return nil
	}
	var flushErr error
	s.cache.Iterate(func(id int64, pg *page) bool {
		if pg.dirty {
			if err := s.writePage(id, pg); err != nil {
				flushErr = err
				return false
			}
		}
		return true
	})
	if flushErr != nil {
		return flushErr
	}
	if s.ro != nil {
		s.ro.Close()
		s.ro = nil
	}
	if ro, err := mmap.Open(s.cfg.Path); err == nil {
		s.ro = ro
	}
	return flushErr
}

// Close flushes and releases the backing file and mmap view.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.anonymous {
		return nil
	}
	var err error
	if s.ro != nil {
		err = s.ro.Close()
	}
	if cerr := s.file.Close(); cerr != nil {
		err = cerr
	}
	return err
}

// GetMemoryFootprint reports the resident page cache's approximate size.
func (s *Store) GetMemoryFootprint() *common.MemoryFootprint {
	return s.cache.GetMemoryFootprint(PageSize)
}
