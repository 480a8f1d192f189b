package pathmap

import (
	"github.com/pathmap-go/pathmap/internal/arena"
	"github.com/pathmap-go/pathmap/internal/common"
)

// nodeStore is the subset of *arena.Store an ArenaCompact node needs to
// allocate, resolve and free its packed record. It exists as an interface,
// rather than trieNode holding a *arena.Store directly, so tests can supply
// a mock that injects allocator failures or captures Free calls without
// standing up a real page file, the way the teacher's mockgen-generated
// NodeSource/NodeManager mocks stand in for its own backing stores.
//
//go:generate mockgen -source arena_binding.go -destination nodestore_mock_test.go -package pathmap
type nodeStore interface {
	Alloc(data []byte) (arena.Ref, error)
	Read(ref arena.Ref) ([]byte, error)
	Free(ref arena.Ref) error
}

// arenaStoreHandle wraps the internal arena.Store together with the
// resolved ArenaConfig it was opened with, and implements
// common.MemoryFootprintProvider and common.FlushAndCloser by delegation.
type arenaStoreHandle struct {
	store *arena.Store
	cfg   ArenaConfig
}

var (
	_ common.FlushAndCloser          = (*arenaStoreHandle)(nil)
	_ common.MemoryFootprintProvider = (*arenaStoreHandle)(nil)
)

// Flush persists any dirty arena pages to the backing file.
func (h *arenaStoreHandle) Flush() error {
	return h.store.Flush()
}

// Close flushes and releases the backing arena store's file handles.
func (h *arenaStoreHandle) Close() error {
	return h.store.Close()
}

// GetMemoryFootprint reports the resident page cache's approximate size.
func (h *arenaStoreHandle) GetMemoryFootprint() *common.MemoryFootprint {
	return h.store.GetMemoryFootprint()
}

// resolve lazily opens the backing arena.Store the first time a PathMap
// actually needs to promote a node into it, so a PathMap configured with an
// ArenaConfig but never large enough to use it never touches the
// filesystem.
func (b *arenaBinding) resolve() (*arenaStoreHandle, error) {
	b.once.Do(func() {
		s, err := arena.Open(arena.Config{
			Path:              b.cfg.Path,
			EvictThreshold:    b.cfg.EvictThreshold,
			MinEvictThreshold: b.cfg.MinEvictThreshold,
			PageCacheSize:     b.cfg.PageCacheSize,
		})
		if err != nil {
			b.err = err
			return
		}
		b.store = &arenaStoreHandle{store: s, cfg: b.cfg}
	})
	return b.store, b.err
}

// Flush persists any dirty arena pages, if an arena was ever opened.
func (m *PathMap[V]) Flush() error {
	if m.arena == nil || m.arena.store == nil {
		return nil
	}
	return m.arena.store.Flush()
}

// Close flushes and releases the backing arena store, if any. A PathMap
// with no ArenaConfig has nothing to close.
func (m *PathMap[V]) Close() error {
	if m.arena == nil || m.arena.store == nil {
		return nil
	}
	return m.arena.store.Close()
}

// GetMemoryFootprint reports the approximate memory held by this map's arena
// page cache. A PathMap that never promoted a node into the arena reports a
// zero footprint rather than opening one just to measure it.
func (m *PathMap[V]) GetMemoryFootprint() *common.MemoryFootprint {
	if m.arena == nil || m.arena.store == nil {
		return common.NewMemoryFootprint(0)
	}
	return m.arena.store.GetMemoryFootprint()
}
