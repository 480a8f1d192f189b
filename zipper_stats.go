package pathmap

import "sync/atomic"

// zipperTracker counts how many zippers a PathMap has issued and how many
// are still open, following the same bare-atomic idiom as Counters. It only
// moves when Config.ZipperTracking is set; the call sites that touch it
// (ReadZipperAt, WriteZipper, ZipperHead.WriteZipperAt) check the flag
// before ever incrementing, so an untracked PathMap pays nothing beyond the
// zero-value struct's footprint.
type zipperTracker struct {
	liveRead   atomic.Int64
	liveWrite  atomic.Int64
	totalRead  atomic.Int64
	totalWrite atomic.Int64
}

// ZipperStatsSnapshot is a point-in-time copy of a PathMap's zipper
// introspection counters.
type ZipperStatsSnapshot struct {
	LiveReadZippers   int64
	LiveWriteZippers  int64
	TotalReadZippers  int64
	TotalWriteZippers int64
}

func (t *zipperTracker) snapshot() ZipperStatsSnapshot {
	return ZipperStatsSnapshot{
		LiveReadZippers:   t.liveRead.Load(),
		LiveWriteZippers:  t.liveWrite.Load(),
		TotalReadZippers:  t.totalRead.Load(),
		TotalWriteZippers: t.totalWrite.Load(),
	}
}
