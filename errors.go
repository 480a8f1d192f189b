package pathmap

import "github.com/pathmap-go/pathmap/internal/common"

// Sentinel errors returned by PathMap operations. They are declared as
// common.ConstError so callers can compare with errors.Is across package
// boundaries without pulling in a sentinel value.
const (
	// ErrExclusivityViolation is returned by a ZipperHead when a requested
	// write-zipper prefix overlaps a region already checked out by another
	// live write-zipper, either as an ancestor, a descendant or the same
	// path.
	ErrExclusivityViolation = common.ConstError("pathmap: exclusivity violation: prefix region already checked out")

	// ErrSerialization is returned when decoding a Linear or DAG stream
	// fails structural validation (bad magic, bad version, truncated
	// stream, checksum mismatch).
	ErrSerialization = common.ConstError("pathmap: serialization error")

	// ErrAlloc is returned by the arena allocator when a page store cannot
	// satisfy an allocation, either because the backing file could not
	// grow or because a record is larger than one page can hold.
	ErrAlloc = common.ConstError("pathmap: arena allocation failed")

	// ErrZipperHeadClosed is returned by ZipperHead.WriteZipperAt once the
	// head has been closed.
	ErrZipperHeadClosed = common.ConstError("pathmap: zipper head is closed")
)
