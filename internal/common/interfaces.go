// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"io"
)

// Flusher is any type that can be flushed.
type Flusher interface {
	Flush() error
}

// FlushAndCloser is any type that can be flushed and closed, such as the
// backing file of an arena page store.
type FlushAndCloser interface {
	Flusher
	io.Closer
}

// MemoryFootprintProvider is implemented by components that can report an
// estimate of their own memory consumption, broken down by named
// sub-component.
type MemoryFootprintProvider interface {
	GetMemoryFootprint() *MemoryFootprint
}

// Hasher produces a fixed-size digest for a value of type K. No code in this
// module implements or uses it; the DAG serialization format hashes nodes
// with blake2b directly.
type Hasher[K any] interface {
	Hash(*K) uint64
}
