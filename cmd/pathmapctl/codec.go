package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pathmap-go/pathmap"
)

// loadMap decodes the file at path using the named format ("linear" or
// "dag") into a string-valued PathMap. pathmapctl only ever operates on
// string values: WriteLinear/WriteDAG gob-encode whatever V is, and gob
// refuses to decode a []byte value into a string, so a byte-value map
// serialized by an embedding application fails to load here.
func loadMap(path, format string) (*pathmap.PathMap[string], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeStream(f, format)
}

func decodeStream(r io.Reader, format string) (*pathmap.PathMap[string], error) {
	switch format {
	case "linear":
		return pathmap.ReadLinear[string](r, pathmap.DefaultConfig)
	case "dag":
		return pathmap.ReadDAG[string](r, pathmap.DefaultConfig)
	default:
		return nil, fmt.Errorf("unknown format %q, want linear or dag", format)
	}
}

func encodeStream(w io.Writer, m *pathmap.PathMap[string], format string) error {
	switch format {
	case "linear":
		return m.WriteLinear(w)
	case "dag":
		return m.WriteDAG(w)
	default:
		return fmt.Errorf("unknown format %q, want linear or dag", format)
	}
}

// walk visits every path/value pair in m in lexical byte order, the way a
// depth-first ReadZipper descent naturally enumerates them.
func walk(m *pathmap.PathMap[string], fn func(path []byte, value string)) {
	z := m.ReadZipper()
	defer z.Close()
	var descend func()
	descend = func() {
		if v, ok := z.Value(); ok {
			fn(append([]byte(nil), z.Path()...), v)
		}
		for _, b := range z.ChildBytes() {
			z.DescendByte(b)
			descend()
			z.Ascend(1)
		}
	}
	descend()
}
