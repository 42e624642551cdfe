package gm

// A Ref is a typed index into one of the per-kind vectors owned by Data. It
// carries no lifetime relationship to the data it points into; equality of
// refs is equality of indices.
type Ref[T any] struct {
	Index uint32
}

// MakeRef builds a reference from an index.
func MakeRef[T any](index uint32) Ref[T] { return Ref[T]{Index: index} }

// resolve returns a pointer into pool or a DanglingRefError tagged kind.
func resolve[T any](pool []T, r Ref[T], kind string) (*T, error) {
	if int(r.Index) >= len(pool) {
		return nil, &DanglingRefError{Kind: kind, Index: r.Index, Len: len(pool)}
	}
	return &pool[r.Index], nil
}

// append-and-reference, used by callers that grow a pool.
func makeIn[T any](pool *[]T, v T) Ref[T] {
	*pool = append(*pool, v)
	return Ref[T]{Index: uint32(len(*pool) - 1)}
}
