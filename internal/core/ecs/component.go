package ecs

// Removable is implemented by all component stores so the World can purge a
// destroyed handle from every store.
type Removable interface {
	Remove(h Handle)
}

// Store is a generic typed map store for components keyed by Handle.
type Store[T any] struct {
	data map[Handle]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		data: make(map[Handle]*T, 256),
	}
}

func (s *Store[T]) Set(h Handle, c *T) {
	s.data[h] = c
}

func (s *Store[T]) Get(h Handle) (*T, bool) {
	c, ok := s.data[h]
	return c, ok
}

// Update applies fn to the component of h in place. Reports false when absent.
func (s *Store[T]) Update(h Handle, fn func(*T)) bool {
	c, ok := s.data[h]
	if !ok {
		return false
	}
	fn(c)
	return true
}

func (s *Store[T]) Remove(h Handle) {
	delete(s.data, h)
}

func (s *Store[T]) Has(h Handle) bool {
	_, ok := s.data[h]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

func (s *Store[T]) Each(fn func(Handle, *T)) {
	for h, c := range s.data {
		fn(h, c)
	}
}

// Each2 iterates over handles that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(Handle, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for h, a := range sa.data {
			if b, ok := sb.data[h]; ok {
				fn(h, a, b)
			}
		}
	} else {
		for h, b := range sb.data {
			if a, ok := sa.data[h]; ok {
				fn(h, a, b)
			}
		}
	}
}
