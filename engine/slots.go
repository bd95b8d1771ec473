package engine

import "sync"

// slots hands out Refs for Go-side engine objects.
// Freed slots go on a free list and are handed out again, the way a native
// allocator recycles addresses.
type slots[T any] struct {
	entries  []slot[T]
	freeList []Ref
	mu       sync.Mutex
}

type slot[T any] struct {
	value T
	valid bool
}

func (s *slots[T]) put(v T) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := slot[T]{value: v, valid: true}

	if len(s.freeList) > 0 {
		ref := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		s.entries[ref-1] = e
		return ref
	}

	s.entries = append(s.entries, e)
	return Ref(len(s.entries))
}

func (s *slots[T]) get(ref Ref) (T, bool) {
	var zero T
	if ref == NullRef {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := ref - 1
	if int(idx) >= len(s.entries) || !s.entries[idx].valid {
		return zero, false
	}
	return s.entries[idx].value, true
}

func (s *slots[T]) drop(ref Ref) (T, bool) {
	var zero T
	if ref == NullRef {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := ref - 1
	if int(idx) >= len(s.entries) || !s.entries[idx].valid {
		return zero, false
	}

	v := s.entries[idx].value
	s.entries[idx] = slot[T]{}
	s.freeList = append(s.freeList, ref)
	return v, true
}

func (s *slots[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) - len(s.freeList)
}
