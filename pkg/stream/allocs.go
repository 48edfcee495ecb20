package stream

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownAlloc = errors.New("unknown allocation")
	ErrAllocKind    = errors.New("allocation released with the wrong function")
)

// Alloc refers to library-owned memory handed to the caller. The zero Alloc
// is the null allocation. Every non-zero Alloc must be released exactly once
// with the release function matching its kind.
type Alloc uint64

// NullAlloc is returned by failed operations.
const NullAlloc Alloc = 0

// AllocKind records which release function owns an allocation.
type AllocKind uint8

const (
	KindString AllocKind = iota + 1
	KindBuffer
)

func (k AllocKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("AllocKind(%d)", uint8(k))
	}
}

type allocEntry struct {
	kind   AllocKind
	origin string
	data   []byte
}

// allocTable tracks outstanding allocations with their provenance.
type allocTable struct {
	mu      sync.Mutex
	next    uint64
	entries map[Alloc]allocEntry
}

func (t *allocTable) put(kind AllocKind, origin string, data []byte) Alloc {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries == nil {
		t.entries = make(map[Alloc]allocEntry)
	}
	t.next++
	a := Alloc(t.next)
	t.entries[a] = allocEntry{kind: kind, origin: origin, data: data}
	return a
}

func (t *allocTable) get(a Alloc) (allocEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[a]
	return e, ok
}

// free releases a with the given kind. Freeing NullAlloc is a no-op.
func (t *allocTable) free(a Alloc, kind AllocKind) error {
	if a == NullAlloc {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[a]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAlloc, uint64(a))
	}
	if e.kind != kind {
		return fmt.Errorf("%w: %s from %s released as %s", ErrAllocKind, e.kind, e.origin, kind)
	}
	delete(t.entries, a)
	return nil
}

func (t *allocTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
