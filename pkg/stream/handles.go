package stream

import (
	"sync"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
)

// Handle refers to an open document. The zero Handle is the null handle.
//
// The low 32 bits hold the slot index plus one and the high 32 bits the
// slot generation, so a handle to a closed document never resolves to a
// document opened later in the same slot.
type Handle uint64

// NullHandle is returned by failed opens.
const NullHandle Handle = 0

func makeHandle(idx, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx+1))
}

func (h Handle) split() (idx, gen uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(h >> 32), true
}

type handleSlot struct {
	gen uint32
	doc *pdf.StreamDocument
}

// handleTable maps handles to open documents.
type handleTable struct {
	mu    sync.Mutex
	slots []handleSlot
	free  []uint32
	open  int
}

func (t *handleTable) insert(doc *pdf.StreamDocument) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, handleSlot{})
		idx = uint32(len(t.slots) - 1)
	}

	s := &t.slots[idx]
	s.gen++
	s.doc = doc
	t.open++
	return makeHandle(idx, s.gen)
}

func (t *handleTable) lookup(h Handle) (*handleSlot, uint32) {
	idx, gen, ok := h.split()
	if !ok || int(idx) >= len(t.slots) {
		return nil, 0
	}
	s := &t.slots[idx]
	if s.gen != gen || s.doc == nil {
		return nil, 0
	}
	return s, idx
}

func (t *handleTable) get(h Handle) (*pdf.StreamDocument, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, _ := t.lookup(h)
	if s == nil {
		return nil, false
	}
	return s.doc, true
}

func (t *handleTable) remove(h Handle) (*pdf.StreamDocument, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, idx := t.lookup(h)
	if s == nil {
		return nil, false
	}
	doc := s.doc
	s.doc = nil
	t.free = append(t.free, idx)
	t.open--
	return doc, true
}

// drain removes every open document from the table.
func (t *handleTable) drain() []*pdf.StreamDocument {
	t.mu.Lock()
	defer t.mu.Unlock()

	var docs []*pdf.StreamDocument
	for i := range t.slots {
		s := &t.slots[i]
		if s.doc == nil {
			continue
		}
		docs = append(docs, s.doc)
		s.doc = nil
		t.free = append(t.free, uint32(i))
	}
	t.open = 0
	return docs
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}
