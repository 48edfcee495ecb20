// Package stream is the boundary layer between a host and the PDF
// machinery. Every entry point returns a sentinel on failure (a null
// handle, a null allocation, 0 or -1) and records a message in the calling
// Session, mirroring a C-style calling convention.
package stream

import (
	"sync"

	"github.com/pyhub-apps/pdfstream-golang/internal/observability"
	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
)

// Library owns the process-wide tables: open documents and outstanding
// allocations. Sessions created from a Library share them.
type Library struct {
	mu      sync.RWMutex
	started bool
	opts    Options
	log     *observability.Logger

	handles handleTable
	allocs  allocTable
}

// NewLibrary creates a stopped Library.
func NewLibrary(opts Options) *Library {
	opts = opts.withDefaults()

	log := observability.Nop()
	if opts.Logger != nil {
		log = observability.FromZerolog(*opts.Logger)
	}

	return &Library{
		opts: opts,
		log:  log.WithStr("component", "stream"),
	}
}

// Start prepares the PDF libraries and makes the Library usable. Calling
// Start on a started Library does nothing.
func (l *Library) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}
	pdf.Init()
	l.started = true
	l.log.Debug().
		Int("chunk_size", l.opts.ChunkSize).
		Int("read_window", l.opts.ReadWindow).
		Int64("max_file_size", l.opts.MaxFileSize).
		Msg("library started")
	return nil
}

// Stop closes every document still open and marks the Library stopped.
// Handles issued before Stop never resolve again. Outstanding allocations
// stay readable until freed.
func (l *Library) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return
	}
	docs := l.handles.drain()
	for _, doc := range docs {
		if err := doc.Close(); err != nil {
			l.log.Warn().Err(err).Msg("close on stop failed")
		}
	}
	l.started = false
	l.log.Debug().Int("closed", len(docs)).Msg("library stopped")
}

// Started reports whether Start has been called since the last Stop.
func (l *Library) Started() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

// Options returns the effective options.
func (l *Library) Options() Options {
	return l.opts
}

// OpenDocuments returns the number of documents in the handle table.
func (l *Library) OpenDocuments() int {
	return l.handles.len()
}

// OutstandingAllocs returns the number of allocations not yet freed.
func (l *Library) OutstandingAllocs() int {
	return l.allocs.len()
}

// NewSession returns a Session bound to l. A Session must not be shared
// between goroutines.
func (l *Library) NewSession() *Session {
	return &Session{lib: l}
}

func (l *Library) ready(op string) error {
	if !l.Started() {
		return pdf.NewError(pdf.KindInit, op, pdf.ErrNotInitialized)
	}
	return nil
}

var defaultLibrary = NewLibrary(DefaultOptions())

// Default returns the process-wide Library used by Initialize and Cleanup.
func Default() *Library {
	return defaultLibrary
}

// Initialize starts the default Library.
func Initialize() error {
	return defaultLibrary.Start()
}

// Cleanup stops the default Library.
func Cleanup() {
	defaultLibrary.Stop()
}

// NewSession returns a Session on the default Library.
func NewSession() *Session {
	return defaultLibrary.NewSession()
}
