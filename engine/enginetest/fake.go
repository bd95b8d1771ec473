// Package enginetest provides test doubles for the engine package.
//
// Fake is a scriptable in-memory Engine that records every native call,
// detects double frees and flags calls that overlap on one context.
// WritePDF produces small but real PDF files for tests that exercise the
// pdfcpu backend.
package enginetest

import (
	"sync"

	"github.com/wippyai/pdf-runtime/engine"
)

// Document describes a document the Fake engine can open.
type Document struct {
	// Pages holds [width, height] per page.
	Pages [][2]float64

	// Password, when set, must be supplied to Open.
	Password string

	// Code makes Open fail with this diagnostic.
	Code engine.Code

	// BadCount makes PageCount return the failure sentinel.
	BadCount bool

	// BadSize makes PageSize return the failure sentinel.
	BadSize bool

	// Title is returned by Title.
	Title string

	// BadTitle makes Title report failure.
	BadTitle bool
}

// Op names passed to Hook and Calls.
const (
	OpInitialize = "initialize"
	OpOpen       = "open"
	OpPageCount  = "page_count"
	OpPageSize   = "page_size"
	OpTitle      = "title"
	OpClose      = "close"
	OpShutdown   = "shutdown"
)

// Fake is an in-memory engine.Engine.
type Fake struct {
	// FailInit makes Initialize return the null sentinel.
	FailInit bool

	// Hook, when set, runs at the start of every call outside the fake's lock.
	// Tests use it to block or observe native calls. Set it before use.
	Hook func(op string, ref engine.Ref)

	mu          sync.Mutex
	docs        map[string]Document
	contexts    map[engine.Ref]int
	open        map[engine.Ref]*openDoc
	calls       map[string]int
	busy        map[engine.Ref]int
	next        engine.Ref
	doubleFrees int
	overlaps    int
	leaked      int
}

type openDoc struct {
	doc   Document
	owner engine.Ref
}

var _ engine.Engine = (*Fake)(nil)

// NewFake creates a Fake with no documents.
func NewFake() *Fake {
	return &Fake{
		docs:     make(map[string]Document),
		contexts: make(map[engine.Ref]int),
		open:     make(map[engine.Ref]*openDoc),
		calls:    make(map[string]int),
		busy:     make(map[engine.Ref]int),
	}
}

// AddDocument registers a document under path.
func (f *Fake) AddDocument(path string, doc Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = doc
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Initialize() engine.Ref {
	f.count(OpInitialize)
	f.hook(OpInitialize, engine.NullRef)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailInit {
		return engine.NullRef
	}
	f.next++
	f.contexts[f.next] = 0
	return f.next
}

func (f *Fake) Open(ctx engine.Ref, path, password string) (engine.Ref, engine.Code) {
	f.count(OpOpen)
	defer f.enter(ctx)()
	f.hook(OpOpen, ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.contexts[ctx]; !ok {
		return engine.NullRef, engine.CodeInternal
	}
	doc, ok := f.docs[path]
	if !ok {
		return engine.NullRef, engine.CodeNotFound
	}
	if doc.Code != engine.CodeNone {
		return engine.NullRef, doc.Code
	}
	if doc.Password != "" && doc.Password != password {
		return engine.NullRef, engine.CodeEncrypted
	}

	f.next++
	f.open[f.next] = &openDoc{doc: doc, owner: ctx}
	f.contexts[ctx]++
	return f.next, engine.CodeNone
}

func (f *Fake) PageCount(doc engine.Ref) int {
	f.count(OpPageCount)
	defer f.enter(f.owner(doc))()
	f.hook(OpPageCount, doc)

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.open[doc]
	if !ok || d.doc.BadCount {
		return -1
	}
	return len(d.doc.Pages)
}

func (f *Fake) PageSize(doc engine.Ref, index int) (float64, float64) {
	f.count(OpPageSize)
	defer f.enter(f.owner(doc))()
	f.hook(OpPageSize, doc)

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.open[doc]
	if !ok || d.doc.BadSize || index < 0 || index >= len(d.doc.Pages) {
		return -1, -1
	}
	p := d.doc.Pages[index]
	return p[0], p[1]
}

func (f *Fake) Title(doc engine.Ref) (string, bool) {
	f.count(OpTitle)
	defer f.enter(f.owner(doc))()
	f.hook(OpTitle, doc)

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.open[doc]
	if !ok || d.doc.BadTitle {
		return "", false
	}
	return d.doc.Title, true
}

func (f *Fake) Close(doc engine.Ref) {
	f.count(OpClose)
	defer f.enter(f.owner(doc))()
	f.hook(OpClose, doc)

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.open[doc]
	if !ok {
		f.doubleFrees++
		return
	}
	delete(f.open, doc)
	f.contexts[d.owner]--
}

func (f *Fake) Shutdown(ctx engine.Ref) {
	f.count(OpShutdown)
	defer f.enter(ctx)()
	f.hook(OpShutdown, ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.contexts[ctx]
	if !ok {
		f.doubleFrees++
		return
	}
	f.leaked += n
	delete(f.contexts, ctx)
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// DoubleFrees returns the number of Close or Shutdown calls on refs that were
// not live.
func (f *Fake) DoubleFrees() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doubleFrees
}

// Overlaps returns the number of calls that started while another call on
// the same context was still running.
func (f *Fake) Overlaps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlaps
}

// Leaked returns the number of documents still open when their context was
// shut down.
func (f *Fake) Leaked() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaked
}

// OpenDocuments returns the number of documents not yet closed.
func (f *Fake) OpenDocuments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

// Contexts returns the number of contexts not yet shut down.
func (f *Fake) Contexts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.contexts)
}

func (f *Fake) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *Fake) hook(op string, ref engine.Ref) {
	if f.Hook != nil {
		f.Hook(op, ref)
	}
}

func (f *Fake) owner(doc engine.Ref) engine.Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.open[doc]; ok {
		return d.owner
	}
	return engine.NullRef
}

// enter marks ctx busy and returns the function that clears it.
func (f *Fake) enter(ctx engine.Ref) func() {
	if ctx == engine.NullRef {
		return func() {}
	}
	f.mu.Lock()
	if f.busy[ctx] > 0 {
		f.overlaps++
	}
	f.busy[ctx]++
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		f.busy[ctx]--
		f.mu.Unlock()
	}
}
