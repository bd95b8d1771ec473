package resource

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wippyai/pdf-runtime/errors"
)

type testObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *testObserver) OnHandleEvent(e Event) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *testObserver) snapshot() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

func mustAllocate(t *testing.T, r *Registry, kind Kind, value any, parent Handle) Handle {
	t.Helper()
	h, err := r.Allocate(kind, value, parent)
	if err != nil {
		t.Fatalf("Allocate(%s): %v", kind, err)
	}
	return h
}

func wantKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := errors.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestRegistry_Basic(t *testing.T) {
	r := NewRegistry()

	ctx := mustAllocate(t, r, KindContext, "ctx", 0)
	if ctx == 0 {
		t.Fatal("Expected non-zero handle")
	}
	if ctx.Kind() != KindContext {
		t.Fatalf("Expected context tag, got %s", ctx.Kind())
	}

	doc := mustAllocate(t, r, KindDocument, "doc", ctx)
	if doc.Kind() != KindDocument {
		t.Fatalf("Expected document tag, got %s", doc.Kind())
	}
	if doc == ctx {
		t.Fatal("Handles must differ")
	}

	val, err := r.Resolve(doc, KindDocument)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != "doc" {
		t.Fatalf("Expected 'doc', got %v", val)
	}

	ent, err := r.Lookup(doc, KindDocument)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if ent.Parent != ctx || ent.State != StateOpen || ent.Kind != KindDocument {
		t.Fatalf("Unexpected entry %+v", ent)
	}

	st, err := r.State(ctx)
	if err != nil || st != StateActive {
		t.Fatalf("State(ctx) = %v, %v", st, err)
	}

	if r.Len(KindContext) != 1 || r.Len(KindDocument) != 1 {
		t.Fatalf("Len = %d/%d", r.Len(KindContext), r.Len(KindDocument))
	}
	if r.Issued() != 2 {
		t.Fatalf("Issued = %d", r.Issued())
	}
}

func TestRegistry_NeverIssued(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)

	tests := []struct {
		name string
		h    Handle
		kind Kind
	}{
		{"zero", 0, KindContext},
		{"zero document", 0, KindDocument},
		{"beyond counter", makeHandle(KindContext, 99), KindContext},
		{"no tag", Handle(ctx.Serial()), KindContext},
		{"forged tag", makeHandle(KindDocument, ctx.Serial()), KindDocument},
		{"unknown tag", makeHandle(Kind(0x7f), ctx.Serial()), KindContext},
		{"all bits", Handle(^uint64(0)), KindDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.h, tt.kind)
			wantKind(t, err, errors.KindInvalidHandle)

			_, err = r.Invalidate(tt.h)
			wantKind(t, err, errors.KindInvalidHandle)
		})
	}
}

func TestRegistry_WrongKind(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)
	doc := mustAllocate(t, r, KindDocument, nil, ctx)

	_, err := r.Resolve(ctx, KindDocument)
	wantKind(t, err, errors.KindWrongKind)

	_, err = r.Resolve(doc, KindContext)
	wantKind(t, err, errors.KindWrongKind)

	_, err = r.Children(doc)
	wantKind(t, err, errors.KindWrongKind)

	_, err = r.Allocate(KindDocument, nil, doc)
	wantKind(t, err, errors.KindWrongKind)
}

func TestRegistry_AllocateValidation(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)

	_, err := r.Allocate(KindContext, nil, ctx)
	wantKind(t, err, errors.KindInvalidArgument)

	_, err = r.Allocate(Kind(9), nil, 0)
	wantKind(t, err, errors.KindInvalidArgument)

	_, err = r.Allocate(KindDocument, nil, 0)
	wantKind(t, err, errors.KindInvalidHandle)

	if _, err := r.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, err = r.Allocate(KindDocument, nil, ctx)
	wantKind(t, err, errors.KindUseAfterFree)
}

func TestRegistry_InvalidateDocument(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)
	doc := mustAllocate(t, r, KindDocument, "doc", ctx)

	cascaded, err := r.Invalidate(doc)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(cascaded) != 0 {
		t.Fatalf("Document invalidation cascaded %d entries", len(cascaded))
	}

	_, err = r.Resolve(doc, KindDocument)
	wantKind(t, err, errors.KindUseAfterFree)

	_, err = r.Invalidate(doc)
	wantKind(t, err, errors.KindUseAfterFree)

	children, err := r.Children(ctx)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("Closed document still owned: %v", children)
	}

	st, _ := r.State(doc)
	if st != StateClosed {
		t.Fatalf("State = %s, want closed", st)
	}
}

func TestRegistry_CascadingInvalidation(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)
	other := mustAllocate(t, r, KindContext, nil, 0)

	d1 := mustAllocate(t, r, KindDocument, "d1", ctx)
	d2 := mustAllocate(t, r, KindDocument, "d2", ctx)
	keep := mustAllocate(t, r, KindDocument, "keep", other)

	children, err := r.Children(ctx)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 || children[0] != d1 || children[1] != d2 {
		t.Fatalf("Children = %v", children)
	}

	cascaded, err := r.Invalidate(ctx)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(cascaded) != 2 {
		t.Fatalf("Expected 2 cascaded documents, got %d", len(cascaded))
	}
	if cascaded[0].Value != "d1" || cascaded[1].Value != "d2" {
		t.Fatalf("Cascaded values = %v, %v", cascaded[0].Value, cascaded[1].Value)
	}

	for _, d := range []Handle{d1, d2} {
		_, err := r.Resolve(d, KindDocument)
		wantKind(t, err, errors.KindUseAfterFree)

		var e *errors.Error
		if !stderrors.As(err, &e) || e.Detail != ReasonOwnerDestroyed {
			t.Fatalf("Expected owner-destroyed detail, got %v", err)
		}
	}

	if _, err := r.Resolve(keep, KindDocument); err != nil {
		t.Fatalf("Document of another context was affected: %v", err)
	}

	if r.Len(KindDocument) != 1 || r.Len(KindContext) != 1 {
		t.Fatalf("Len = %d/%d", r.Len(KindContext), r.Len(KindDocument))
	}
}

func TestRegistry_HandlesNeverReused(t *testing.T) {
	r := NewRegistry()
	seen := make(map[Handle]bool)

	for i := 0; i < 100; i++ {
		ctx := mustAllocate(t, r, KindContext, i, 0)
		doc := mustAllocate(t, r, KindDocument, i, ctx)
		for _, h := range []Handle{ctx, doc} {
			if seen[h] {
				t.Fatalf("Handle %s issued twice", h)
			}
			seen[h] = true
		}
		if _, err := r.Invalidate(ctx); err != nil {
			t.Fatalf("Invalidate: %v", err)
		}
	}

	for h := range seen {
		_, err := r.Resolve(h, h.Kind())
		wantKind(t, err, errors.KindUseAfterFree)
	}
}

func TestRegistry_Observer(t *testing.T) {
	r := NewRegistry()
	obs := &testObserver{}
	cancel := r.Subscribe(obs)

	ctx := mustAllocate(t, r, KindContext, nil, 0)
	doc := mustAllocate(t, r, KindDocument, "doc", ctx)

	if _, err := r.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	events := obs.snapshot()
	if len(events) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(events))
	}

	want := []struct {
		typ EventType
		h   Handle
	}{
		{EventAllocated, ctx},
		{EventAllocated, doc},
		{EventCascaded, doc},
		{EventInvalidated, ctx},
	}
	for i, w := range want {
		if events[i].Type != w.typ || events[i].Handle != w.h {
			t.Errorf("event %d = %s %s, want %s %s", i, events[i].Type, events[i].Handle, w.typ, w.h)
		}
	}
	if events[2].Value != "doc" || events[2].Parent != ctx {
		t.Errorf("cascade event = %+v", events[2])
	}

	cancel()
	mustAllocate(t, r, KindContext, nil, 0)
	if len(obs.snapshot()) != 4 {
		t.Fatal("Should not receive events after cancel")
	}
}

func TestRegistry_ObserverMayReenter(t *testing.T) {
	r := NewRegistry()
	var resolved error
	r.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventAllocated {
			_, resolved = r.Resolve(e.Handle, e.Kind)
		}
	}))

	mustAllocate(t, r, KindContext, nil, 0)
	if resolved != nil {
		t.Fatalf("Resolve from observer: %v", resolved)
	}
}

func TestRegistry_Each(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)
	d1 := mustAllocate(t, r, KindDocument, 1, ctx)
	d2 := mustAllocate(t, r, KindDocument, 2, ctx)
	d3 := mustAllocate(t, r, KindDocument, 3, ctx)
	if _, err := r.Invalidate(d2); err != nil {
		t.Fatal(err)
	}

	var got []Handle
	r.Each(KindDocument, func(e Entry) bool {
		got = append(got, e.Handle)
		return true
	})
	if len(got) != 2 || got[0] != d1 || got[1] != d3 {
		t.Fatalf("Each = %v", got)
	}

	count := 0
	r.Each(KindDocument, func(Entry) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Each did not stop early: %d", count)
	}
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	ctx := mustAllocate(t, r, KindContext, nil, 0)
	doc := mustAllocate(t, r, KindDocument, nil, ctx)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err := r.Resolve(doc, KindDocument)
	wantKind(t, err, errors.KindUseAfterFree)
	_, err = r.Resolve(ctx, KindContext)
	wantKind(t, err, errors.KindUseAfterFree)

	_, err = r.Allocate(KindContext, nil, 0)
	wantKind(t, err, errors.KindClosed)

	if r.Len(KindContext) != 0 || r.Len(KindDocument) != 0 {
		t.Fatal("Expected no live handles after Close")
	}
}

func TestRegistry_CascadeIsAtomic(t *testing.T) {
	for round := 0; round < 50; round++ {
		r := NewRegistry()
		ctx := mustAllocate(t, r, KindContext, nil, 0)
		docs := make([]Handle, 8)
		for i := range docs {
			docs[i] = mustAllocate(t, r, KindDocument, i, ctx)
		}

		var wg sync.WaitGroup
		stop := make(chan struct{})
		violations := make(chan Handle, len(docs))

		for _, d := range docs {
			wg.Add(1)
			go func(d Handle) {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					st, err := r.State(ctx)
					if err != nil {
						violations <- d
						return
					}
					if st.Live() {
						continue
					}
					if _, err := r.Resolve(d, KindDocument); err == nil {
						violations <- d
					}
					return
				}
			}(d)
		}

		if _, err := r.Invalidate(ctx); err != nil {
			t.Fatalf("Invalidate: %v", err)
		}
		close(stop)
		wg.Wait()
		close(violations)

		for d := range violations {
			t.Fatalf("document %s resolved after its context was destroyed", d)
		}
	}
}

func TestHandle_String(t *testing.T) {
	h := makeHandle(KindDocument, 12)
	if h.String() != "document#12" {
		t.Errorf("String = %q", h.String())
	}
	if uint64(h) != 0x0200000000000000|12 {
		t.Errorf("layout = %#x", uint64(h))
	}
	if State(99).String() != "state(99)" || Kind(9).String() != "kind(9)" {
		t.Error("unknown values should format numerically")
	}
}
