package runtime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/pdf-runtime/engine"
	"github.com/wippyai/pdf-runtime/engine/enginetest"
	"github.com/wippyai/pdf-runtime/errors"
	"github.com/wippyai/pdf-runtime/resource"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// gate blocks the first engine call matching op until released.
type gate struct {
	op      string
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGate(op string) *gate {
	g := &gate{op: op, entered: make(chan struct{}), release: make(chan struct{})}
	g.armed.Store(true)
	return g
}

func (g *gate) hook(op string, _ engine.Ref) {
	if op != g.op || !g.armed.CompareAndSwap(true, false) {
		return
	}
	close(g.entered)
	<-g.release
}

func TestConcurrency_ContextsRunInParallel(t *testing.T) {
	g := newGate(enginetest.OpPageCount)
	rt, fake := newFakeRuntime(t, PolicyForceClose)
	fake.Hook = g.hook

	a := mustContext(t, rt)
	b := mustContext(t, rt)
	docA := mustOpen(t, rt, a, "letter.pdf")
	docB := mustOpen(t, rt, b, "letter.pdf")

	blocked := make(chan error, 1)
	go func() {
		_, err := rt.PageCount(docA)
		blocked <- err
	}()
	<-g.entered

	done := make(chan error, 1)
	go func() {
		_, err := rt.PageCount(docB)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("PageCount on other context: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("a call on one context blocked a call on another")
	}

	destroyed := make(chan error, 1)
	go func() { destroyed <- rt.DestroyContext(a) }()

	waitFor(t, "teardown to wait on the context lock", func() bool {
		return rt.Stats().LockContended >= 1
	})
	select {
	case <-destroyed:
		t.Fatal("teardown ran while a call on the same context was in flight")
	default:
	}

	close(g.release)
	if err := <-blocked; err != nil {
		t.Fatalf("in-flight PageCount: %v", err)
	}
	if err := <-destroyed; err != nil {
		t.Fatalf("DestroyContext: %v", err)
	}
	if fake.Overlaps() != 0 {
		t.Fatalf("engine saw %d overlapping calls on one context", fake.Overlaps())
	}
}

func TestConcurrency_WaiterObservesTeardown(t *testing.T) {
	g := newGate(enginetest.OpClose)
	rt, fake := newFakeRuntime(t, PolicyForceClose)
	fake.Hook = g.hook

	ctx := mustContext(t, rt)
	doc := mustOpen(t, rt, ctx, "letter.pdf")

	destroyed := make(chan error, 1)
	go func() { destroyed <- rt.DestroyContext(ctx) }()
	<-g.entered

	// doc still resolves here; the caller then queues on the context lock.
	queried := make(chan error, 1)
	go func() {
		_, err := rt.PageCount(doc)
		queried <- err
	}()
	waitFor(t, "query to wait on the context lock", func() bool {
		return rt.Stats().LockContended >= 1
	})

	close(g.release)
	if err := <-destroyed; err != nil {
		t.Fatalf("DestroyContext: %v", err)
	}
	expectKind(t, <-queried, errors.KindUseAfterFree)

	if got := fake.Calls(enginetest.OpPageCount); got != 0 {
		t.Fatalf("engine PageCount reached after teardown %d times", got)
	}
}

func TestConcurrency_SharedContextSerializes(t *testing.T) {
	rt, fake := newFakeRuntime(t, PolicyForceClose)
	ctx := mustContext(t, rt)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				doc, err := rt.OpenDocument(ctx, "letter.pdf")
				if err != nil {
					t.Errorf("OpenDocument: %v", err)
					return
				}
				if _, err := rt.PageSize(doc, 1); err != nil {
					t.Errorf("PageSize: %v", err)
					return
				}
				if err := rt.CloseDocument(doc); err != nil {
					t.Errorf("CloseDocument: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if fake.Overlaps() != 0 {
		t.Fatalf("engine saw %d overlapping calls on one context", fake.Overlaps())
	}
	if fake.OpenDocuments() != 0 || rt.Stats().Documents != 0 {
		t.Fatal("documents left open")
	}
}

func TestConcurrency_CloseRacesWithCallers(t *testing.T) {
	rt, fake := newFakeRuntime(t, PolicyForceClose)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ctx, err := rt.OpenContext()
				if err != nil {
					return
				}
				doc, err := rt.OpenDocument(ctx, "letter.pdf")
				if err != nil {
					return
				}
				if _, err := rt.PageCount(doc); err != nil {
					return
				}
				if err := rt.DestroyContext(ctx); err != nil {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	if fake.DoubleFrees() != 0 || fake.Overlaps() != 0 {
		t.Fatalf("doubleFrees=%d overlaps=%d", fake.DoubleFrees(), fake.Overlaps())
	}
	if fake.OpenDocuments() != 0 {
		t.Fatalf("%d documents left open after Close", fake.OpenDocuments())
	}
	if rt.Registry().Len(resource.KindContext) != 0 {
		t.Fatal("live contexts after Close")
	}
}
