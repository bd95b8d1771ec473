package runtime

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/pdf-runtime/engine"
	"github.com/wippyai/pdf-runtime/errors"
	"github.com/wippyai/pdf-runtime/resource"
)

// Runtime issues Context and Document handles backed by one engine.
// All methods are safe for concurrent use.
type Runtime struct {
	engine      engine.Engine
	reg         *resource.Registry
	unsubscribe func()
	policy      TeardownPolicy
	closed      atomic.Bool
	closeOnce   sync.Once

	// opening is held shared while a Context is created so Close sees
	// every Context that will ever exist.
	opening sync.RWMutex

	acquisitions atomic.Uint64
	contended    atomic.Uint64
}

type contextState struct {
	mu     sync.Mutex
	native engine.Ref
}

// documentState fields other than native and owner are guarded by owner.mu.
type documentState struct {
	owner      *contextState
	path       string
	native     engine.Ref
	pages      int
	pagesKnown bool
}

// New creates a Runtime.
func New(cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Policy != PolicyForceClose && cfg.Policy != PolicyReject {
		return nil, errors.InvalidArgument(errors.PhaseLoad, "unknown teardown policy "+cfg.Policy.String())
	}

	eng := cfg.Engine
	if eng == nil {
		eng = engine.NewPDFCPU()
	}

	r := &Runtime{
		engine: eng,
		reg:    resource.NewRegistry(),
		policy: cfg.Policy,
	}
	r.unsubscribe = r.reg.Subscribe(resource.ObserverFunc(logEvent))

	Logger().Debug("runtime created",
		zap.String("engine", eng.Name()),
		zap.Stringer("policy", cfg.Policy))

	return r, nil
}

func logEvent(e resource.Event) {
	l := Logger()
	if !l.Core().Enabled(zap.DebugLevel) {
		return
	}
	fields := []zap.Field{
		zap.Stringer("handle", e.Handle),
		zap.Stringer("event", e.Type),
	}
	if e.Parent != 0 {
		fields = append(fields, zap.Stringer("parent", e.Parent))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	l.Debug("handle", fields...)
}

// Registry exposes the handle table. Callers must not Allocate or Invalidate
// through it; use it for inspection and subscriptions.
func (r *Runtime) Registry() *resource.Registry {
	return r.reg
}

// EngineName returns the name of the engine backend.
func (r *Runtime) EngineName() string {
	return r.engine.Name()
}

// Policy returns the teardown policy.
func (r *Runtime) Policy() TeardownPolicy {
	return r.policy
}

// OpenContext initializes a new engine context.
func (r *Runtime) OpenContext() (resource.Handle, error) {
	const op = "OpenContext"
	r.opening.RLock()
	defer r.opening.RUnlock()
	if r.closed.Load() {
		return 0, errors.WithOp(errors.Closed(errors.PhaseInit, "runtime"), op)
	}

	native := r.engine.Initialize()
	if native == engine.NullRef {
		return 0, errors.WithOp(errors.EngineInitFailed(r.engine.Name(), nil), op)
	}

	cs := &contextState{native: native}
	h, err := r.reg.Allocate(resource.KindContext, cs, 0)
	if err != nil {
		r.engine.Shutdown(native)
		return 0, errors.WithOp(err, op)
	}
	return h, nil
}

// OpenDocument opens the PDF at path under ctx.
func (r *Runtime) OpenDocument(ctx resource.Handle, path string) (resource.Handle, error) {
	return r.openDocument("OpenDocument", ctx, path, "")
}

// OpenDocumentWithPassword opens an encrypted PDF.
func (r *Runtime) OpenDocumentWithPassword(ctx resource.Handle, path, password string) (resource.Handle, error) {
	return r.openDocument("OpenDocumentWithPassword", ctx, path, password)
}

func (r *Runtime) openDocument(op string, ctx resource.Handle, path, password string) (resource.Handle, error) {
	if r.closed.Load() {
		return 0, errors.WithOp(errors.Closed(errors.PhaseOpen, "runtime"), op)
	}
	if path == "" {
		return 0, errors.WithOp(errors.InvalidArgument(errors.PhaseOpen, "empty path"), op)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return 0, errors.WithOp(errors.InvalidArgument(errors.PhaseOpen, "path contains NUL byte"), op)
	}

	cs, err := r.lockContext(ctx)
	if err != nil {
		return 0, errors.WithOp(err, op)
	}
	defer cs.mu.Unlock()

	native, code := r.engine.Open(cs.native, path, password)
	if native == engine.NullRef {
		if code == engine.CodeNone {
			code = engine.CodeInternal
		}
		return 0, errors.WithOp(errors.DocumentOpenFailed(path, int32(code), code.String()), op)
	}

	ds := &documentState{owner: cs, path: path, native: native}
	h, err := r.reg.Allocate(resource.KindDocument, ds, ctx)
	if err != nil {
		r.engine.Close(native)
		return 0, errors.WithOp(err, op)
	}
	return h, nil
}

// PageCount returns the number of pages in doc.
func (r *Runtime) PageCount(doc resource.Handle) (int, error) {
	const op = "PageCount"
	ds, err := r.lockDocument(doc)
	if err != nil {
		return 0, errors.WithOp(err, op)
	}
	defer ds.owner.mu.Unlock()

	n, err := r.pageCountLocked(doc, ds)
	if err != nil {
		return 0, errors.WithOp(err, op)
	}
	return n, nil
}

func (r *Runtime) pageCountLocked(doc resource.Handle, ds *documentState) (int, error) {
	if ds.pagesKnown {
		return ds.pages, nil
	}
	n := r.engine.PageCount(ds.native)
	if n < 0 {
		return 0, errors.New(errors.PhaseQuery, errors.KindEngineFault).
			Handle(uint64(doc)).
			Code(int32(n)).
			Detail("engine reported page count %d", n).
			Build()
	}
	ds.pages = n
	ds.pagesKnown = true
	return n, nil
}

// PageSize returns the size in points of the zero-based page index.
func (r *Runtime) PageSize(doc resource.Handle, index int) (Size, error) {
	const op = "PageSize"
	ds, err := r.lockDocument(doc)
	if err != nil {
		return Size{}, errors.WithOp(err, op)
	}
	defer ds.owner.mu.Unlock()

	n, err := r.pageCountLocked(doc, ds)
	if err != nil {
		return Size{}, errors.WithOp(err, op)
	}
	if index < 0 || index >= n {
		return Size{}, errors.WithOp(errors.IndexOutOfRange(errors.PhaseQuery, uint64(doc), index, n), op)
	}

	w, h := r.engine.PageSize(ds.native, index)
	if w <= 0 || h <= 0 {
		return Size{}, errors.WithOp(errors.New(errors.PhaseQuery, errors.KindEngineFault).
			Handle(uint64(doc)).
			Value(index).
			Detail("engine reported size %gx%g for page %d", w, h, index).
			Build(), op)
	}
	return Size{Width: w, Height: h}, nil
}

// Title returns the title recorded in doc's information dictionary, or ""
// when it has none.
func (r *Runtime) Title(doc resource.Handle) (string, error) {
	const op = "Title"
	ds, err := r.lockDocument(doc)
	if err != nil {
		return "", errors.WithOp(err, op)
	}
	defer ds.owner.mu.Unlock()

	title, ok := r.engine.Title(ds.native)
	if !ok {
		return "", errors.WithOp(errors.New(errors.PhaseQuery, errors.KindEngineFault).
			Handle(uint64(doc)).
			Detail("engine failed to read the document title").
			Build(), op)
	}
	return title, nil
}

// Path returns the path doc was opened from.
func (r *Runtime) Path(doc resource.Handle) (string, error) {
	ds, err := r.lockDocument(doc)
	if err != nil {
		return "", errors.WithOp(err, "Path")
	}
	defer ds.owner.mu.Unlock()
	return ds.path, nil
}

// Documents returns the open Documents owned by ctx in open order.
func (r *Runtime) Documents(ctx resource.Handle) ([]resource.Handle, error) {
	const op = "Documents"
	if r.closed.Load() {
		return nil, errors.WithOp(errors.Closed(errors.PhaseResolve, "runtime"), op)
	}
	docs, err := r.reg.Children(ctx)
	if err != nil {
		return nil, errors.WithOp(r.closedOr(err), op)
	}
	return docs, nil
}

// CloseDocument releases doc. A second call fails with UseAfterFree.
func (r *Runtime) CloseDocument(doc resource.Handle) error {
	const op = "CloseDocument"
	ds, err := r.lockDocument(doc)
	if err != nil {
		return errors.WithOp(err, op)
	}
	defer ds.owner.mu.Unlock()

	r.engine.Close(ds.native)
	if _, err := r.reg.Invalidate(doc); err != nil {
		return errors.WithOp(err, op)
	}
	return nil
}

// DestroyContext releases ctx according to the teardown policy.
func (r *Runtime) DestroyContext(ctx resource.Handle) error {
	const op = "DestroyContext"
	if r.closed.Load() {
		return errors.WithOp(errors.Closed(errors.PhaseTeardown, "runtime"), op)
	}
	if _, err := r.destroy(ctx, r.policy); err != nil {
		return errors.WithOp(err, op)
	}
	return nil
}

// destroy tears down ctx and returns how many Documents it force-closed.
func (r *Runtime) destroy(ctx resource.Handle, policy TeardownPolicy) (int, error) {
	cs, err := r.lockContext(ctx)
	if err != nil {
		return 0, err
	}
	defer cs.mu.Unlock()

	docs, err := r.reg.Children(ctx)
	if err != nil {
		return 0, err
	}
	if len(docs) > 0 && policy == PolicyReject {
		return 0, errors.ContextHasOpenDocuments(uint64(ctx), len(docs))
	}

	for _, doc := range docs {
		v, err := r.reg.Resolve(doc, resource.KindDocument)
		if err != nil {
			return 0, err
		}
		r.engine.Close(v.(*documentState).native)
		if _, err := r.reg.Invalidate(doc); err != nil {
			return 0, err
		}
	}

	r.engine.Shutdown(cs.native)
	if _, err := r.reg.Invalidate(ctx); err != nil {
		return len(docs), err
	}
	return len(docs), nil
}

// Close destroys every live Context, force-closing their Documents, and
// rejects all later calls with Closed. Documents left open are logged as leaks.
func (r *Runtime) Close() error {
	var firstErr error
	r.closeOnce.Do(func() {
		r.opening.Lock()
		r.closed.Store(true)
		r.opening.Unlock()

		var contexts []resource.Handle
		r.reg.Each(resource.KindContext, func(e resource.Entry) bool {
			contexts = append(contexts, e.Handle)
			return true
		})

		for _, ctx := range contexts {
			n, err := r.destroy(ctx, PolicyForceClose)
			if err != nil {
				// Lost a race with a concurrent DestroyContext.
				if k := errors.KindOf(err); k == errors.KindUseAfterFree || k == errors.KindClosed {
					continue
				}
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if n > 0 {
				Logger().Warn("documents leaked at shutdown",
					zap.Stringer("context", ctx),
					zap.Int("documents", n))
			}
		}

		_ = r.reg.Close()
		r.unsubscribe()
	})
	return firstErr
}

// Stats returns a snapshot of runtime counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Engine:           r.engine.Name(),
		Policy:           r.policy,
		Contexts:         r.reg.Len(resource.KindContext),
		Documents:        r.reg.Len(resource.KindDocument),
		Issued:           r.reg.Issued(),
		LockAcquisitions: r.acquisitions.Load(),
		LockContended:    r.contended.Load(),
	}
}

func (r *Runtime) lock(cs *contextState) {
	r.acquisitions.Add(1)
	if cs.mu.TryLock() {
		return
	}
	r.contended.Add(1)
	cs.mu.Lock()
}

// lockContext resolves ctx, takes its lock and resolves again.
// On success the caller owns the lock.
func (r *Runtime) lockContext(ctx resource.Handle) (*contextState, error) {
	v, err := r.reg.Resolve(ctx, resource.KindContext)
	if err != nil {
		return nil, err
	}
	cs := v.(*contextState)

	r.lock(cs)
	if _, err := r.reg.Resolve(ctx, resource.KindContext); err != nil {
		cs.mu.Unlock()
		return nil, r.closedOr(err)
	}
	return cs, nil
}

// lockDocument resolves doc, takes its owner's lock and resolves again.
// On success the caller owns ds.owner.mu.
func (r *Runtime) lockDocument(doc resource.Handle) (*documentState, error) {
	if r.closed.Load() {
		return nil, errors.Closed(errors.PhaseResolve, "runtime")
	}
	v, err := r.reg.Resolve(doc, resource.KindDocument)
	if err != nil {
		return nil, err
	}
	ds := v.(*documentState)

	r.lock(ds.owner)
	if _, err := r.reg.Resolve(doc, resource.KindDocument); err != nil {
		ds.owner.mu.Unlock()
		return nil, r.closedOr(err)
	}
	return ds, nil
}

// closedOr reports Closed for handles retired by a concurrent Close.
func (r *Runtime) closedOr(err error) error {
	if r.closed.Load() && errors.KindOf(err) == errors.KindUseAfterFree {
		return errors.Wrap(errors.PhaseResolve, errors.KindClosed, err, "runtime closed")
	}
	return err
}
