package resource

import (
	"slices"
	"sync"

	"github.com/wippyai/pdf-runtime/errors"
)

// Registry is the handle table for contexts and documents.
//
// Entries live in an arena indexed by serial. Serials come from a single
// monotonic counter and are never reused, so a stale handle can never alias
// a newer resource. Retired entries keep their kind and state, which lets
// Resolve tell a freed handle from one that was never issued.
type Registry struct {
	entries   []entry
	live      [3]int
	observers []observerSlot
	nextObs   uint64
	obsMu     sync.RWMutex
	mu        sync.RWMutex
	closed    bool
}

type entry struct {
	value    any
	children map[Handle]struct{}
	reason   string
	parent   Handle
	kind     Kind
	state    State
}

type observerSlot struct {
	o  Observer
	id uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make([]entry, 0, 64),
	}
}

// Allocate issues a fresh handle of the given kind.
// A Context takes no parent. A Document requires parent to be a live Context.
func (r *Registry) Allocate(kind Kind, value any, parent Handle) (Handle, error) {
	if !kind.valid() {
		return 0, errors.InvalidArgument(errors.PhaseAllocate, "unknown handle kind "+kind.String())
	}

	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return 0, errors.Closed(errors.PhaseAllocate, "registry")
	}

	switch kind {
	case KindContext:
		if parent != 0 {
			r.mu.Unlock()
			return 0, errors.InvalidArgument(errors.PhaseAllocate, "context handles take no parent")
		}
	case KindDocument:
		if _, err := r.lookupLocked(parent, KindContext); err != nil {
			r.mu.Unlock()
			return 0, err
		}
	}

	serial := uint64(len(r.entries)) + 1
	if serial > maxSerial {
		r.mu.Unlock()
		return 0, errors.New(errors.PhaseAllocate, errors.KindEngineFault).
			Detail("handle space exhausted").
			Build()
	}

	e := entry{
		kind:   kind,
		value:  value,
		parent: parent,
	}
	if kind == KindContext {
		e.state = StateActive
		e.children = make(map[Handle]struct{})
	} else {
		e.state = StateOpen
	}

	r.entries = append(r.entries, e)
	h := makeHandle(kind, serial)
	r.live[kind]++

	if kind == KindDocument {
		r.entries[parent.Serial()-1].children[h] = struct{}{}
	}

	r.mu.Unlock()

	r.notify(Event{
		Type:   EventAllocated,
		Handle: h,
		Kind:   kind,
		Parent: parent,
		Value:  value,
	})

	return h, nil
}

// Resolve returns the value stored for h if it is live and of the expected kind.
func (r *Registry) Resolve(h Handle, kind Kind) (any, error) {
	ent, err := r.Lookup(h, kind)
	if err != nil {
		return nil, err
	}
	return ent.Value, nil
}

// Lookup returns a snapshot of the live entry for h.
//
// Errors:
//   - InvalidHandle: h was never issued
//   - WrongKind: h was issued in the other namespace
//   - UseAfterFree: h, or the context owning it, has been retired
func (r *Registry) Lookup(h Handle, kind Kind) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookupLocked(h, kind)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Value:  e.value,
		Handle: h,
		Parent: e.parent,
		Kind:   e.kind,
		State:  e.state,
	}, nil
}

// State reports the current state of an issued handle.
// Retired handles report their final state.
func (r *Registry) State(h Handle) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.entryLocked(h)
	if err != nil {
		return StateUninitialized, err
	}
	return e.state, nil
}

func (r *Registry) entryLocked(h Handle) (*entry, error) {
	serial := h.Serial()
	if serial == 0 || serial > uint64(len(r.entries)) {
		return nil, errors.InvalidHandle(errors.PhaseResolve, uint64(h))
	}
	e := &r.entries[serial-1]
	if e.kind != h.Kind() {
		return nil, errors.InvalidHandle(errors.PhaseResolve, uint64(h))
	}
	return e, nil
}

func (r *Registry) lookupLocked(h Handle, kind Kind) (*entry, error) {
	e, err := r.entryLocked(h)
	if err != nil {
		return nil, err
	}
	if e.kind != kind {
		return nil, errors.WrongKind(errors.PhaseResolve, uint64(h), kind.String(), e.kind.String())
	}
	if !e.state.Live() {
		return nil, errors.UseAfterFree(errors.PhaseResolve, uint64(h), e.reason)
	}
	if e.kind == KindDocument {
		owner := &r.entries[e.parent.Serial()-1]
		if !owner.state.Live() {
			return nil, errors.UseAfterFree(errors.PhaseResolve, uint64(h), ReasonOwnerDestroyed)
		}
	}
	return e, nil
}

// Invalidate retires a live handle. Any later Resolve fails with UseAfterFree.
//
// Invalidating a Context also retires every Document it still owns, under
// the same lock, so no Document can resolve against a destroyed Context.
// The cascaded Documents are returned so the caller can release them.
func (r *Registry) Invalidate(h Handle) ([]Entry, error) {
	r.mu.Lock()

	e, err := r.entryLocked(h)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if !e.state.Live() {
		r.mu.Unlock()
		return nil, errors.UseAfterFree(errors.PhaseResolve, uint64(h), e.reason)
	}

	events := make([]Event, 0, 1+len(e.children))
	var cascaded []Entry

	switch e.kind {
	case KindContext:
		children := sortedHandles(e.children)
		for _, ch := range children {
			c := &r.entries[ch.Serial()-1]
			cascaded = append(cascaded, Entry{
				Value:  c.value,
				Handle: ch,
				Parent: h,
				Kind:   KindDocument,
				State:  c.state,
			})
			events = append(events, Event{
				Type:   EventCascaded,
				Handle: ch,
				Kind:   KindDocument,
				Parent: h,
				Value:  c.value,
				Reason: ReasonOwnerDestroyed,
			})
			r.retireLocked(c, StateClosed, ReasonOwnerDestroyed)
		}
		clear(e.children)
		events = append(events, Event{
			Type:   EventInvalidated,
			Handle: h,
			Kind:   KindContext,
			Value:  e.value,
			Reason: ReasonDestroyed,
		})
		r.retireLocked(e, StateDestroyed, ReasonDestroyed)

	case KindDocument:
		owner := &r.entries[e.parent.Serial()-1]
		delete(owner.children, h)
		events = append(events, Event{
			Type:   EventInvalidated,
			Handle: h,
			Kind:   KindDocument,
			Parent: e.parent,
			Value:  e.value,
			Reason: ReasonClosed,
		})
		r.retireLocked(e, StateClosed, ReasonClosed)
	}

	r.mu.Unlock()

	for _, ev := range events {
		r.notify(ev)
	}

	return cascaded, nil
}

func (r *Registry) retireLocked(e *entry, state State, reason string) {
	r.live[e.kind]--
	e.state = state
	e.reason = reason
	e.value = nil
	e.children = nil
}

// Children returns the live Documents owned by a live Context, in issue order.
func (r *Registry) Children(h Handle) ([]Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookupLocked(h, KindContext)
	if err != nil {
		return nil, err
	}
	return sortedHandles(e.children), nil
}

// Len returns the number of live handles of the given kind.
func (r *Registry) Len(kind Kind) int {
	if !kind.valid() {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live[kind]
}

// Issued returns the number of handles issued so far.
func (r *Registry) Issued() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.entries))
}

// Each calls fn for every live entry of the given kind in issue order.
// fn runs on a snapshot, outside the table lock, and may call back into the registry.
func (r *Registry) Each(kind Kind, fn func(Entry) bool) {
	r.mu.RLock()
	var snap []Entry
	for i := range r.entries {
		e := &r.entries[i]
		if e.kind != kind || !e.state.Live() {
			continue
		}
		snap = append(snap, Entry{
			Value:  e.value,
			Handle: makeHandle(e.kind, uint64(i)+1),
			Parent: e.parent,
			Kind:   e.kind,
			State:  e.state,
		})
	}
	r.mu.RUnlock()

	for _, ent := range snap {
		if !fn(ent) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events and returns a function that removes it.
func (r *Registry) Subscribe(o Observer) (cancel func()) {
	r.obsMu.Lock()
	r.nextObs++
	id := r.nextObs
	r.observers = append(r.observers, observerSlot{o: o, id: id})
	r.obsMu.Unlock()

	return func() {
		r.obsMu.Lock()
		defer r.obsMu.Unlock()
		r.observers = slices.DeleteFunc(r.observers, func(s observerSlot) bool {
			return s.id == id
		})
	}
}

// Close retires every live entry and stops accepting allocations.
// It does not release the stored values; callers must have torn them down first.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var events []Event
	for i := range r.entries {
		e := &r.entries[i]
		if !e.state.Live() {
			continue
		}
		state := StateClosed
		if e.kind == KindContext {
			state = StateDestroyed
		}
		events = append(events, Event{
			Type:   EventInvalidated,
			Handle: makeHandle(e.kind, uint64(i)+1),
			Kind:   e.kind,
			Parent: e.parent,
			Value:  e.value,
			Reason: ReasonRegistryClosed,
		})
		r.retireLocked(e, state, ReasonRegistryClosed)
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.notify(ev)
	}
	return nil
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, s := range r.observers {
		s.o.OnHandleEvent(e)
	}
}

func sortedHandles(set map[Handle]struct{}) []Handle {
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
