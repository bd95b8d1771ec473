// Package resource provides the handle registry for engine contexts and documents.
//
// Callers never see native references. They hold opaque Handles issued here,
// and every dereference goes through Resolve, which checks that the handle
// was issued, belongs to the expected namespace and is still live.
//
// # Handle Layout
//
// A Handle is a uint64. The top byte is a namespace tag and the low 56 bits
// are a serial from one monotonic counter:
//
//	0x01_00000000000001  context  #1
//	0x02_00000000000002  document #2
//
// Serials are never reused, so a handle that outlives its resource can never
// alias a newer one. Context and document handle values never collide.
//
// # Lifecycle
//
//	reg := resource.NewRegistry()
//
//	ctx, _ := reg.Allocate(resource.KindContext, ctxState, 0)
//	doc, _ := reg.Allocate(resource.KindDocument, docState, ctx)
//
//	v, err := reg.Resolve(doc, resource.KindDocument)
//
//	reg.Invalidate(doc) // document closed
//	reg.Invalidate(ctx) // context destroyed, cascades to any open documents
//
// After Invalidate, Resolve fails with UseAfterFree. Invalidating a context
// retires every document it still owns in the same critical section and
// returns them, so there is no window in which a document resolves against
// a destroyed context.
//
// # Errors
//
//	InvalidHandle  handle was never issued (including forged namespace tags)
//	WrongKind      handle belongs to the other namespace
//	UseAfterFree   handle, or the context owning it, has been retired
//
// # Observers
//
// Subscribe to lifecycle events; observers run after the table lock is released:
//
//	cancel := reg.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s %s", e.Type, e.Handle)
//	}))
//	defer cancel()
//
// The registry never calls into the PDF engine.
package resource
