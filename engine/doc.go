// Package engine provides the raw binding to the PDF engine.
//
// The binding is a capability set modeled on a C library: every call takes and
// returns plain values, failures are reported as sentinels (a null Ref, a
// negative count, a non-positive dimension) and nothing panics across the
// boundary. Nothing above the runtime package should call an Engine directly;
// callers go through runtime.Runtime, which resolves handles and serializes
// access per context first.
//
// # Capabilities
//
//	Initialize()             -> ctx Ref       (0 on failure)
//	Open(ctx, path, pw)      -> doc Ref, Code (0 and a diagnostic on failure)
//	PageCount(doc)           -> int           (< 0 on failure)
//	PageSize(doc, index)     -> w, h          (<= 0 on failure)
//	Close(doc)
//	Shutdown(ctx)
//
// An engine is not safe for concurrent use against the same context. Calls
// against distinct contexts may run in parallel.
//
// # Backends
//
//	PDFCPU   pure Go, github.com/pdfcpu/pdfcpu (default)
//	Poppler  libpoppler-glib loaded at run time with purego (linux, darwin)
//
// Select one by name with ByName("pdfcpu") or ByName("poppler").
//
// # Refs
//
// Refs are native-style references. Poppler refs are real PopplerDocument
// pointers. PDFCPU refs come from a slot table that reuses freed slots, the
// same way an allocator recycles addresses, so a Ref must never be handed to
// callers as an identity: that is what resource.Handle is for.
package engine
