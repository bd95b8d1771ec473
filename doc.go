// Package pdfruntime is a resource-safe runtime for querying PDF documents
// through a native or pure Go engine.
//
// Callers hold opaque handles, never engine pointers. Every handle is
// checked against a registry before use, so a stale, forged or mistyped
// handle produces a typed error instead of touching released memory.
//
// # Architecture Overview
//
//	pdfruntime/          Root package with the API contract and guest Memory interfaces
//	├── errors/          Structured errors with phase and kind
//	├── resource/        Handle registry with cascading invalidation
//	├── engine/          Engine interface, pdfcpu and poppler backends
//	│   └── enginetest/  Fake engine and PDF fixtures for tests
//	├── runtime/         Context and document lifecycle, per-context locking
//	├── boundary/        int64 handles, status codes, WIT call table
//	├── wasmhost/        wazero host module for WebAssembly guests
//	└── cmd/pdfinfo/     Command line and interactive browser
//
// # Quick Start
//
//	rt, err := runtime.New(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	ctx, _ := rt.OpenContext()
//	doc, err := rt.OpenDocument(ctx, "report.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, _ := rt.PageCount(doc)
//	size, _ := rt.PageSize(doc, 0)
//
// # Handles
//
// Context and Document handles live in separate namespaces and are never
// reused. Destroying a Context invalidates every Document it owns in the
// same step. Using any handle afterwards fails with UseAfterFree.
//
// # Foreign Callers
//
// boundary.Host implements API with int64 handles and [2]float64 page sizes.
// wasmhost registers the same calls as a wazero host module named "pdf",
// reporting failures as negative boundary.Status values.
package pdfruntime
