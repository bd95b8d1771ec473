// Package errors provides structured error types for the pdf-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the boundary call name, the offending handle, the engine
// diagnostic code and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseOpen, errors.KindDocumentOpenFailed).
//		Op("openDocument").
//		Code(3).
//		Detail("document is encrypted").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UseAfterFree(errors.PhaseResolve, h, "closed")
//	err := errors.IndexOutOfRange(errors.PhaseQuery, h, 10, 5)
//
// Callers distinguish failures by Kind:
//
//	if errors.Is(err, perrors.ErrUseAfterFree) { ... }
//	switch perrors.KindOf(err) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
