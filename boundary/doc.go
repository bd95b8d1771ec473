// Package boundary exposes the runtime to foreign callers.
//
// Handles cross the boundary as int64 values and page sizes as [2]float64.
// Paths are validated before they reach the runtime: they must be non-empty,
// free of NUL bytes, valid UTF-8 and no longer than Options.MaxPathLength.
//
// Callers that can only pass integers use Status codes: StatusOf maps an
// error to its code and Status.Err maps it back to a matchable error.
//
// Calls describes the operations with WIT types so tools can list them and
// prompt for arguments; Host.Invoke dispatches by name.
package boundary
