package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // handle lookup
	PhaseAllocate Phase = "allocate" // handle issue
	PhaseInit     Phase = "init"     // engine context creation
	PhaseOpen     Phase = "open"     // document open
	PhaseQuery    Phase = "query"    // page count / page size
	PhaseClose    Phase = "close"    // document close
	PhaseTeardown Phase = "teardown" // context destroy
	PhaseMarshal  Phase = "marshal"  // boundary value conversion
	PhaseGuest    Phase = "guest"    // wasm guest memory access
	PhaseLoad     Phase = "load"     // engine library loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidHandle           Kind = "invalid_handle"
	KindWrongKind               Kind = "wrong_kind"
	KindUseAfterFree            Kind = "use_after_free"
	KindInvalidArgument         Kind = "invalid_argument"
	KindIndexOutOfRange         Kind = "index_out_of_range"
	KindEngineInitFailed        Kind = "engine_init_failed"
	KindDocumentOpenFailed      Kind = "document_open_failed"
	KindContextHasOpenDocuments Kind = "context_has_open_documents"
	KindEngineFault             Kind = "engine_fault"
	KindClosed                  Kind = "closed"
)

// Targets for errors.Is. They match any error of the same Kind regardless of Phase.
var (
	ErrInvalidHandle           = &Error{Kind: KindInvalidHandle}
	ErrWrongKind               = &Error{Kind: KindWrongKind}
	ErrUseAfterFree            = &Error{Kind: KindUseAfterFree}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument}
	ErrIndexOutOfRange         = &Error{Kind: KindIndexOutOfRange}
	ErrEngineInitFailed        = &Error{Kind: KindEngineInitFailed}
	ErrDocumentOpenFailed      = &Error{Kind: KindDocumentOpenFailed}
	ErrContextHasOpenDocuments = &Error{Kind: KindContextHasOpenDocuments}
	ErrEngineFault             = &Error{Kind: KindEngineFault}
	ErrClosed                  = &Error{Kind: KindClosed}
)

// Error is the structured error type returned by every layer
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string // boundary call name, e.g. "openDocument"
	Detail string
	Handle uint64
	Code   int32 // engine diagnostic code, 0 when the engine supplied none
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Handle != 0 {
		fmt.Fprintf(&b, " (handle %#016x)", e.Handle)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Code != 0 {
		fmt.Fprintf(&b, " (engine code %d)", e.Code)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Kind must match; Phase must match only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the engine diagnostic code carried by err, or 0.
func CodeOf(err error) int32 {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the boundary call name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Handle sets the offending handle
func (b *Builder) Handle(h uint64) *Builder {
	b.err.Handle = h
	return b
}

// Code sets the engine diagnostic code
func (b *Builder) Code(code int32) *Builder {
	b.err.Code = code
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidHandle creates an error for a handle the registry never issued
func InvalidHandle(phase Phase, handle uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Handle: handle,
		Detail: "handle was never issued",
	}
}

// WrongKind creates an error for a handle used in the wrong namespace
func WrongKind(phase Phase, handle uint64, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindWrongKind,
		Handle: handle,
		Detail: fmt.Sprintf("expected %s handle, got %s handle", want, got),
	}
}

// UseAfterFree creates an error for a handle whose resource is gone
func UseAfterFree(phase Phase, handle uint64, reason string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUseAfterFree,
		Handle: handle,
		Detail: reason,
	}
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: detail,
	}
}

// IndexOutOfRange creates an out of range error
func IndexOutOfRange(phase Phase, handle uint64, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIndexOutOfRange,
		Handle: handle,
		Detail: fmt.Sprintf("page index %d out of range (page count %d)", index, length),
		Value:  index,
	}
}

// EngineInitFailed creates an engine initialization error
func EngineInitFailed(engine string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindEngineInitFailed,
		Detail: fmt.Sprintf("%s engine returned no context", engine),
		Cause:  cause,
	}
}

// DocumentOpenFailed creates a document open error carrying the engine code
func DocumentOpenFailed(path string, code int32, reason string) *Error {
	return &Error{
		Phase:  PhaseOpen,
		Kind:   KindDocumentOpenFailed,
		Detail: fmt.Sprintf("open %q: %s", path, reason),
		Code:   code,
		Value:  path,
	}
}

// ContextHasOpenDocuments creates an error for a refused context teardown
func ContextHasOpenDocuments(handle uint64, open int) *Error {
	return &Error{
		Phase:  PhaseTeardown,
		Kind:   KindContextHasOpenDocuments,
		Handle: handle,
		Detail: fmt.Sprintf("%d document(s) still open", open),
		Value:  open,
	}
}

// EngineFault creates an error for a sentinel result from the engine
func EngineFault(phase Phase, handle uint64, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEngineFault,
		Handle: handle,
		Detail: detail,
	}
}

// Closed creates an error for calls made after shutdown
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithOp returns err with Op set when err is an *Error without one.
// Other errors are returned unchanged.
func WithOp(err error, op string) error {
	var e *Error
	if !stderrors.As(err, &e) || e.Op != "" {
		return err
	}
	c := *e
	c.Op = op
	return &c
}

// Load creates an engine library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindEngineInitFailed,
		Detail: detail,
		Cause:  cause,
	}
}
