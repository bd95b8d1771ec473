package engine

import (
	"strings"

	"github.com/wippyai/pdf-runtime/errors"
)

// Ref is a native reference to an engine context or document.
// The zero Ref is the null sentinel.
type Ref uintptr

// NullRef is returned by Initialize and Open on failure.
const NullRef Ref = 0

// Code is an engine-supplied diagnostic for a failed Open.
type Code int32

const (
	CodeNone Code = iota
	CodeNotFound
	CodeDamaged
	CodeEncrypted
	CodePermission
	CodeUnsupported
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeNotFound:
		return "file not found"
	case CodeDamaged:
		return "damaged or not a PDF"
	case CodeEncrypted:
		return "encrypted, password required"
	case CodePermission:
		return "permission denied"
	case CodeUnsupported:
		return "unsupported"
	case CodeInternal:
		return "internal engine error"
	default:
		return "unknown"
	}
}

// Engine is the capability set of a PDF engine.
type Engine interface {
	// Name identifies the backend.
	Name() string

	// Initialize creates a new engine context. Returns NullRef on failure.
	Initialize() Ref

	// Open opens the document at path under ctx. password may be empty.
	// Returns NullRef and a diagnostic Code on failure.
	Open(ctx Ref, path, password string) (Ref, Code)

	// PageCount returns the number of pages, or a negative value on failure.
	PageCount(doc Ref) int

	// PageSize returns the size in points of the zero-based page index.
	// A non-positive width or height signals failure.
	PageSize(doc Ref, index int) (width, height float64)

	// Title returns the document information title. A document without
	// one yields "" and true; ok is false on failure.
	Title(doc Ref) (title string, ok bool)

	// Close releases a document.
	Close(doc Ref)

	// Shutdown releases a context. All of its documents must be closed first.
	Shutdown(ctx Ref)
}

// Backend names accepted by ByName.
const (
	NamePDFCPU  = "pdfcpu"
	NamePoppler = "poppler"
)

// ByName returns a new engine for the named backend.
// An empty name selects the default PDFCPU backend.
func ByName(name string) (Engine, error) {
	switch strings.ToLower(name) {
	case "", NamePDFCPU:
		return NewPDFCPU(), nil
	case NamePoppler:
		p, err := NewPoppler()
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.InvalidArgument(errors.PhaseLoad, "unknown engine "+name)
	}
}
