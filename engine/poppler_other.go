//go:build !(linux || darwin)

package engine

import "github.com/wippyai/pdf-runtime/errors"

// DefaultPopplerLibraries is empty on platforms without purego dlopen support.
var DefaultPopplerLibraries []string

// Poppler is unavailable on this platform.
type Poppler struct{}

// NewPoppler always fails on this platform.
func NewPoppler(paths ...string) (*Poppler, error) {
	return nil, errors.Load("poppler engine requires linux or darwin", nil)
}

func (e *Poppler) Name() string                         { return NamePoppler }
func (e *Poppler) Version() string                      { return "" }
func (e *Poppler) Initialize() Ref                      { return NullRef }
func (e *Poppler) Open(Ref, string, string) (Ref, Code) { return NullRef, CodeUnsupported }
func (e *Poppler) PageCount(Ref) int                    { return -1 }
func (e *Poppler) PageSize(Ref, int) (float64, float64) { return -1, -1 }
func (e *Poppler) Title(Ref) (string, bool)             { return "", false }
func (e *Poppler) Close(Ref)                            {}
func (e *Poppler) Shutdown(Ref)                         {}
func (e *Poppler) Unload() error                        { return nil }
