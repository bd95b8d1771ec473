//go:build linux || darwin

package engine

import (
	stderrors "errors"
	"net/url"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/pdf-runtime/errors"
)

// DefaultPopplerLibraries are tried in order by NewPoppler.
var DefaultPopplerLibraries = []string{
	"libpoppler-glib.so.8",
	"libpoppler-glib.so",
	"libpoppler-glib.8.dylib",
	"libpoppler-glib.dylib",
	"/opt/homebrew/lib/libpoppler-glib.dylib",
	"/usr/local/lib/libpoppler-glib.dylib",
}

// poppler error codes from poppler-glib's PopplerError enum.
const (
	popplerErrorInvalid    = 0
	popplerErrorEncrypted  = 1
	popplerErrorOpenFile   = 2
	popplerErrorBadCatalog = 3
	popplerErrorDamaged    = 4
)

// gError mirrors GLib's GError.
type gError struct {
	domain  uint32
	code    int32
	message *byte
}

// Poppler is an engine backed by libpoppler-glib, loaded with purego.
//
// Document refs are PopplerDocument pointers. Poppler has no context object,
// so context refs are tokens issued by the engine.
type Poppler struct {
	lib    uintptr
	tokens slots[struct{}]

	documentNewFromFile func(uri, password string, gerr unsafe.Pointer) uintptr
	documentGetNPages   func(doc uintptr) int32
	documentGetPage     func(doc uintptr, index int32) uintptr
	pageGetSize         func(page uintptr, width, height unsafe.Pointer)
	documentGetTitle    func(doc uintptr) *byte
	gFree               func(ptr unsafe.Pointer)
	objectUnref         func(obj uintptr)
	errorFree           func(gerr unsafe.Pointer)
	getVersion          func() string
}

// NewPoppler loads libpoppler-glib from the first of paths that opens,
// or from DefaultPopplerLibraries when paths is empty.
func NewPoppler(paths ...string) (*Poppler, error) {
	if len(paths) == 0 {
		paths = DefaultPopplerLibraries
	}

	var (
		lib     uintptr
		lastErr error
	)
	for _, p := range paths {
		h, err := purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil && h != 0 {
			lib = h
			break
		}
		lastErr = err
	}
	if lib == 0 {
		return nil, errors.Load("dlopen libpoppler-glib", lastErr)
	}

	e := &Poppler{lib: lib}
	purego.RegisterLibFunc(&e.documentNewFromFile, lib, "poppler_document_new_from_file")
	purego.RegisterLibFunc(&e.documentGetNPages, lib, "poppler_document_get_n_pages")
	purego.RegisterLibFunc(&e.documentGetPage, lib, "poppler_document_get_page")
	purego.RegisterLibFunc(&e.pageGetSize, lib, "poppler_page_get_size")
	purego.RegisterLibFunc(&e.documentGetTitle, lib, "poppler_document_get_title")
	purego.RegisterLibFunc(&e.objectUnref, lib, "g_object_unref")
	purego.RegisterLibFunc(&e.gFree, lib, "g_free")
	purego.RegisterLibFunc(&e.errorFree, lib, "g_error_free")
	purego.RegisterLibFunc(&e.getVersion, lib, "poppler_get_version")

	Logger().Debug("poppler: loaded", zap.String("version", e.getVersion()))
	return e, nil
}

func (e *Poppler) Name() string { return NamePoppler }

// Version returns the version of the loaded poppler library.
func (e *Poppler) Version() string {
	return e.getVersion()
}

func (e *Poppler) Initialize() Ref {
	return e.tokens.put(struct{}{})
}

func (e *Poppler) Open(ctx Ref, path, password string) (Ref, Code) {
	if _, ok := e.tokens.get(ctx); !ok {
		return NullRef, CodeInternal
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return NullRef, CodeInternal
	}
	if _, err := os.Stat(abs); err != nil {
		return NullRef, codeForOSError(err)
	}
	uri := (&url.URL{Scheme: "file", Path: abs}).String()

	var gerr *gError
	doc := e.documentNewFromFile(uri, password, unsafe.Pointer(&gerr))
	if doc == 0 {
		code := CodeDamaged
		if gerr != nil {
			code = popplerCode(gerr.code)
			Logger().Debug("poppler: open failed",
				zap.String("path", abs),
				zap.Int32("code", gerr.code),
				zap.String("message", unix.BytePtrToString(gerr.message)))
			e.errorFree(unsafe.Pointer(gerr))
		}
		return NullRef, code
	}
	return Ref(doc), CodeNone
}

func (e *Poppler) PageCount(doc Ref) int {
	if doc == NullRef {
		return -1
	}
	return int(e.documentGetNPages(uintptr(doc)))
}

func (e *Poppler) PageSize(doc Ref, index int) (float64, float64) {
	if doc == NullRef || index < 0 {
		return -1, -1
	}
	page := e.documentGetPage(uintptr(doc), int32(index))
	if page == 0 {
		return -1, -1
	}
	defer e.objectUnref(page)

	var w, h float64
	e.pageGetSize(page, unsafe.Pointer(&w), unsafe.Pointer(&h))
	return w, h
}

// Title copies the title poppler returns and frees the native string.
func (e *Poppler) Title(doc Ref) (string, bool) {
	if doc == NullRef {
		return "", false
	}
	p := e.documentGetTitle(uintptr(doc))
	if p == nil {
		return "", true
	}
	defer e.gFree(unsafe.Pointer(p))
	return unix.BytePtrToString(p), true
}

func (e *Poppler) Close(doc Ref) {
	if doc == NullRef {
		return
	}
	e.objectUnref(uintptr(doc))
}

func (e *Poppler) Shutdown(ctx Ref) {
	if _, ok := e.tokens.drop(ctx); !ok {
		Logger().Warn("poppler: shutdown of unknown context", zap.Uint64("ref", uint64(ctx)))
	}
}

// Unload closes the library handle. The engine must not be used afterwards.
func (e *Poppler) Unload() error {
	if e.lib == 0 {
		return stderrors.New("poppler: not loaded")
	}
	err := purego.Dlclose(e.lib)
	e.lib = 0
	return err
}

func popplerCode(code int32) Code {
	switch code {
	case popplerErrorEncrypted:
		return CodeEncrypted
	case popplerErrorOpenFile:
		return CodeNotFound
	case popplerErrorInvalid, popplerErrorBadCatalog, popplerErrorDamaged:
		return CodeDamaged
	default:
		return CodeInternal
	}
}
