package engine

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

var disableConfigDir sync.Once

// PDFCPU is a pure Go engine backed by pdfcpu.
//
// Each context owns its own pdfcpu configuration. Documents are fully read
// at Open; page dimensions are resolved on the first PageSize call.
type PDFCPU struct {
	contexts slots[*model.Configuration]
	docs     slots[*pdfcpuDoc]
}

type pdfcpuDoc struct {
	ctx   *model.Context
	dims  []types.Dim
	owner Ref
}

// NewPDFCPU creates a pdfcpu engine. pdfcpu's on-disk configuration
// directory is disabled; every context uses the built-in defaults.
func NewPDFCPU() *PDFCPU {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPU{}
}

func (e *PDFCPU) Name() string { return NamePDFCPU }

func (e *PDFCPU) Initialize() (ref Ref) {
	defer e.recover("initialize", &ref)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return e.contexts.put(conf)
}

func (e *PDFCPU) Open(ctx Ref, path, password string) (ref Ref, code Code) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("pdfcpu: open panicked",
				zap.String("path", path),
				zap.Any("panic", r))
			ref, code = NullRef, CodeDamaged
		}
	}()

	conf, ok := e.contexts.get(ctx)
	if !ok {
		return NullRef, CodeInternal
	}

	f, err := os.Open(path)
	if err != nil {
		return NullRef, codeForOSError(err)
	}
	defer f.Close()

	// Contexts are never used concurrently, so the password can live on the
	// shared configuration for the duration of the read.
	conf.UserPW = password
	defer func() { conf.UserPW = "" }()

	pctx, err := api.ReadContext(f, conf)
	if err != nil {
		Logger().Debug("pdfcpu: read failed", zap.String("path", path), zap.Error(err))
		return NullRef, classifyPDFCPUError(err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		Logger().Debug("pdfcpu: page tree", zap.String("path", path), zap.Error(err))
		return NullRef, CodeDamaged
	}

	return e.docs.put(&pdfcpuDoc{ctx: pctx, owner: ctx}), CodeNone
}

func (e *PDFCPU) PageCount(doc Ref) (n int) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("pdfcpu: page count panicked", zap.Any("panic", r))
			n = -1
		}
	}()

	d, ok := e.docs.get(doc)
	if !ok {
		return -1
	}
	return d.ctx.PageCount
}

func (e *PDFCPU) PageSize(doc Ref, index int) (w, h float64) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("pdfcpu: page size panicked", zap.Any("panic", r))
			w, h = -1, -1
		}
	}()

	d, ok := e.docs.get(doc)
	if !ok {
		return -1, -1
	}
	if d.dims == nil {
		dims, err := d.ctx.PageDims()
		if err != nil {
			Logger().Debug("pdfcpu: page dims", zap.Error(err))
			return -1, -1
		}
		d.dims = dims
	}
	if index < 0 || index >= len(d.dims) {
		return -1, -1
	}
	return d.dims[index].Width, d.dims[index].Height
}

// Title reads /Title from the information dictionary. ReadContext does not
// validate, so the XRefTable field is only a shortcut when already set.
func (e *PDFCPU) Title(doc Ref) (title string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("pdfcpu: title panicked", zap.Any("panic", r))
			title, ok = "", false
		}
	}()

	d, found := e.docs.get(doc)
	if !found {
		return "", false
	}
	xt := d.ctx.XRefTable
	if xt.Title != "" {
		return xt.Title, true
	}
	if xt.Info == nil {
		return "", true
	}

	info, err := xt.DereferenceDict(*xt.Info)
	if err != nil {
		Logger().Debug("pdfcpu: info dict", zap.Error(err))
		return "", false
	}
	obj, found := info.Find("Title")
	if !found || obj == nil {
		return "", true
	}
	title, err = xt.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		Logger().Debug("pdfcpu: title", zap.Error(err))
		return "", false
	}
	return title, true
}

func (e *PDFCPU) Close(doc Ref) {
	if _, ok := e.docs.drop(doc); !ok {
		Logger().Warn("pdfcpu: close of unknown document", zap.Uint64("ref", uint64(doc)))
	}
}

func (e *PDFCPU) Shutdown(ctx Ref) {
	if _, ok := e.contexts.drop(ctx); !ok {
		Logger().Warn("pdfcpu: shutdown of unknown context", zap.Uint64("ref", uint64(ctx)))
	}
}

// OpenDocuments returns the number of documents not yet closed.
func (e *PDFCPU) OpenDocuments() int {
	return e.docs.len()
}

// Contexts returns the number of contexts not yet shut down.
func (e *PDFCPU) Contexts() int {
	return e.contexts.len()
}

func (e *PDFCPU) recover(op string, ref *Ref) {
	if r := recover(); r != nil {
		Logger().Warn("pdfcpu: panic", zap.String("op", op), zap.Any("panic", r))
		*ref = NullRef
	}
}

func codeForOSError(err error) Code {
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case stderrors.Is(err, fs.ErrPermission):
		return CodePermission
	default:
		return CodeInternal
	}
}

func classifyPDFCPUError(err error) Code {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password"), strings.Contains(msg, "encrypt"):
		return CodeEncrypted
	case strings.Contains(msg, "unsupported"):
		return CodeUnsupported
	default:
		return CodeDamaged
	}
}
