package boundary

import (
	"math"
	"strings"
	"unicode/utf8"

	pdfruntime "github.com/wippyai/pdf-runtime"
	"github.com/wippyai/pdf-runtime/errors"
	"github.com/wippyai/pdf-runtime/resource"
	"github.com/wippyai/pdf-runtime/runtime"
)

// DefaultMaxPathLength bounds path arguments when Options leaves it unset.
const DefaultMaxPathLength = 4096

// Options configures a Host. A nil Options uses the defaults.
type Options struct {
	// MaxPathLength is the longest accepted path in bytes.
	MaxPathLength int
}

// Host converts foreign call arguments into runtime calls.
type Host struct {
	rt      *runtime.Runtime
	maxPath int
}

var _ pdfruntime.API = (*Host)(nil)

// New creates a Host over rt.
func New(rt *runtime.Runtime, opts *Options) *Host {
	maxPath := DefaultMaxPathLength
	if opts != nil && opts.MaxPathLength > 0 {
		maxPath = opts.MaxPathLength
	}
	return &Host{rt: rt, maxPath: maxPath}
}

// Runtime returns the underlying runtime.
func (h *Host) Runtime() *runtime.Runtime {
	return h.rt
}

// InitContext creates a Context and returns its handle.
func (h *Host) InitContext() (int64, error) {
	ctx, err := h.rt.OpenContext()
	if err != nil {
		return 0, err
	}
	return int64(ctx), nil
}

// OpenDocument opens path under ctx.
func (h *Host) OpenDocument(ctx int64, path string) (int64, error) {
	return h.OpenDocumentWithPassword(ctx, path, "")
}

// OpenDocumentWithPassword opens an encrypted document under ctx.
func (h *Host) OpenDocumentWithPassword(ctx int64, path, password string) (int64, error) {
	const op = "OpenDocument"
	c, err := toHandle(ctx)
	if err != nil {
		return 0, errors.WithOp(err, op)
	}
	if err := h.checkPath(path); err != nil {
		return 0, errors.WithOp(err, op)
	}
	doc, err := h.rt.OpenDocumentWithPassword(c, path, password)
	if err != nil {
		return 0, err
	}
	return int64(doc), nil
}

// OpenDocumentBytes opens a path given as raw foreign bytes.
// The bytes must be valid UTF-8; they are copied before use, and only once
// the length is within MaxPathLength.
func (h *Host) OpenDocumentBytes(ctx int64, path []byte) (int64, error) {
	if len(path) > h.maxPath {
		return 0, errors.WithOp(h.pathTooLong(len(path)), "OpenDocument")
	}
	if !utf8.Valid(path) {
		return 0, errors.WithOp(errors.InvalidArgument(errors.PhaseMarshal, "path is not valid UTF-8"), "OpenDocument")
	}
	return h.OpenDocument(ctx, string(path))
}

// GetPageCount returns the number of pages in doc.
func (h *Host) GetPageCount(doc int64) (int32, error) {
	const op = "GetPageCount"
	d, err := toHandle(doc)
	if err != nil {
		return 0, errors.WithOp(err, op)
	}
	n, err := h.rt.PageCount(d)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, errors.WithOp(errors.EngineFault(errors.PhaseMarshal, uint64(d), "page count overflows int32"), op)
	}
	return int32(n), nil
}

// GetPageSize returns [width, height] in points of the zero-based page index.
func (h *Host) GetPageSize(doc int64, index int32) ([2]float64, error) {
	const op = "GetPageSize"
	d, err := toHandle(doc)
	if err != nil {
		return [2]float64{}, errors.WithOp(err, op)
	}
	size, err := h.rt.PageSize(d, int(index))
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{size.Width, size.Height}, nil
}

// GetDocumentTitle returns the title of doc, or "" when it has none.
func (h *Host) GetDocumentTitle(doc int64) (string, error) {
	d, err := toHandle(doc)
	if err != nil {
		return "", errors.WithOp(err, "GetDocumentTitle")
	}
	return h.rt.Title(d)
}

// CloseDocument releases doc.
func (h *Host) CloseDocument(doc int64) error {
	d, err := toHandle(doc)
	if err != nil {
		return errors.WithOp(err, "CloseDocument")
	}
	return h.rt.CloseDocument(d)
}

// DestroyContext releases ctx under the runtime's teardown policy.
func (h *Host) DestroyContext(ctx int64) error {
	c, err := toHandle(ctx)
	if err != nil {
		return errors.WithOp(err, "DestroyContext")
	}
	return h.rt.DestroyContext(c)
}

// toHandle rejects values no registry could have issued.
// Everything else is left for the registry to judge.
func toHandle(v int64) (resource.Handle, error) {
	if v <= 0 {
		return 0, errors.InvalidHandle(errors.PhaseMarshal, uint64(v))
	}
	return resource.Handle(v), nil
}

func (h *Host) checkPath(path string) error {
	switch {
	case path == "":
		return errors.InvalidArgument(errors.PhaseMarshal, "empty path")
	case len(path) > h.maxPath:
		return h.pathTooLong(len(path))
	case strings.IndexByte(path, 0) >= 0:
		return errors.InvalidArgument(errors.PhaseMarshal, "path contains NUL byte")
	case !utf8.ValidString(path):
		return errors.InvalidArgument(errors.PhaseMarshal, "path is not valid UTF-8")
	}
	return nil
}

func (h *Host) pathTooLong(n int) error {
	return errors.New(errors.PhaseMarshal, errors.KindInvalidArgument).
		Value(n).
		Detail("path is %d bytes, limit %d", n, h.maxPath).
		Build()
}
