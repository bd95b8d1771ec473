package wasmhost

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	pdfruntime "github.com/wippyai/pdf-runtime"
	"github.com/wippyai/pdf-runtime/boundary"
	"github.com/wippyai/pdf-runtime/errors"
)

// ModuleName is the import module guests link against.
const ModuleName = "pdf"

// Function describes one host export.
type Function struct {
	Handler api.GoModuleFunc
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// Functions returns the host exports bound to h.
func Functions(h *boundary.Host) []Function {
	return []Function{
		{
			Name:    "init_context",
			Results: []api.ValueType{i64},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				v, err := h.InitContext()
				stack[0] = handleResult("init_context", v, err)
			},
		},
		{
			Name:    "open_document",
			Params:  []api.ValueType{i64, i32, i32},
			Results: []api.ValueType{i64},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				c := int64(stack[0])
				ptr, length := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])

				mem, err := memoryOf(mod)
				if err != nil {
					stack[0] = handleResult("open_document", 0, err)
					return
				}
				path, err := mem.Read(ptr, length)
				if err != nil {
					stack[0] = handleResult("open_document", 0, err)
					return
				}
				v, err := h.OpenDocumentBytes(c, path)
				stack[0] = handleResult("open_document", v, err)
			},
		},
		{
			Name:    "page_count",
			Params:  []api.ValueType{i64},
			Results: []api.ValueType{i32},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				n, err := h.GetPageCount(int64(stack[0]))
				stack[0] = countResult("page_count", n, err)
			},
		},
		{
			Name:    "page_size",
			Params:  []api.ValueType{i64, i32, i32},
			Results: []api.ValueType{i32},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				doc := int64(stack[0])
				index := api.DecodeI32(stack[1])
				out := api.DecodeU32(stack[2])

				mem, err := memoryOf(mod)
				if err != nil {
					stack[0] = countResult("page_size", 0, err)
					return
				}
				if err := checkRange(mem, out, 16); err != nil {
					stack[0] = countResult("page_size", 0, err)
					return
				}

				size, err := h.GetPageSize(doc, index)
				if err == nil {
					err = writeSize(mem, out, size)
				}
				stack[0] = countResult("page_size", 0, err)
			},
		},
		{
			Name:    "document_title",
			Params:  []api.ValueType{i64, i32, i32},
			Results: []api.ValueType{i32},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				doc := int64(stack[0])
				ptr, capacity := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])

				mem, err := memoryOf(mod)
				if err != nil {
					stack[0] = countResult("document_title", 0, err)
					return
				}
				if err := checkRange(mem, ptr, capacity); err != nil {
					stack[0] = countResult("document_title", 0, err)
					return
				}

				title, err := h.GetDocumentTitle(doc)
				if err != nil {
					stack[0] = countResult("document_title", 0, err)
					return
				}
				n, err := writeString(mem, ptr, capacity, title)
				stack[0] = countResult("document_title", n, err)
			},
		},
		{
			Name:    "close_document",
			Params:  []api.ValueType{i64},
			Results: []api.ValueType{i32},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = countResult("close_document", 0, h.CloseDocument(int64(stack[0])))
			},
		},
		{
			Name:    "destroy_context",
			Params:  []api.ValueType{i64},
			Results: []api.ValueType{i32},
			Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = countResult("destroy_context", 0, h.DestroyContext(int64(stack[0])))
			},
		},
	}
}

// Instantiate registers the host module in r. Guests instantiated afterwards
// can import ModuleName.
func Instantiate(ctx context.Context, r wazero.Runtime, h *boundary.Host) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleName)
	for _, f := range Functions(h) {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Handler, f.Params, f.Results).
			Export(f.Name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindEngineInitFailed, err, "instantiate host module "+ModuleName)
	}
	return mod, nil
}

// checkRange fails unless [offset, offset+length) lies inside m.
func checkRange(m pdfruntime.MemorySizer, offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(m.Size()) {
		return errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
			Detail("range %d+%d out of bounds (size %d)", offset, length, m.Size()).
			Build()
	}
	return nil
}

// writeSize stores [width, height] as two little-endian f64 at out.
func writeSize(m pdfruntime.Memory, out uint32, size [2]float64) error {
	if err := m.WriteF64(out, size[0]); err != nil {
		return err
	}
	return m.WriteF64(out+8, size[1])
}

// writeString copies at most capacity bytes of s to ptr and returns the
// full length of s, so a guest can retry with a larger buffer.
func writeString(m pdfruntime.Memory, ptr, capacity uint32, s string) (int32, error) {
	if len(s) > math.MaxInt32 {
		return 0, errors.EngineFault(errors.PhaseGuest, 0, "string length overflows i32")
	}
	data := []byte(s)
	if uint64(len(data)) > uint64(capacity) {
		data = data[:capacity]
	}
	if err := m.Write(ptr, data); err != nil {
		return 0, err
	}
	return int32(len(s)), nil
}

// handleResult encodes an i64 result: the handle, or a negative status.
func handleResult(fn string, v int64, err error) uint64 {
	if err != nil {
		s := boundary.StatusOf(err)
		logFailure(fn, s, err)
		return api.EncodeI64(int64(s))
	}
	return api.EncodeI64(v)
}

// countResult encodes an i32 result: n, or a negative status.
func countResult(fn string, n int32, err error) uint64 {
	if err != nil {
		s := boundary.StatusOf(err)
		logFailure(fn, s, err)
		return api.EncodeI32(int32(s))
	}
	return api.EncodeI32(n)
}

func logFailure(fn string, s boundary.Status, err error) {
	Logger().Debug("guest call failed",
		zap.String("func", fn),
		zap.Stringer("status", s),
		zap.Error(err))
}
