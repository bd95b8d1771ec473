package boundary

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/pdf-runtime/errors"
)

// Param is a named call parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Call describes one boundary operation.
type Call struct {
	// Result is nil for calls that only report a status.
	Result wit.Type
	Name   string
	Doc    string
	Params []Param
}

var pageSizeType = &wit.TypeDef{
	Name: ptr("page-size"),
	Kind: &wit.Tuple{Types: []wit.Type{wit.F64{}, wit.F64{}}},
}

// Calls lists the boundary operations in call order.
var Calls = []Call{
	{
		Name:   "init_context",
		Doc:    "create an engine context",
		Result: wit.S64{},
	},
	{
		Name: "open_document",
		Doc:  "open a PDF file under a context",
		Params: []Param{
			{Name: "ctx", Type: wit.S64{}},
			{Name: "path", Type: wit.String{}},
		},
		Result: wit.S64{},
	},
	{
		Name:   "page_count",
		Doc:    "number of pages in a document",
		Params: []Param{{Name: "doc", Type: wit.S64{}}},
		Result: wit.S32{},
	},
	{
		Name: "page_size",
		Doc:  "width and height in points of a zero-based page",
		Params: []Param{
			{Name: "doc", Type: wit.S64{}},
			{Name: "index", Type: wit.S32{}},
		},
		Result: pageSizeType,
	},
	{
		Name:   "document_title",
		Doc:    "title from the document information dictionary",
		Params: []Param{{Name: "doc", Type: wit.S64{}}},
		Result: wit.String{},
	},
	{
		Name:   "close_document",
		Doc:    "close a document",
		Params: []Param{{Name: "doc", Type: wit.S64{}}},
	},
	{
		Name:   "destroy_context",
		Doc:    "destroy a context",
		Params: []Param{{Name: "ctx", Type: wit.S64{}}},
	},
}

// Lookup returns the call named name.
func Lookup(name string) (Call, bool) {
	name = strings.ReplaceAll(name, "-", "_")
	for _, c := range Calls {
		if c.Name == name {
			return c, true
		}
	}
	return Call{}, false
}

// Invoke runs the named call with already converted arguments.
// Argument types follow Call.Params: int64 for s64, int32 for s32, string for string.
func (h *Host) Invoke(name string, args ...any) (any, error) {
	c, ok := Lookup(name)
	if !ok {
		return nil, errors.InvalidArgument(errors.PhaseMarshal, "unknown call "+name)
	}
	if len(args) != len(c.Params) {
		return nil, errors.InvalidArgument(errors.PhaseMarshal,
			fmt.Sprintf("%s takes %d argument(s), got %d", c.Name, len(c.Params), len(args)))
	}

	switch c.Name {
	case "init_context":
		return h.InitContext()
	case "open_document":
		ctx, err := argInt64(c, args, 0)
		if err != nil {
			return nil, err
		}
		path, err := argString(c, args, 1)
		if err != nil {
			return nil, err
		}
		return h.OpenDocument(ctx, path)
	case "page_count":
		doc, err := argInt64(c, args, 0)
		if err != nil {
			return nil, err
		}
		return h.GetPageCount(doc)
	case "page_size":
		doc, err := argInt64(c, args, 0)
		if err != nil {
			return nil, err
		}
		index, err := argInt32(c, args, 1)
		if err != nil {
			return nil, err
		}
		return h.GetPageSize(doc, index)
	case "document_title":
		doc, err := argInt64(c, args, 0)
		if err != nil {
			return nil, err
		}
		return h.GetDocumentTitle(doc)
	case "close_document":
		doc, err := argInt64(c, args, 0)
		if err != nil {
			return nil, err
		}
		return nil, h.CloseDocument(doc)
	case "destroy_context":
		ctx, err := argInt64(c, args, 0)
		if err != nil {
			return nil, err
		}
		return nil, h.DestroyContext(ctx)
	}
	return nil, errors.InvalidArgument(errors.PhaseMarshal, "unknown call "+name)
}

func argInt64(c Call, args []any, i int) (int64, error) {
	if v, ok := args[i].(int64); ok {
		return v, nil
	}
	return 0, argError(c, i, args[i])
}

func argInt32(c Call, args []any, i int) (int32, error) {
	if v, ok := args[i].(int32); ok {
		return v, nil
	}
	return 0, argError(c, i, args[i])
}

func argString(c Call, args []any, i int) (string, error) {
	if v, ok := args[i].(string); ok {
		return v, nil
	}
	return "", argError(c, i, args[i])
}

func argError(c Call, i int, got any) error {
	return errors.New(errors.PhaseMarshal, errors.KindInvalidArgument).
		Op(c.Name).
		Value(got).
		Detail("argument %s: want %s, got %T", c.Params[i].Name, TypeString(c.Params[i].Type), got).
		Build()
}

// TypeString renders t in WIT syntax.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return ""
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if tup, ok := v.Kind.(*wit.Tuple); ok {
			parts := make([]string, len(tup.Types))
			for i, e := range tup.Types {
				parts[i] = TypeString(e)
			}
			return "tuple<" + strings.Join(parts, ", ") + ">"
		}
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// Signature renders c as a WIT function declaration.
func (c Call) Signature() string {
	params := make([]string, len(c.Params))
	for i, p := range c.Params {
		params[i] = p.Name + ": " + TypeString(p.Type)
	}
	sig := kebab(c.Name) + ": func(" + strings.Join(params, ", ") + ")"
	if c.Result != nil {
		sig += " -> " + TypeString(c.Result)
	}
	return sig
}

// WIT renders the call table as a WIT interface.
func WIT() string {
	var b strings.Builder
	b.WriteString("interface pdf {\n")
	for _, c := range Calls {
		fmt.Fprintf(&b, "    /// %s\n    %s;\n", c.Doc, c.Signature())
	}
	b.WriteString("}\n")
	return b.String()
}

func kebab(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

func ptr[T any](v T) *T { return &v }
