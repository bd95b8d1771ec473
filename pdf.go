package pdfruntime

// API is the call contract exposed to foreign callers.
//
// Handles are opaque int64 values; a negative or unissued value is never
// trusted. Every call either succeeds or returns an error whose kind is
// one of the errors package kinds. No call panics.
type API interface {
	InitContext() (int64, error)
	OpenDocument(ctx int64, path string) (int64, error)
	GetPageCount(doc int64) (int32, error)
	GetPageSize(doc int64, index int32) ([2]float64, error)
	GetDocumentTitle(doc int64) (string, error)
	CloseDocument(doc int64) error
	DestroyContext(ctx int64) error
}

// Memory is bounds-checked access to a guest's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	WriteF64(offset uint32, value float64) error
}

// MemorySizer provides the current size of guest memory in bytes.
type MemorySizer interface {
	Size() uint32
}
