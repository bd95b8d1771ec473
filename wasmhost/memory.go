package wasmhost

import (
	"github.com/tetratelabs/wazero/api"

	pdfruntime "github.com/wippyai/pdf-runtime"
	"github.com/wippyai/pdf-runtime/errors"
)

// guestMemory is bounds-checked access to a guest's exported memory.
type guestMemory struct {
	mem api.Memory
}

var (
	_ pdfruntime.Memory      = (*guestMemory)(nil)
	_ pdfruntime.MemorySizer = (*guestMemory)(nil)
)

func memoryOf(mod api.Module) (*guestMemory, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.InvalidArgument(errors.PhaseGuest, "guest exports no memory")
	}
	return &guestMemory{mem: mem}, nil
}

func (m *guestMemory) Size() uint32 {
	return m.mem.Size()
}

func (m *guestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
			Detail("read out of bounds: offset=%d, length=%d, size=%d", offset, length, m.mem.Size()).
			Build()
	}
	return data, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
			Detail("write out of bounds: offset=%d, length=%d, size=%d", offset, len(data), m.mem.Size()).
			Build()
	}
	return nil
}

func (m *guestMemory) WriteF64(offset uint32, value float64) error {
	if !m.mem.WriteFloat64Le(offset, value) {
		return errors.New(errors.PhaseGuest, errors.KindInvalidArgument).
			Detail("write out of bounds: offset=%d, length=8, size=%d", offset, m.mem.Size()).
			Build()
	}
	return nil
}
