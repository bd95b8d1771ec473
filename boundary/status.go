package boundary

import (
	"fmt"

	"github.com/wippyai/pdf-runtime/errors"
)

// Status is the integer result code handed to foreign callers.
// Zero is success; every error kind has its own negative code.
type Status int32

const (
	StatusOK                      Status = 0
	StatusInvalidHandle           Status = -1
	StatusWrongKind               Status = -2
	StatusUseAfterFree            Status = -3
	StatusInvalidArgument         Status = -4
	StatusIndexOutOfRange         Status = -5
	StatusEngineInitFailed        Status = -6
	StatusDocumentOpenFailed      Status = -7
	StatusContextHasOpenDocuments Status = -8
	StatusEngineFault             Status = -9
	StatusClosed                  Status = -10
	StatusUnknown                 Status = -99
)

var statusKinds = map[Status]errors.Kind{
	StatusInvalidHandle:           errors.KindInvalidHandle,
	StatusWrongKind:               errors.KindWrongKind,
	StatusUseAfterFree:            errors.KindUseAfterFree,
	StatusInvalidArgument:         errors.KindInvalidArgument,
	StatusIndexOutOfRange:         errors.KindIndexOutOfRange,
	StatusEngineInitFailed:        errors.KindEngineInitFailed,
	StatusDocumentOpenFailed:      errors.KindDocumentOpenFailed,
	StatusContextHasOpenDocuments: errors.KindContextHasOpenDocuments,
	StatusEngineFault:             errors.KindEngineFault,
	StatusClosed:                  errors.KindClosed,
}

var kindStatus = func() map[errors.Kind]Status {
	m := make(map[errors.Kind]Status, len(statusKinds))
	for s, k := range statusKinds {
		m[k] = s
	}
	return m
}()

// StatusOf maps err to its Status. Nil is StatusOK.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	if s, ok := kindStatus[errors.KindOf(err)]; ok {
		return s
	}
	return StatusUnknown
}

// Kind returns the error kind for s, or "" for StatusOK and unknown codes.
func (s Status) Kind() errors.Kind {
	return statusKinds[s]
}

// Err returns an error matching s with errors.Is, or nil for StatusOK.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	k, ok := statusKinds[s]
	if !ok {
		return errors.New(errors.PhaseMarshal, errors.KindEngineFault).
			Code(int32(s)).
			Detail("unknown status %d", int32(s)).
			Build()
	}
	return errors.New(errors.PhaseMarshal, k).Build()
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	if k, ok := statusKinds[s]; ok {
		return string(k)
	}
	return fmt.Sprintf("status(%d)", int32(s))
}
