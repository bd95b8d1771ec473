package runtime

import (
	"strings"

	"github.com/wippyai/pdf-runtime/engine"
	"github.com/wippyai/pdf-runtime/errors"
)

// TeardownPolicy decides what DestroyContext does with Documents still open.
type TeardownPolicy uint8

const (
	// PolicyForceClose closes every owned Document, then the Context.
	PolicyForceClose TeardownPolicy = iota

	// PolicyReject fails with ContextHasOpenDocuments.
	PolicyReject
)

func (p TeardownPolicy) String() string {
	switch p {
	case PolicyForceClose:
		return "force"
	case PolicyReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts "force" or "reject". Empty selects PolicyForceClose.
func ParsePolicy(s string) (TeardownPolicy, error) {
	switch strings.ToLower(s) {
	case "", "force":
		return PolicyForceClose, nil
	case "reject":
		return PolicyReject, nil
	default:
		return 0, errors.InvalidArgument(errors.PhaseLoad, "unknown teardown policy "+s)
	}
}

// Config configures a Runtime. A nil Config uses the defaults.
type Config struct {
	// Engine is the PDF backend. Nil selects the pure Go pdfcpu engine.
	Engine engine.Engine

	// Policy applies to DestroyContext. Close always force-closes.
	Policy TeardownPolicy
}

// Size is a page size in points.
type Size struct {
	Width  float64
	Height float64
}

// Stats is a point-in-time view of a Runtime.
type Stats struct {
	Engine    string
	Policy    TeardownPolicy
	Contexts  int
	Documents int
	Issued    uint64

	// LockAcquisitions counts Context lock acquisitions.
	LockAcquisitions uint64

	// LockContended counts acquisitions that had to wait.
	LockContended uint64
}
