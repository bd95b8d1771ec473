package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/pdf-runtime/boundary"
	"github.com/wippyai/pdf-runtime/errors"
)

// Config configures an Engine. A nil Config uses wazero defaults.
type Config struct {
	// MemoryLimitPages sets the maximum memory per guest in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CloseOnContextDone stops guest execution when the call context ends.
	CloseOnContextDone bool
}

// Engine is a wazero runtime with the pdf host module registered.
type Engine struct {
	runtime wazero.Runtime
}

// NewEngine creates a wazero runtime and registers the host module bound to h.
func NewEngine(ctx context.Context, h *boundary.Host, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(cfg.CloseOnContextDone)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := Instantiate(ctx, r, h); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return &Engine{runtime: r}, nil
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Load compiles and instantiates a guest module. A "_start" export, if
// present, runs during instantiation.
func (e *Engine) Load(ctx context.Context, name string, wasm []byte) (api.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidArgument, err, "compile guest "+name)
	}

	for _, imp := range compiled.ImportedFunctions() {
		mod, fn, _ := imp.Import()
		Logger().Debug("guest import", zap.String("guest", name), zap.String("module", mod), zap.String("func", fn))
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindEngineFault, err, "instantiate guest "+name)
	}
	return mod, nil
}

// Close releases every guest and the host module.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
