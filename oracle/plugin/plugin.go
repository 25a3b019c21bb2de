// Package plugin tests candidates with an in-process plugin.
//
// A plugin exports three entry points under fixed names: an initializer that receives the
// checker argument string and returns an opaque state handle (zero means failure), a
// decrypt routine that tests one candidate against that state, and a finalizer called once
// when the search is over. Loaders resolve all three before a plugin is usable.
package plugin

import (
	"context"
	"fmt"

	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/pkg/logging"
	"go.uber.org/zap"
)

// Entry point names every plugin exports.
const (
	InitSymbol     = "crackerPluginInit"
	DecryptSymbol  = "crackerPluginDecrypt"
	FinalizeSymbol = "crackerPluginFinalize"
)

// Symbols lists the required entry points in resolution order.
var Symbols = []string{InitSymbol, DecryptSymbol, FinalizeSymbol}

// State is the opaque handle returned by a plugin's initializer. Zero is the null handle.
type State uint64

// Module is a loaded plugin whose entry points are all resolved.
type Module interface {
	Init(ctx context.Context, args string) (State, error)
	Decrypt(ctx context.Context, candidate string, state State) (bool, error)
	Finalize(ctx context.Context, state State) (bool, error)
	// Close unloads the module. It does not call Finalize.
	Close(ctx context.Context) error
}

// Loader opens plugin files.
type Loader interface {
	Open(ctx context.Context, path string) (Module, error)
}

// Oracle tests candidates with a plugin's decrypt routine.
type Oracle struct {
	path   string
	mod    Module
	state  State
	closed bool
	logger *zap.Logger
}

// Load opens path with loader and initializes it with args. A null state from the
// initializer fails with core.ErrPluginInit; nothing else is called on the plugin then.
func Load(ctx context.Context, loader Loader, path, args string, logger *zap.Logger) (*Oracle, error) {
	mod, err := loader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", core.ErrPluginLoad, path, err)
	}
	return New(ctx, mod, path, args, logger)
}

// New initializes an already loaded module.
func New(ctx context.Context, mod Module, name, args string, logger *zap.Logger) (*Oracle, error) {
	state, err := mod.Init(ctx, args)
	if err == nil && state == 0 {
		err = fmt.Errorf("%s returned no state", InitSymbol)
	}
	if err != nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("%w %s: %w", core.ErrPluginInit, name, err)
	}
	return &Oracle{
		path:   name,
		mod:    mod,
		state:  state,
		logger: logging.Component(logger, "plugin"),
	}, nil
}

func (o *Oracle) Test(ctx context.Context, candidate string) (bool, error) {
	ok, err := o.mod.Decrypt(ctx, candidate, o.state)
	if err != nil {
		return false, fmt.Errorf("plugin %s: %s: %w", o.path, DecryptSymbol, err)
	}
	return ok, nil
}

// Close runs the plugin's finalizer once and unloads it. The finalizer's verdict is
// logged but not returned; only a failure to unload is.
func (o *Oracle) Close(ctx context.Context) error {
	if o.closed {
		return nil
	}
	o.closed = true

	ok, err := o.mod.Finalize(ctx, o.state)
	switch {
	case err != nil:
		o.logger.Warn("plugin finalize failed", zap.String("plugin", o.path), zap.Error(err))
	case !ok:
		o.logger.Warn("plugin finalize reported failure", zap.String("plugin", o.path))
	default:
		o.logger.Debug("plugin finalized", zap.String("plugin", o.path))
	}
	return o.mod.Close(ctx)
}
