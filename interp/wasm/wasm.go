package wasm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/oracle/plugin"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// AllocSymbol is the allocator every WASM plugin exports next to the three entry points,
// func(size i32) i32, returning size bytes of the plugin's memory or 0 on failure. The host
// writes the argument string and the candidates only into memory obtained from it.
const AllocSymbol = "crackerPluginAlloc"

// initializeSymbol is exported by WASI reactors and must run before any other export.
const initializeSymbol = "_initialize"

// DefaultMemoryLimitPages is 4MB of plugin memory.
const DefaultMemoryLimitPages = 64

var i32 = api.ValueTypeI32

// signatures of the required entry points
var signatures = map[string]struct{ params, results []api.ValueType }{
	plugin.InitSymbol:     {[]api.ValueType{i32, i32}, []api.ValueType{i32}},
	plugin.DecryptSymbol:  {[]api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	plugin.FinalizeSymbol: {[]api.ValueType{i32}, []api.ValueType{i32}},
	AllocSymbol:           {[]api.ValueType{i32}, []api.ValueType{i32}},
}

// required exports, in resolution order
var required = append(append([]string(nil), plugin.Symbols...), AllocSymbol)

// Loader loads WASM plugins with the wazero runtime.
type Loader struct {
	memoryLimitPages uint32
}

// NewLoader creates a plugin loader; memoryLimitPages of 0 uses DefaultMemoryLimitPages.
func NewLoader(memoryLimitPages uint32) *Loader {
	if memoryLimitPages == 0 {
		memoryLimitPages = DefaultMemoryLimitPages
	}
	return &Loader{memoryLimitPages: memoryLimitPages}
}

// Open reads, compiles and instantiates the plugin at path.
func (l *Loader) Open(ctx context.Context, path string) (plugin.Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin: %w", err)
	}
	m, err := l.OpenBytes(ctx, filepath.Base(path), bin)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// OpenBytes compiles bin and resolves its entry points. Every required export is
// checked before the module is instantiated, so a plugin missing one never runs.
func (l *Loader) OpenBytes(ctx context.Context, name string, bin []byte) (*Module, error) {
	config := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(l.memoryLimitPages).
		WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, config)

	m, err := instantiate(ctx, runtime, name, bin)
	if err != nil {
		runtime.Close(ctx)
		return nil, err
	}
	return m, nil
}

func instantiate(ctx context.Context, runtime wazero.Runtime, name string, bin []byte) (*Module, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}
	if err := validateExports(compiled); err != nil {
		return nil, err
	}

	instance, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	if start := instance.ExportedFunction(initializeSymbol); start != nil {
		if _, err := start.Call(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize reactor: %w", err)
		}
	}

	return &Module{
		runtime:  runtime,
		instance: instance,
		init:     instance.ExportedFunction(plugin.InitSymbol),
		decrypt:  instance.ExportedFunction(plugin.DecryptSymbol),
		finalize: instance.ExportedFunction(plugin.FinalizeSymbol),
		alloc:    instance.ExportedFunction(AllocSymbol),
	}, nil
}

func validateExports(compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()
	for _, symbol := range required {
		def, ok := exports[symbol]
		if !ok {
			return fmt.Errorf("%w: %s; check exported symbols", core.ErrPluginSymbol, symbol)
		}
		want := signatures[symbol]
		if !sameTypes(def.ParamTypes(), want.params) || !sameTypes(def.ResultTypes(), want.results) {
			return fmt.Errorf("%w: %s has signature %v -> %v, want %v -> %v", core.ErrPluginSymbol,
				symbol, typeNames(def.ParamTypes()), typeNames(def.ResultTypes()),
				typeNames(want.params), typeNames(want.results))
		}
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		return fmt.Errorf("%w: module does not export memory", core.ErrPluginSymbol)
	}
	return nil
}

func sameTypes(got, want []api.ValueType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func typeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

// Module is an instantiated WASM plugin. It implements plugin.Module.
type Module struct {
	runtime  wazero.Runtime
	instance api.Module
	init     api.Function
	decrypt  api.Function
	finalize api.Function
	alloc    api.Function

	// scratch holds candidates; allocated on first use
	scratch    uint32
	hasScratch bool
}

// Init writes args into plugin memory and calls the initializer.
func (m *Module) Init(ctx context.Context, args string) (plugin.State, error) {
	ptr, err := m.place(ctx, args, len(args)+1)
	if err != nil {
		return 0, err
	}
	results, err := m.init.Call(ctx, uint64(ptr), uint64(len(args)))
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", plugin.InitSymbol, err)
	}
	return plugin.State(api.DecodeU32(results[0])), nil
}

// Decrypt writes candidate into plugin memory and asks the plugin to test it.
func (m *Module) Decrypt(ctx context.Context, candidate string, state plugin.State) (bool, error) {
	if !m.hasScratch {
		ptr, err := m.allocate(ctx, core.BufferCapacity+1)
		if err != nil {
			return false, err
		}
		m.scratch, m.hasScratch = ptr, true
	}
	if len(candidate) > core.BufferCapacity {
		return false, fmt.Errorf("%w: candidate of %d characters", core.ErrBufferCapacity, len(candidate))
	}
	if err := m.write(m.scratch, candidate); err != nil {
		return false, err
	}
	results, err := m.decrypt.Call(ctx, uint64(m.scratch), uint64(len(candidate)), uint64(state))
	if err != nil {
		return false, fmt.Errorf("failed to call %s: %w", plugin.DecryptSymbol, err)
	}
	return api.DecodeU32(results[0]) != 0, nil
}

// Finalize calls the plugin's finalizer.
func (m *Module) Finalize(ctx context.Context, state plugin.State) (bool, error) {
	results, err := m.finalize.Call(ctx, uint64(state))
	if err != nil {
		return false, fmt.Errorf("failed to call %s: %w", plugin.FinalizeSymbol, err)
	}
	return api.DecodeU32(results[0]) != 0, nil
}

// Close closes the module and its runtime.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// place allocates size bytes and writes s there.
func (m *Module) place(ctx context.Context, s string, size int) (uint32, error) {
	ptr, err := m.allocate(ctx, size)
	if err != nil {
		return 0, err
	}
	return ptr, m.write(ptr, s)
}

func (m *Module) allocate(ctx context.Context, size int) (uint32, error) {
	results, err := m.alloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", AllocSymbol, err)
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("%s returned null for %d bytes", AllocSymbol, size)
	}
	return ptr, nil
}

// write stores s NUL-terminated at offset so C plugins can read it as a string.
func (m *Module) write(offset uint32, s string) error {
	mem := m.instance.Memory()
	if uint64(offset)+uint64(len(s))+1 > uint64(mem.Size()) {
		return fmt.Errorf("not enough plugin memory: need %d bytes at %d, have %d", len(s)+1, offset, mem.Size())
	}
	if !mem.WriteString(offset, s) || !mem.WriteByte(offset+uint32(len(s)), 0) {
		return fmt.Errorf("failed to write to plugin memory")
	}
	return nil
}
