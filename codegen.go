package wasmcodegen

import (
	"github.com/wippyai/wasm-codegen/cache"
	"github.com/wippyai/wasm-codegen/compiler"
	"github.com/wippyai/wasm-codegen/target"
)

// NewCompiler selects the target for the (architecture, OS) pair and builds
// a compiler for it. Unsupported pairs fail fast here; nothing downstream
// ever guesses a default target.
func NewCompiler(arch target.Arch, os target.OS, opts ...compiler.Option) (*compiler.Compiler, error) {
	desc, err := target.Select(arch, os)
	if err != nil {
		return nil, err
	}
	return compiler.New(desc, opts...)
}

// WithStore reuses compilations persisted in store, keyed by function body,
// target, and vmContext layout. The caller keeps ownership of the store and
// closes it after the last compiler using it is done.
func WithStore(store *cache.Store) compiler.Option {
	return compiler.WithCache(store, cache.Key)
}
