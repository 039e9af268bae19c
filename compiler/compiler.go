package compiler

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/host"
	"github.com/wippyai/wasm-codegen/isa"
	"github.com/wippyai/wasm-codegen/isa/arm64"
	"github.com/wippyai/wasm-codegen/target"
	"github.com/wippyai/wasm-codegen/wasm"
)

// Cache stores finished compilations keyed by function body, target, and
// vmContext layout. Implementations must treat stored entries as immutable.
type Cache interface {
	Get(key [32]byte) (host.CompiledFunction, bool, error)
	Put(key [32]byte, fn host.CompiledFunction) error
}

// KeyFunc derives the cache key for one compilation.
type KeyFunc func(desc target.Descriptor, layout host.VMContextLayout, body []byte) [32]byte

// Compiler turns Wasm function bodies into native machine code for one
// fixed target. It holds no per-function state: one Compiler serves any
// number of sequential Compile calls, each against its own host Context.
type Compiler struct {
	desc  target.Descriptor
	cache Cache
	key   KeyFunc
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCache reuses previously compiled code. key derives the lookup key;
// both must be set together.
func WithCache(c Cache, key KeyFunc) Option {
	return func(cc *Compiler) {
		cc.cache = c
		cc.key = key
	}
}

// New builds a compiler for the described target. The descriptor is
// validated here once so Compile can trust it.
func New(desc target.Descriptor, opts ...Option) (*Compiler, error) {
	if !desc.Supported() {
		return nil, errors.New(errors.PhaseTarget, errors.KindUnsupported).
			Op(desc.String()).
			Detail("descriptor does not name a supported target").
			Build()
	}
	c := &Compiler{desc: desc}
	for _, opt := range opts {
		opt(c)
	}
	if (c.cache == nil) != (c.key == nil) {
		return nil, errors.Contract(errors.PhaseTarget, "cache and key function must be set together")
	}
	return c, nil
}

// Target returns the descriptor this compiler emits code for.
func (c *Compiler) Target() target.Descriptor { return c.desc }

func (c *Compiler) newEmitter() (isa.Emitter, error) {
	switch c.desc.Arch {
	case target.ArchARM64:
		return arm64.NewMachine(c.desc)
	default:
		return nil, errors.Unsupported(errors.PhaseCodegen, string(c.desc.Arch))
	}
}

// Compile translates one function body, delivered as a code-section entry
// payload, and reports the result through ctx.ReportCompiled. Cache hits
// short-circuit translation entirely; the layout fingerprint in the key
// guarantees a hit was compiled against an identical vmContext shape.
func (c *Compiler) Compile(ctx host.Context, body []byte) error {
	funcIndex := ctx.CurrentFunctionIndex()

	var key [32]byte
	if c.cache != nil {
		key = c.key(c.desc, ctx.Layout(), body)
		fn, ok, err := c.cache.Get(key)
		if err != nil {
			Logger().Warn("cache lookup failed, recompiling",
				zap.Uint32("func", funcIndex), zap.Error(err))
		} else if ok {
			Logger().Debug("cache hit", zap.Uint32("func", funcIndex))
			ctx.ReportCompiled(fn)
			return nil
		}
	}

	parsed, err := wasm.ParseFuncBody(body)
	if err != nil {
		return errors.InvalidData(errors.PhaseTranslate, "parse function body", err)
	}

	types := NewValidator(ctx)
	env := NewFuncEnvironment(ctx, types)
	em, err := c.newEmitter()
	if err != nil {
		return err
	}

	if err := translate(em, env, types, parsed); err != nil {
		return err
	}

	code, sites, err := em.Finalize()
	if err != nil {
		return err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return errors.Contract(errors.PhaseCodegen,
			"emitted %d code bytes for function %d", len(code), funcIndex)
	}

	relocs := make([]host.RelocationEntry, len(sites))
	for i, s := range sites {
		relocs[i] = host.RelocationEntry{
			TargetFunctionIndex: s.Target,
			CodeOffset:          s.Offset,
			Namespace:           0,
		}
	}
	fn := host.CompiledFunction{Code: code, Relocations: relocs}

	if c.cache != nil {
		if err := c.cache.Put(key, fn); err != nil {
			Logger().Warn("cache store failed",
				zap.Uint32("func", funcIndex), zap.Error(err))
		}
	}

	Logger().Debug("compiled function",
		zap.Uint32("func", funcIndex),
		zap.Int("code_bytes", len(code)),
		zap.Int("relocations", len(relocs)),
		zap.String("target", c.desc.String()))

	ctx.ReportCompiled(fn)
	return nil
}
