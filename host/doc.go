// Package host defines the boundary between the compiler and its embedding
// runtime.
//
// The compiler never parses a module itself. Everything it needs to know
// about the enclosing module — declared types, which function indices are
// imported, memory shape, and the vmContext byte layout — it fetches through
// the Context interface, and the single result of a compilation flows back
// through Context.ReportCompiled.
//
// Three implementations are provided:
//
//   - StaticContext: deterministic in-memory answers over ModuleInfo.
//     Used by tests and by hosts that hold parsed metadata in-process.
//   - CallbackContext: production adapter forwarding every query to a host
//     callback across the embedding boundary.
//   - UnreachableContext: panics on any call; proves code under test never
//     consults the boundary.
//
// # vmContext layout
//
// Compiled code receives two pointer parameters before any Wasm parameter:
// the callee's vmContext and the caller's vmContext. The vmContext is an
// opaque byte blob owned by the host, laid out per ComputeLayout: an
// optional local-memory base/length pair, an optional pointer to an imported
// memory's instance record, then one (entry point, vmContext) pair per
// imported function. The layout is fixed for one module-compile session and
// the host's linker must use the identical layout when instantiating.
//
// # Contract
//
// All queries are pure reads of already-validated metadata. Out-of-range
// indices or inconsistent answers are defects in the embedding; every
// implementation here panics on them rather than tolerating them silently.
package host
