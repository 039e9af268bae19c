// Package errors provides structured error types for the wasm-codegen library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the offending operation name, a detail
// message, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTranslate, errors.KindUnsupported).
//		Op("call_indirect").
//		Detail("table calls are not lowered yet").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unsupported(errors.PhaseTranslate, "memory.grow")
//	err := errors.OutOfBounds(errors.PhaseValidate, "type", 9, 4)
//
// Two kinds deserve special mention. KindUnsupported is the single,
// well-defined error path for every Wasm construct the compiler does not
// lower yet; hitting one is a development-time defect in the embedding, not
// a runtime condition to recover from. KindContract marks inconsistent
// answers from the host metadata boundary; these are checked eagerly and are
// never tolerated silently.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
