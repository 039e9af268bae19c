// Package isa defines the contract between the portable translator and an
// instruction-set backend.
//
// The translator works on a flat frame of 64-bit slots and never names
// machine registers; a backend implementing Emitter owns register use, frame
// layout, and instruction encoding. Sub-packages provide the backends, one
// per supported architecture.
package isa
