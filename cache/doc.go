// Package cache persists compiled machine code across runs.
//
// Entries are keyed by a blake3 hash covering the function body, the target
// descriptor, and the vmContext layout fingerprint, stored zstd-compressed
// in a bolt database file. A hit returns code byte-identical to what the
// compiler would produce, so embedders can install it without revalidation.
package cache
