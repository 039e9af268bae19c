package cache

import (
	"encoding/binary"

	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/host"
)

// Entry format, little-endian:
//
//	u8  version
//	u32 code length, code bytes
//	u32 relocation count
//	per relocation: u32 target function index, u32 code offset, u32 namespace
const codecVersion = 1

func encodeFunction(fn host.CompiledFunction) []byte {
	out := make([]byte, 0, 1+4+len(fn.Code)+4+12*len(fn.Relocations))
	out = append(out, codecVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fn.Code)))
	out = append(out, fn.Code...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fn.Relocations)))
	for _, r := range fn.Relocations {
		out = binary.LittleEndian.AppendUint32(out, r.TargetFunctionIndex)
		out = binary.LittleEndian.AppendUint32(out, r.CodeOffset)
		out = binary.LittleEndian.AppendUint32(out, r.Namespace)
	}
	return out
}

func decodeFunction(raw []byte) (host.CompiledFunction, error) {
	bad := func(detail string) (host.CompiledFunction, error) {
		return host.CompiledFunction{}, errors.InvalidData(errors.PhaseCache, detail, nil)
	}

	if len(raw) < 1 {
		return bad("empty cache entry")
	}
	if raw[0] != codecVersion {
		return bad("unknown cache entry version")
	}
	raw = raw[1:]

	if len(raw) < 4 {
		return bad("truncated code length")
	}
	codeLen := binary.LittleEndian.Uint32(raw)
	raw = raw[4:]
	if uint32(len(raw)) < codeLen {
		return bad("truncated code")
	}
	code := make([]byte, codeLen)
	copy(code, raw[:codeLen])
	raw = raw[codeLen:]

	if len(raw) < 4 {
		return bad("truncated relocation count")
	}
	count := binary.LittleEndian.Uint32(raw)
	raw = raw[4:]
	// Compare in 64 bits: a corrupted count near 2^32 must not wrap the
	// multiplication into a passing size check and a huge allocation.
	if uint64(len(raw)) != uint64(count)*12 {
		return bad("relocation section size mismatch")
	}

	var relocs []host.RelocationEntry
	if count > 0 {
		relocs = make([]host.RelocationEntry, count)
		for i := range relocs {
			relocs[i] = host.RelocationEntry{
				TargetFunctionIndex: binary.LittleEndian.Uint32(raw[0:]),
				CodeOffset:          binary.LittleEndian.Uint32(raw[4:]),
				Namespace:           binary.LittleEndian.Uint32(raw[8:]),
			}
			raw = raw[12:]
		}
	}
	return host.CompiledFunction{Code: code, Relocations: relocs}, nil
}
