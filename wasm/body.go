package wasm

import (
	"bytes"
	"fmt"
)

// ParseFuncBody parses one code-section entry payload: the run-length encoded
// local declarations followed by the instruction bytes (terminated by `end`).
// The input excludes the leading body-size prefix.
func ParseFuncBody(data []byte) (FuncBody, error) {
	r := bytes.NewReader(data)

	count, err := ReadLEB128u(r)
	if err != nil {
		return FuncBody{}, fmt.Errorf("read local group count: %w", err)
	}

	// Every group takes at least a count byte and a type byte, so a count
	// larger than the remaining input is corrupt; check before allocating.
	if uint64(count) > uint64(r.Len())/2 {
		return FuncBody{}, fmt.Errorf("local group count %d exceeds input size", count)
	}

	var body FuncBody
	if count > 0 {
		body.Locals = make([]LocalEntry, count)
	}
	for i := uint32(0); i < count; i++ {
		n, err := ReadLEB128u(r)
		if err != nil {
			return FuncBody{}, fmt.Errorf("read local group %d count: %w", i, err)
		}
		t, err := r.ReadByte()
		if err != nil {
			return FuncBody{}, fmt.Errorf("read local group %d type: %w", i, err)
		}
		if !ValType(t).Valid() {
			return FuncBody{}, fmt.Errorf("local group %d: invalid value type 0x%02x", i, t)
		}
		body.Locals[i] = LocalEntry{Count: n, ValType: ValType(t)}
	}

	off := len(data) - r.Len()
	body.Code = data[off:]
	if len(body.Code) == 0 {
		return FuncBody{}, fmt.Errorf("empty instruction sequence")
	}
	if body.Code[len(body.Code)-1] != OpEnd {
		return FuncBody{}, fmt.Errorf("instruction sequence not terminated by end")
	}
	return body, nil
}

// EncodeFuncBody encodes locals and instructions back into a code-section
// entry payload. It is the inverse of ParseFuncBody and exists mainly so
// tests and hosts can assemble bodies without a full module encoder.
func EncodeFuncBody(b FuncBody) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(b.Locals)))
	for _, e := range b.Locals {
		WriteLEB128u(&buf, e.Count)
		buf.WriteByte(byte(e.ValType))
	}
	buf.Write(b.Code)
	return buf.Bytes()
}
