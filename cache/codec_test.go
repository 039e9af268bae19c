package cache

import "testing"

func TestDecodeRejectsWrappedRelocationCount(t *testing.T) {
	// Zero-length code, then relocation count 0x2AAAAAAB: times 12 that is
	// 0x2_0000_0004, which wraps to 4 in 32-bit arithmetic. With 4 trailing
	// bytes a wrapping size check would pass and allocate ~700M entries.
	raw := []byte{
		codecVersion,
		0x00, 0x00, 0x00, 0x00, // code length 0
		0xAB, 0xAA, 0xAA, 0x2A, // relocation count
		0x01, 0x02, 0x03, 0x04,
	}
	if _, err := decodeFunction(raw); err == nil {
		t.Error("expected error for wrapped relocation count")
	}
}

func TestDecodeRejectsTruncatedEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"unknown version", []byte{0xFF}},
		{"truncated code length", []byte{codecVersion, 0x01}},
		{"truncated code", []byte{codecVersion, 0x08, 0x00, 0x00, 0x00, 0xAA}},
		{"truncated relocations", []byte{
			codecVersion,
			0x00, 0x00, 0x00, 0x00,
			0x01, 0x00, 0x00, 0x00, // one relocation, no bytes for it
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeFunction(tt.raw); err == nil {
				t.Error("expected error")
			}
		})
	}
}
