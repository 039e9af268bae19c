package host

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

// vmContext field sizes. The vmContext blob itself is owned and populated by
// the host; compiled code only ever dereferences it at the offsets below.
const (
	// LocalMemorySize is the size of the local-memory region: base pointer
	// followed by byte length.
	LocalMemorySize = 16

	// LocalMemoryBaseOffset and LocalMemoryLengthOffset are relative to
	// VMContextLayout.LocalMemoryOffset.
	LocalMemoryBaseOffset   = 0
	LocalMemoryLengthOffset = 8

	// ImportedMemorySize is the size of the imported-memory region: one
	// pointer to the owning instance's memory record.
	ImportedMemorySize = 8

	// ImportedFunctionStride is the per-imported-function region: native
	// entry point followed by the callee's own vmContext pointer.
	ImportedFunctionStride      = 16
	ImportedFunctionEntryOffset = 0
	ImportedFunctionVMCtxOffset = 8
)

// VMContextLayout holds the fixed byte offsets, valid for one module-compile
// session, at which compiled code reads module-instance state out of the
// opaque vmContext. The compiler and the host's later patch/link step must
// agree on the same layout.
type VMContextLayout struct {
	// LocalMemoryOffset locates the locally-defined memory's base/length
	// pair, or -1 when the memory is imported or absent.
	LocalMemoryOffset int32

	// ImportedMemoryOffset locates the pointer to the imported memory's
	// instance record, or -1 when the memory is local or absent. The
	// record pointer is stable for the module instance's lifetime; the
	// base/length inside the record are not.
	ImportedMemoryOffset int32

	// MemoryInstanceBaseOffset and MemoryInstanceLengthOffset locate the
	// mutable base pointer and byte length inside an imported memory's
	// instance record.
	MemoryInstanceBaseOffset   int32
	MemoryInstanceLengthOffset int32

	// ImportedFunctionsOffset is where the per-imported-function
	// (entry point, vmContext) pairs begin.
	ImportedFunctionsOffset int32

	// Size is the total vmContext size in bytes.
	Size int32
}

// ImportedFunctionOffset returns the offset of the (entry, vmContext) pair
// for imported function index. It panics on arithmetic overflow: indices
// come from validated module metadata, so overflow means the host broke the
// boundary contract.
func (l VMContextLayout) ImportedFunctionOffset(index uint32) int32 {
	off, err := safecast.Conv[int32](int64(l.ImportedFunctionsOffset) + int64(index)*ImportedFunctionStride)
	if err != nil {
		panic(fmt.Sprintf("BUG: imported function %d offset overflows vmContext layout", index))
	}
	return off
}

// ComputeLayout derives the session layout from module shape: whether a
// memory exists, whether it is imported, and how many functions are
// imported.
//
// The vmContext is laid out as
//
//	[local memory base+length]    (only when memory is locally defined)
//	[imported memory record ptr]  (only when memory is imported)
//	[imported function pairs]     (entry, vmContext) x importedFunctions
func ComputeLayout(hasMemory, memoryImported bool, importedFunctions uint32) VMContextLayout {
	l := VMContextLayout{
		LocalMemoryOffset:          -1,
		ImportedMemoryOffset:       -1,
		MemoryInstanceBaseOffset:   0,
		MemoryInstanceLengthOffset: 8,
	}

	var offset int32
	if hasMemory {
		if memoryImported {
			l.ImportedMemoryOffset = offset
			offset += ImportedMemorySize
		} else {
			l.LocalMemoryOffset = offset
			offset += LocalMemorySize
		}
	}

	l.ImportedFunctionsOffset = offset
	size, err := safecast.Conv[int32](int64(offset) + int64(importedFunctions)*ImportedFunctionStride)
	if err != nil {
		panic(fmt.Sprintf("BUG: vmContext layout for %d imported functions overflows", importedFunctions))
	}
	l.Size = size
	return l
}

// Fingerprint returns a stable byte encoding of the layout, used to key
// cached compilations: code compiled against one layout must never be
// installed under another.
func (l VMContextLayout) Fingerprint() []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:], uint32(l.LocalMemoryOffset))
	binary.LittleEndian.PutUint32(buf[4:], uint32(l.ImportedMemoryOffset))
	binary.LittleEndian.PutUint32(buf[8:], uint32(l.MemoryInstanceBaseOffset))
	binary.LittleEndian.PutUint32(buf[12:], uint32(l.MemoryInstanceLengthOffset))
	binary.LittleEndian.PutUint32(buf[16:], uint32(l.ImportedFunctionsOffset))
	binary.LittleEndian.PutUint32(buf[20:], uint32(l.Size))
	return buf
}
