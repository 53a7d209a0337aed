package renderpass

import (
	"unsafe"

	"honnef.co/go/safeish"
)

// DrawIndirectCommand is the 16-byte record read by indirect draws.
type DrawIndirectCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// DrawIndexedIndirectCommand is the 20-byte record read by indexed
// indirect draws.
type DrawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Record sizes in bytes.
const (
	DrawIndirectSize        = int(unsafe.Sizeof(DrawIndirectCommand{}))
	DrawIndexedIndirectSize = int(unsafe.Sizeof(DrawIndexedIndirectCommand{}))
)

// indirectRecords views count records of type T starting offset bytes into
// buf's CPU copy. It returns nil if the range is out of bounds.
func indirectRecords[T any](buf *Buffer, offset uint64, count uint32, size int) []T {
	if buf == nil || count == 0 {
		return nil
	}
	end := offset + uint64(count)*uint64(size)
	if end > uint64(len(buf.Data)) {
		return nil
	}
	return safeish.SliceCast[[]T](buf.Data[offset:end])
}

// PutDrawIndirect appends cmds to dst in wire layout.
func PutDrawIndirect(dst []byte, cmds ...DrawIndirectCommand) []byte {
	return append(dst, safeish.SliceCast[[]byte](cmds)...)
}

// PutDrawIndexedIndirect appends cmds to dst in wire layout.
func PutDrawIndexedIndirect(dst []byte, cmds ...DrawIndexedIndirectCommand) []byte {
	return append(dst, safeish.SliceCast[[]byte](cmds)...)
}
