package renderpass

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
)

// Buffer is a range of a GPU buffer. Data is the CPU copy of the range; it
// is what gets uploaded and what the indirect polyfill decodes.
type Buffer struct {
	ID     gpucore.BufferID
	Offset uint64
	Data   []byte
}

// Executor issues the backend commands for one render pass. The Pass calls
// it only in a valid order: BindPipeline before any dynamic state, all
// required state before a draw.
type Executor interface {
	Begin(loadOp gputypes.LoadOp, clear gpucore.Color)

	// BindPipeline makes info's program current. It returns false when the
	// program cannot be built or bound.
	BindPipeline(info *program.Info, bounds gpucore.Rect) bool

	SetScissorRect(r gpucore.ScissorRect)

	// BindTextures binds the stage textures plus the textures referenced
	// by the bound pipeline.
	BindTextures(stageTextures []*gpucore.TextureProxy) bool

	// BindBuffers sets the index, instance and vertex buffers. Nil means
	// unused.
	BindBuffers(index, instance, vertex *Buffer)

	Draw(vertexCount, baseVertex uint32)
	DrawIndexed(indexCount, baseIndex uint32, baseVertex int32)
	DrawInstanced(instanceCount, baseInstance, vertexCount, baseVertex uint32)
	DrawIndexedInstanced(indexCount, baseIndex, instanceCount, baseInstance uint32, baseVertex int32)
	DrawIndirect(buf *Buffer, offset uint64, count uint32)
	DrawIndexedIndirect(buf *Buffer, offset uint64, count uint32)

	// Barrier makes earlier writes to the target visible to reads of the
	// destination by the next draw.
	Barrier(b pipeline.XferBarrier)

	End()
}
