package vzgpu

import vk "github.com/vulkan-go/vulkan"

// Recorder wraps a single command buffer with the idempotent operation
// list of spec §4.7, grounded on the teacher's instance.go
// setup_command/setup_commands (which hardcoded a single triangle draw
// into a fixed sequence of begin/viewport/bind/draw/end calls) and
// generalized here to an arbitrary op list driven by callers rather
// than one baked-in draw.
type Recorder struct {
	cmd vk.CommandBuffer
}

// NewRecorder wraps an already-allocated command buffer.
func NewRecorder(cmd vk.CommandBuffer) *Recorder { return &Recorder{cmd: cmd} }

func (r *Recorder) Handle() vk.CommandBuffer { return r.cmd }

func (r *Recorder) Begin() error {
	ret := vk.BeginCommandBuffer(r.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	})
	if isVkError(ret) {
		return newVkError(ret)
	}
	return nil
}

func (r *Recorder) BeginRenderPass(rp *RenderPass, fb *Framebuffer, extent vk.Extent2D, clear vk.ClearValue) {
	vk.CmdBeginRenderPass(r.cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp.handle,
		Framebuffer:     fb.handle,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{clear},
	}, vk.SubpassContentsInline)
}

func (r *Recorder) Viewport(extent vk.Extent2D) {
	vk.CmdSetViewport(r.cmd, 0, 1, []vk.Viewport{{
		Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1,
	}})
	vk.CmdSetScissor(r.cmd, 0, 1, []vk.Rect2D{{Extent: extent}})
}

func (r *Recorder) BindVertexBuffer(br *BufferRegions, index int, offset vk.DeviceSize) {
	vk.CmdBindVertexBuffers(r.cmd, 0, 1, []vk.Buffer{br.buffer.handle}, []vk.DeviceSize{br.Offset(index) + offset})
}

func (r *Recorder) BindIndexBuffer(br *BufferRegions, index int, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(r.cmd, br.buffer.handle, br.Offset(index)+offset, indexType)
}

// BindGraphics binds gfx and, when bindings is non-nil, its descriptor set
// at dynIdx's dynamic offsets (spec §4.7 "dynamic bindings").
func (r *Recorder) BindGraphics(gfx *GraphicsPipeline, bindings *Bindings, imageIdx int, dynIdx uint32) {
	vk.CmdBindPipeline(r.cmd, vk.PipelineBindPointGraphics, gfx.handle)
	if bindings == nil {
		return
	}
	set := bindings.Set(imageIdx)
	offsets := bindings.dynamicOffsetsFor(dynIdx)
	vk.CmdBindDescriptorSets(r.cmd, vk.PipelineBindPointGraphics, gfx.layout, 0, 1,
		[]vk.DescriptorSet{set}, uint32(len(offsets)), offsets)
}

func (r *Recorder) BindCompute(cmp *ComputePipeline) {
	vk.CmdBindPipeline(r.cmd, vk.PipelineBindPointCompute, cmp.handle)
}

func (r *Recorder) Draw(first, count uint32) {
	vk.CmdDraw(r.cmd, count, 1, first, 0)
}

func (r *Recorder) DrawIndexed(firstIndex, vertexOffset int32, indexCount uint32) {
	vk.CmdDrawIndexed(r.cmd, indexCount, 1, uint32(firstIndex), vertexOffset, 0)
}

func (r *Recorder) DrawIndirect(br *BufferRegions) {
	vk.CmdDrawIndirect(r.cmd, br.buffer.handle, br.Offset(0), uint32(br.Count()), uint32(br.AlignedSize()))
}

func (r *Recorder) DrawIndexedIndirect(br *BufferRegions) {
	vk.CmdDrawIndexedIndirect(r.cmd, br.buffer.handle, br.Offset(0), uint32(br.Count()), uint32(br.AlignedSize()))
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(r.cmd, x, y, z)
}

// BufferBarrier names one buffer-memory-barrier leg of a Barrier call.
// SrcQueueFamily/DstQueueFamily only matter when Transfer is true (spec
// §4.7: "queue-family ownership transfer uses the queue-family indices
// associated with the logical queues").
type BufferBarrier struct {
	Buffer               vk.Buffer
	SrcAccess, DstAccess vk.AccessFlagBits
	Transfer             bool
	SrcQueueFamily, DstQueueFamily uint32
}

// ImageBarrier names one image-memory-barrier leg of a Barrier call.
type ImageBarrier struct {
	Image                *Image
	SrcAccess, DstAccess vk.AccessFlagBits
	OldLayout, NewLayout vk.ImageLayout
	Transfer             bool
	SrcQueueFamily, DstQueueFamily uint32
}

// Barrier aggregates buffer and image barriers into one
// vkCmdPipelineBarrier call, matching spec §4.7's barrier abstraction.
// Image barriers update the Image's tracked layout afterward.
func (r *Recorder) Barrier(srcStage, dstStage vk.PipelineStageFlagBits, bufs []BufferBarrier, imgs []ImageBarrier) {
	bufBarriers := make([]vk.BufferMemoryBarrier, len(bufs))
	for i, b := range bufs {
		srcFam, dstFam := vk.QueueFamilyIgnored, vk.QueueFamilyIgnored
		if b.Transfer {
			srcFam, dstFam = b.SrcQueueFamily, b.DstQueueFamily
		}
		bufBarriers[i] = vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			SrcQueueFamilyIndex: srcFam,
			DstQueueFamilyIndex: dstFam,
			Buffer:              b.Buffer,
			Size:                vk.WholeSize,
		}
	}
	imgBarriers := make([]vk.ImageMemoryBarrier, len(imgs))
	for i, b := range imgs {
		srcFam, dstFam := vk.QueueFamilyIgnored, vk.QueueFamilyIgnored
		if b.Transfer {
			srcFam, dstFam = b.SrcQueueFamily, b.DstQueueFamily
		}
		imgBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           b.OldLayout,
			NewLayout:           b.NewLayout,
			SrcQueueFamilyIndex: srcFam,
			DstQueueFamilyIndex: dstFam,
			Image:               b.Image.handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(b.Image.aspect),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
	}
	vk.CmdPipelineBarrier(r.cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
		0, 0, nil, uint32(len(bufBarriers)), bufBarriers, uint32(len(imgBarriers)), imgBarriers)
	for _, b := range imgs {
		b.Image.SetLayout(b.NewLayout)
	}
}

// CopyBuffer takes raw handles (rather than *Buffer) so the transfer
// engine, which only ever holds a Dat's vk.Buffer handle via
// BufferHandle(), can record copies without this package exposing
// Buffer's internals.
func (r *Recorder) CopyBuffer(src, dst vk.Buffer, srcOffset, dstOffset, size vk.DeviceSize) {
	vk.CmdCopyBuffer(r.cmd, src, dst, 1, []vk.BufferCopy{{
		SrcOffset: srcOffset, DstOffset: dstOffset, Size: size,
	}})
}

func (r *Recorder) CopyBufferToImage(buf vk.Buffer, bufOffset vk.DeviceSize, img *Image) {
	vk.CmdCopyBufferToImage(r.cmd, buf, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset: bufOffset,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(img.aspect),
			LayerCount: 1,
		},
		ImageExtent: img.extent,
	}})
}

func (r *Recorder) CopyImageToBuffer(img *Image, buf vk.Buffer, bufOffset vk.DeviceSize) {
	vk.CmdCopyImageToBuffer(r.cmd, img.handle, vk.ImageLayoutTransferSrcOptimal, buf, 1, []vk.BufferImageCopy{{
		BufferOffset: bufOffset,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(img.aspect),
			LayerCount: 1,
		},
		ImageExtent: img.extent,
	}})
}

func (r *Recorder) CopyImage(src, dst *Image) {
	subresource := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(src.aspect),
		LayerCount: 1,
	}
	vk.CmdCopyImage(r.cmd, src.handle, vk.ImageLayoutTransferSrcOptimal, dst.handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{{SrcSubresource: subresource, DstSubresource: subresource, Extent: src.extent}})
}

func (r *Recorder) Push(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset, size uint32, data []byte) {
	vk.CmdPushConstants(r.cmd, layout, vk.ShaderStageFlags(stages), offset, size, unsafeBytePtr(data))
}

func (r *Recorder) End() error {
	ret := vk.EndCommandBuffer(r.cmd)
	if isVkError(ret) {
		return newVkError(ret)
	}
	return nil
}
