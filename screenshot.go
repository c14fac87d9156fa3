package vzgpu

import (
	"image"
	"image/png"
	"os"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Screenshot holds the raw pixels captured by CaptureScreenshot, tightly
// packed row-major RGBA8, one byte per channel (spec §6 "Screenshot
// facility").
type Screenshot struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// CaptureScreenshot copies src into a linear, host-visible staging
// image and reads it back, swizzling BGRA to RGBA when the source
// format requires it. Grounded on the teacher's swapchain.go image/
// memory/view creation sequence, reused here with ImageTilingLinear so
// the result can be mapped directly instead of needing a second
// staging buffer.
func CaptureScreenshot(dev *Device, src *Image) (shot *Screenshot, err error) {
	defer recoverErr(&err)

	extent := src.Extent()
	staging, serr := NewImage(dev.handle, dev.memProps, ImageOptions{
		Format: vk.FormatR8g8b8a8Unorm,
		Extent: extent,
		Usage:  vk.ImageUsageFlagBits(vk.ImageUsageTransferDstBit),
		Aspect: vk.ImageAspectFlagBits(vk.ImageAspectColorBit),
		Tiling: vk.ImageTilingLinear,
	})
	orPanic(serr)
	defer staging.Destroy()

	pool, perr := dev.CommandPool(dev.QueueFamily(0))
	orPanic(perr)
	cmd, cerr := pool.allocTransientCommandBuffer(dev.handle)
	orPanic(cerr)
	defer pool.freeCommandBuffers(dev.handle, []vk.CommandBuffer{cmd})

	subresource := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}

	barrier(cmd, staging.handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	barrierSrc := src.layout
	if barrierSrc == vk.ImageLayoutUndefined {
		barrierSrc = vk.ImageLayoutPresentSrc
	}
	barrier(cmd, src.handle, barrierSrc, vk.ImageLayoutTransferSrcOptimal)

	vk.CmdCopyImage(cmd, src.handle, vk.ImageLayoutTransferSrcOptimal, staging.handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{{
			SrcSubresource: subresource,
			DstSubresource: subresource,
			Extent:         extent,
		}})

	barrier(cmd, staging.handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutGeneral)
	barrier(cmd, src.handle, vk.ImageLayoutTransferSrcOptimal, barrierSrc)
	src.SetLayout(barrierSrc)

	vk.EndCommandBuffer(cmd)
	queue := dev.Queue(0)
	ret := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, vk.NullFence)
	orPanic(newVkError(ret))
	orPanic(newVkError(vk.QueueWaitIdle(queue)))

	var layout vk.SubresourceLayout
	vk.GetImageSubresourceLayout(dev.handle, staging.handle, &vk.ImageSubresource{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	}, &layout)
	layout.Deref()

	var data unsafe.Pointer
	ret = vk.MapMemory(dev.handle, staging.memory, 0, vk.WholeSize, 0, &data)
	orPanic(newVkError(ret))
	defer vk.UnmapMemory(dev.handle, staging.memory)

	row := int(layout.RowPitch)
	w, h := int(extent.Width), int(extent.Height)
	out := make([]byte, w*h*4)
	src8 := unsafe.Slice((*byte)(data), row*h)
	swizzle := isBGRAFormat(src.Format())
	for y := 0; y < h; y++ {
		srow := src8[y*row : y*row+w*4]
		drow := out[y*w*4 : (y+1)*w*4]
		copy(drow, srow)
		if swizzle {
			for x := 0; x < w; x++ {
				drow[x*4], drow[x*4+2] = drow[x*4+2], drow[x*4]
			}
		}
	}

	return &Screenshot{Width: extent.Width, Height: extent.Height, Pixels: out}, nil
}

// WriteFile encodes the capture as a PNG at path. No example repo in
// the corpus pulls in an imaging library, so this leans on the
// standard library's image/png rather than inventing a dependency.
func (shot *Screenshot) WriteFile(path string) error {
	img := &image.RGBA{
		Pix:    shot.Pixels,
		Stride: int(shot.Width) * 4,
		Rect:   image.Rect(0, 0, int(shot.Width), int(shot.Height)),
	}
	f, err := os.Create(path)
	if err != nil {
		return newErr(KindInitFailure, "create screenshot file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return newErr(KindInitFailure, "encode screenshot: %v", err)
	}
	return nil
}

func isBGRAFormat(f vk.Format) bool {
	switch f {
	case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return true
	default:
		return false
	}
}

func barrier(cmd vk.CommandBuffer, image vk.Image, oldLayout, newLayout vk.ImageLayout) {
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}
