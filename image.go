package vzgpu

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu/deque"
)

// Image owns a vk.Image, its backing memory (nil for swapchain images,
// which are owned by the swapchain instead), a view, and the layout
// tracked by the last recorded barrier (spec §3 "Image"). Grounded on
// the teacher's swapchain.go CreateFrameImageView / CreateFrameBuffer
// depth-image sequence, generalized to any format/usage/aspect rather
// than the hardcoded color/depth pair.
type Image struct {
	device vk.Device

	handle vk.Image
	memory vk.DeviceMemory // NullDeviceMemory for swapchain-owned images
	view   vk.ImageView

	format  vk.Format
	extent  vk.Extent3D
	aspect  vk.ImageAspectFlagBits
	tiling  vk.ImageTiling
	layout  vk.ImageLayout
	status  deque.Status
	owned   bool // false for swapchain images: Destroy skips image+memory
}

// ImageOptions configures NewImage.
type ImageOptions struct {
	Format  vk.Format
	Extent  vk.Extent3D
	Usage   vk.ImageUsageFlagBits
	Aspect  vk.ImageAspectFlagBits
	Tiling  vk.ImageTiling // zero value defaults to ImageTilingOptimal
	Samples vk.SampleCountFlagBits // zero value defaults to SampleCount1Bit
}

// NewImage allocates an image of the requested format and usage and
// binds memory to it (device-local, or host-visible and coherent when
// Tiling is linear), mirroring the teacher's depth-image
// creation sequence (CreateImage, GetImageMemoryRequirements,
// FindMemoryTypeIndex, AllocateMemory, BindImageMemory) generalized to
// arbitrary usage flags.
func NewImage(device vk.Device, memProps vk.PhysicalDeviceMemoryProperties, opts ImageOptions) (*Image, error) {
	tiling := opts.Tiling
	if tiling == 0 {
		tiling = vk.ImageTilingOptimal
	}
	samples := opts.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}

	var handle vk.Image
	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      opts.Format,
		Extent:      opts.Extent,
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     samples,
		Tiling:      tiling,
		Usage:       vk.ImageUsageFlags(opts.Usage),
		SharingMode: vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &handle)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &req)
	req.Deref()

	memWant := vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit)
	if tiling == vk.ImageTilingLinear {
		memWant = vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit)
	}
	typeIdx, ok := findMemoryType(memProps, req.MemoryTypeBits, memWant)
	if !ok {
		vk.DestroyImage(device, handle, nil)
		return nil, newErr(KindOOM, "no memory type for image (format=%v tiling=%v)", opts.Format, tiling)
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}, nil, &mem)
	if isVkError(ret) {
		vk.DestroyImage(device, handle, nil)
		return nil, newVkError(ret)
	}
	vk.BindImageMemory(device, handle, mem, 0)

	img := &Image{
		device: device,
		handle: handle,
		memory: mem,
		format: opts.Format,
		extent: opts.Extent,
		aspect: opts.Aspect,
		tiling: tiling,
		layout: vk.ImageLayoutUndefined,
		status: deque.StatusInit,
		owned:  true,
	}
	view, err := createImageView(device, handle, opts.Format, opts.Aspect)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.view = view
	img.status = deque.StatusCreated
	return img, nil
}

// WrapSwapchainImage builds an Image around a vk.Image the swapchain
// already owns; Destroy will skip the image and memory handles.
func WrapSwapchainImage(device vk.Device, handle vk.Image, format vk.Format, extent vk.Extent3D) (*Image, error) {
	view, err := createImageView(device, handle, format, vk.ImageAspectFlagBits(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}
	return &Image{
		device: device,
		handle: handle,
		view:   view,
		format: format,
		extent: extent,
		aspect: vk.ImageAspectFlagBits(vk.ImageAspectColorBit),
		layout: vk.ImageLayoutUndefined,
		status: deque.StatusCreated,
		owned:  false,
	}, nil
}

func createImageView(device vk.Device, image vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if isVkError(ret) {
		return vk.NullImageView, newVkError(ret)
	}
	return view, nil
}

func (img *Image) ObjStatus() deque.Status { return img.status }

func (img *Image) Handle() vk.Image   { return img.handle }
func (img *Image) View() vk.ImageView { return img.view }
func (img *Image) Format() vk.Format  { return img.format }
func (img *Image) Extent() vk.Extent3D { return img.extent }
func (img *Image) Layout() vk.ImageLayout { return img.layout }

// SetLayout records the layout a barrier just transitioned this image
// to. It performs no Vulkan call itself; Recorder.Barrier issues the
// vkCmdPipelineBarrier and calls this afterwards (spec §4.6 "image
// tracks its current layout").
func (img *Image) SetLayout(layout vk.ImageLayout) { img.layout = layout }

func (img *Image) Destroy() {
	vk.DestroyImageView(img.device, img.view, nil)
	if img.owned {
		vk.DestroyImage(img.device, img.handle, nil)
		vk.FreeMemory(img.device, img.memory, nil)
	}
	img.status = deque.StatusDestroyed
}
