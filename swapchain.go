package vzgpu

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu/deque"
)

// SwapchainStatus is the state machine named in spec §4.8.
type SwapchainStatus int

const (
	SwapchainNone SwapchainStatus = iota
	SwapchainCreated
	SwapchainNeedRecreate
	SwapchainInvalid
)

// Swapchain owns the vk.Swapchain, its images, views, and the current
// surface extent, following the state machine of spec §4.8 exactly.
// Grounded on the teacher's swapchain.go CoreSwapchain/NewCoreSwapchain,
// generalized to recreate in place (the teacher only ever constructed a
// fresh one; our Recreate reuses the current instance).
type Swapchain struct {
	device vk.Device
	gpu    vk.PhysicalDevice
	surface vk.Surface

	handle vk.Swapchain
	format vk.SurfaceFormat
	extent vk.Extent2D

	images []*Image
	status SwapchainStatus
}

// NewSwapchain creates the initial swapchain, choosing FIFO present
// mode (guaranteed available) and the surface's reported format,
// following the teacher's format/extent/transform/composite-alpha
// selection in NewCoreSwapchain.
func NewSwapchain(device vk.Device, gpu vk.PhysicalDevice, surface vk.Surface, minImages uint32) (*Swapchain, error) {
	s := &Swapchain{device: device, gpu: gpu, surface: surface, status: SwapchainNone}
	if err := s.create(minImages, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(minImages uint32, old vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(s.gpu, s.surface, &caps)
	if isVkError(ret) {
		return newVkError(ret)
	}
	caps.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(s.gpu, s.surface, &formatCount, nil)
	if formatCount == 0 {
		return newErr(KindInitFailure, "surface exposes no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(s.gpu, s.surface, &formatCount, formats)
	formats[0].Deref()
	format := formats[0]
	if format.Format == vk.FormatUndefined {
		format.Format = vk.FormatB8g8r8a8Srgb
	}

	caps.CurrentExtent.Deref()
	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		return newErr(KindInitFailure, "surface capabilities report no fixed extent")
	}

	desired := minImages
	if caps.MaxImageCount > 0 && desired > caps.MaxImageCount {
		desired = caps.MaxImageCount
	}
	if desired < caps.MinImageCount {
		desired = caps.MinImageCount
	}

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, c := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit, vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit, vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(c) != 0 {
			compositeAlpha = c
			break
		}
	}

	var handle vk.Swapchain
	ret = vk.CreateSwapchain(s.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    desired,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &handle)
	if isVkError(ret) {
		return newVkError(ret)
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.device, old, nil)
	}

	var count uint32
	vk.GetSwapchainImages(s.device, handle, &count, nil)
	raw := make([]vk.Image, count)
	vk.GetSwapchainImages(s.device, handle, &count, raw)

	images := make([]*Image, count)
	for i := range raw {
		img, err := WrapSwapchainImage(s.device, raw[i], format.Format, vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1})
		if err != nil {
			return err
		}
		images[i] = img
	}

	s.handle = handle
	s.format = format
	s.extent = extent
	s.images = images
	s.status = SwapchainCreated
	return nil
}

func (s *Swapchain) ObjStatus() deque.Status {
	if s.status == SwapchainCreated {
		return deque.StatusCreated
	}
	return deque.StatusInvalid
}

func (s *Swapchain) Status() SwapchainStatus  { return s.status }
func (s *Swapchain) Handle() vk.Swapchain     { return s.handle }
func (s *Swapchain) Extent() vk.Extent2D      { return s.extent }
func (s *Swapchain) Format() vk.Format        { return s.format.Format }
func (s *Swapchain) ImageCount() int          { return len(s.images) }
func (s *Swapchain) Image(i int) *Image       { return s.images[i] }

// Acquire implements spec §4.8's acquire algorithm: OUT_OF_DATE or
// SUBOPTIMAL moves the swapchain to need_recreate; any other
// non-success marks it invalid.
func (s *Swapchain) Acquire(sem vk.Semaphore) (imgIdx uint32, err error) {
	ret := vk.AcquireNextImage(s.device, s.handle, vk.MaxUint64, sem, vk.NullFence, &imgIdx)
	switch ret {
	case vk.Success:
		return imgIdx, nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		s.status = SwapchainNeedRecreate
		return imgIdx, newErr(KindSwapchainOutOfDate, "swapchain out of date")
	default:
		s.status = SwapchainInvalid
		return imgIdx, newErr(KindSwapchainInvalid, "acquire failed: %v", newVkError(ret))
	}
}

// Present implements spec §4.8's present algorithm.
func (s *Swapchain) Present(queue vk.Queue, waitSem vk.Semaphore, imgIdx uint32) error {
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{imgIdx},
	})
	switch ret {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		s.status = SwapchainNeedRecreate
		return newErr(KindSwapchainOutOfDate, "present out of date")
	case vk.Suboptimal:
		return nil
	default:
		s.status = SwapchainInvalid
		return newErr(KindSwapchainInvalid, "present failed: %v", newVkError(ret))
	}
}

// Recreate implements spec §4.8's recreate algorithm: wait device idle,
// destroy image views (owned by each wrapped Image), query the new
// surface extent, and build a fresh vk.Swapchain (Vulkan requires a new
// handle; s keeps the same Go identity and Go-level ownership).
func (s *Swapchain) Recreate(minImages uint32) error {
	vk.DeviceWaitIdle(s.device)
	for _, img := range s.images {
		img.Destroy()
	}
	old := s.handle
	if err := s.create(minImages, old); err != nil {
		s.status = SwapchainInvalid
		return err
	}
	return nil
}

func (s *Swapchain) Destroy() {
	for _, img := range s.images {
		img.Destroy()
	}
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device, s.handle, nil)
	}
	s.status = SwapchainNone
}
