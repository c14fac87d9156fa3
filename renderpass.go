package vzgpu

import vk "github.com/vulkan-go/vulkan"

// Attachment describes one color or depth/stencil attachment of a
// RenderPass, generalizing the teacher's hardcoded color+depth pair
// (CreateRenderPass) to an ordered list per spec §3 "RenderPass".
type Attachment struct {
	Format        vk.Format
	Samples       vk.SampleCountFlagBits
	LoadOp        vk.AttachmentLoadOp
	StoreOp       vk.AttachmentStoreOp
	InitialLayout vk.ImageLayout
	FinalLayout   vk.ImageLayout
	DepthStencil  bool
}

// RenderPass wraps a vk.RenderPass built from an arbitrary attachment
// list with a single subpass, matching the scope spec §3 assigns the
// entity (multi-subpass render graphs are out of scope).
type RenderPass struct {
	device vk.Device
	handle vk.RenderPass
}

// NewRenderPass builds a render pass with one subpass referencing every
// attachment, following the teacher's CreateRenderPass subpass
// dependency pair (external -> subpass 0 -> external) so recorded
// command buffers and the presentation engine synchronize correctly.
func NewRenderPass(device vk.Device, attachments []Attachment) (*RenderPass, error) {
	descs := make([]vk.AttachmentDescription, len(attachments))
	var colorRefs, depthRefs []vk.AttachmentReference
	for i, a := range attachments {
		samples := a.Samples
		if samples == 0 {
			samples = vk.SampleCount1Bit
		}
		descs[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        samples,
			LoadOp:         a.LoadOp,
			StoreOp:        a.StoreOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.InitialLayout,
			FinalLayout:    a.FinalLayout,
		}
		if a.DepthStencil {
			depthRefs = append(depthRefs, vk.AttachmentReference{
				Attachment: uint32(i),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			})
		} else {
			colorRefs = append(colorRefs, vk.AttachmentReference{
				Attachment: uint32(i),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if len(depthRefs) > 0 {
		subpass.PDepthStencilAttachment = &depthRefs[0]
	}

	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:      vk.MaxUint32,
			DstSubpass:      0,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessFlagBits(vk.AccessColorAttachmentReadBit) | vk.AccessFlagBits(vk.AccessColorAttachmentWriteBit)),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
		{
			SrcSubpass:      0,
			DstSubpass:      vk.MaxUint32,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessFlagBits(vk.AccessColorAttachmentReadBit) | vk.AccessFlagBits(vk.AccessColorAttachmentWriteBit)),
			DstAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}

	var handle vk.RenderPass
	ret := vk.CreateRenderPass(device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &handle)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &RenderPass{device: device, handle: handle}, nil
}

func (r *RenderPass) Handle() vk.RenderPass { return r.handle }

func (r *RenderPass) Destroy() {
	vk.DestroyRenderPass(r.device, r.handle, nil)
}

// Framebuffer wraps a vk.Framebuffer attached to one render pass and a
// fixed set of image views, following the teacher's
// CreateFrameBuffer loop (one framebuffer per swapchain image).
type Framebuffer struct {
	device vk.Device
	handle vk.Framebuffer
}

func NewFramebuffer(device vk.Device, pass *RenderPass, views []vk.ImageView, width, height uint32) (*Framebuffer, error) {
	var handle vk.Framebuffer
	ret := vk.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}, nil, &handle)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &Framebuffer{device: device, handle: handle}, nil
}

func (f *Framebuffer) Handle() vk.Framebuffer { return f.handle }

func (f *Framebuffer) Destroy() {
	vk.DestroyFramebuffer(f.device, f.handle, nil)
}
