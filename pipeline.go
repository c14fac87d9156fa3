package vzgpu

import vk "github.com/vulkan-go/vulkan"

// VertexBinding and VertexAttribute let a caller describe an arbitrary
// vertex layout, replacing the teacher's BuildPipeline which always
// passed an empty vertex input state (no bindings, no attributes).
type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	PerInstance bool
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   vk.Format
	Offset   uint32
}

// BlendPolicy picks between no blending (opaque geometry) and standard
// alpha blending; spec §4.5 only distinguishes these two cases.
type BlendPolicy int

const (
	BlendNone BlendPolicy = iota
	BlendAlpha
)

// GraphicsPipelineOptions generalizes the teacher's hardcoded triangle
// pipeline (PipelineBuilder/BuildPipeline) to accept vertex layout,
// topology, rasterization state, blend policy, depth test, and a
// descriptor-set-layout-derived pipeline layout.
type GraphicsPipelineOptions struct {
	Program    *ShaderProgram
	Bindings   []VertexBinding
	Attributes []VertexAttribute
	Topology   vk.PrimitiveTopology
	PolygonMode vk.PolygonMode
	CullMode   vk.CullModeFlagBits
	FrontFace  vk.FrontFace
	Blend      BlendPolicy
	DepthTest  bool
	DepthWrite bool
	SetLayouts []vk.DescriptorSetLayout
	PushConstantSize uint32
	PushConstantStages vk.ShaderStageFlagBits
	RenderPass *RenderPass
}

// GraphicsPipeline owns a pipeline layout and a vk.Pipeline for the
// graphics bind point.
type GraphicsPipeline struct {
	device vk.Device
	layout vk.PipelineLayout
	handle vk.Pipeline
}

func NewGraphicsPipeline(device vk.Device, opts GraphicsPipelineOptions) (*GraphicsPipeline, error) {
	bindingDescs := make([]vk.VertexInputBindingDescription, len(opts.Bindings))
	for i, b := range opts.Bindings {
		rate := vk.VertexInputRateVertex
		if b.PerInstance {
			rate = vk.VertexInputRateInstance
		}
		bindingDescs[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: rate,
		}
	}
	attrDescs := make([]vk.VertexInputAttributeDescription, len(opts.Attributes))
	for i, a := range opts.Attributes {
		attrDescs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   a.Format,
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindingDescs)),
		PVertexBindingDescriptions:      bindingDescs,
		VertexAttributeDescriptionCount: uint32(len(attrDescs)),
		PVertexAttributeDescriptions:    attrDescs,
	}

	topology := opts.Topology
	if topology == 0 {
		topology = vk.PrimitiveTopologyTriangleList
	}
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology,
	}

	polygonMode := opts.PolygonMode
	if polygonMode == 0 {
		polygonMode = vk.PolygonModeFill
	}
	frontFace := opts.FrontFace
	if frontFace == 0 {
		frontFace = vk.FrontFaceCounterClockwise
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygonMode,
		CullMode:    vk.CullModeFlags(opts.CullMode),
		FrontFace:   frontFace,
		LineWidth:   1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if opts.Blend == BlendAlpha {
		colorBlendAttachment.BlendEnable = vk.True
		colorBlendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachment.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachment.DstAlphaBlendFactor = vk.BlendFactorZero
		colorBlendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}
	blendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	depthState := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToInt(opts.DepthTest)),
		DepthWriteEnable: vk.Bool32(boolToInt(opts.DepthWrite)),
		DepthCompareOp:   vk.CompareOpLess,
	}

	// Viewport and scissor are dynamic state (spec §4.5): only the
	// counts are baked into the pipeline, and Recorder.Viewport sets
	// the actual rectangles per command buffer via
	// vkCmdSetViewport/vkCmdSetScissor. This lets one pipeline survive
	// a swapchain resize (spec §4.8) instead of going stale.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	layout, err := createPipelineLayout(device, opts.SetLayouts, opts.PushConstantSize, opts.PushConstantStages)
	if err != nil {
		return nil, err
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(opts.Program.Stages)),
		PStages:             opts.Program.stageInfos("main"),
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &blendState,
		PDepthStencilState:  &depthState,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          opts.RenderPass.handle,
		Subpass:             0,
	}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)
	if isVkError(ret) {
		vk.DestroyPipelineLayout(device, layout, nil)
		return nil, newVkError(ret)
	}
	return &GraphicsPipeline{device: device, layout: layout, handle: pipelines[0]}, nil
}

func createPipelineLayout(device vk.Device, setLayouts []vk.DescriptorSetLayout, pushSize uint32, pushStages vk.ShaderStageFlagBits) (vk.PipelineLayout, error) {
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var ranges []vk.PushConstantRange
	if pushSize > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(pushStages),
			Offset:     0,
			Size:       pushSize,
		}}
		info.PushConstantRangeCount = 1
		info.PPushConstantRanges = ranges
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, &info, nil, &layout)
	if isVkError(ret) {
		return vk.NullPipelineLayout, newVkError(ret)
	}
	return layout, nil
}

func (p *GraphicsPipeline) Handle() vk.Pipeline             { return p.handle }
func (p *GraphicsPipeline) Layout() vk.PipelineLayout       { return p.layout }

func (p *GraphicsPipeline) Destroy() {
	vk.DestroyPipeline(p.device, p.handle, nil)
	vk.DestroyPipelineLayout(p.device, p.layout, nil)
}

// ComputePipelineOptions mirrors GraphicsPipelineOptions for the
// compute bind point, which the teacher never implemented (CorePipeline
// only ever built the triangle graphics pipeline).
type ComputePipelineOptions struct {
	Shader     *Shader
	SetLayouts []vk.DescriptorSetLayout
	PushConstantSize   uint32
	PushConstantStages vk.ShaderStageFlagBits
}

type ComputePipeline struct {
	device vk.Device
	layout vk.PipelineLayout
	handle vk.Pipeline
}

func NewComputePipeline(device vk.Device, opts ComputePipelineOptions) (*ComputePipeline, error) {
	layout, err := createPipelineLayout(device, opts.SetLayouts, opts.PushConstantSize, opts.PushConstantStages)
	if err != nil {
		return nil, err
	}
	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  opts.Shader.stageInfo("main"),
		Layout: layout,
	}
	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateComputePipelines(device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines)
	if isVkError(ret) {
		vk.DestroyPipelineLayout(device, layout, nil)
		return nil, newVkError(ret)
	}
	return &ComputePipeline{device: device, layout: layout, handle: pipelines[0]}, nil
}

func (p *ComputePipeline) Handle() vk.Pipeline       { return p.handle }
func (p *ComputePipeline) Layout() vk.PipelineLayout { return p.layout }

func (p *ComputePipeline) Destroy() {
	vk.DestroyPipeline(p.device, p.handle, nil)
	vk.DestroyPipelineLayout(p.device, p.layout, nil)
}
