package vzgpu

import vk "github.com/vulkan-go/vulkan"

// commandPool wraps one vk.CommandPool bound to a queue family. A
// Device creates one of these per distinct family used by its bound
// queues when it is opened (spec §4.3), grounded on the
// teacher's pools.go CorePool.
type commandPool struct {
	family uint32
	pool   vk.CommandPool
}

func newCommandPool(device vk.Device, family uint32) (*commandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &commandPool{family: family, pool: pool}, nil
}

func (p *commandPool) destroy(device vk.Device) {
	vk.DestroyCommandPool(device, p.pool, nil)
}

// allocCommandBuffers allocates count primary command buffers from p.
func (p *commandPool) allocCommandBuffers(device vk.Device, count int) ([]vk.CommandBuffer, error) {
	bufs := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, bufs)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return bufs, nil
}

// allocTransientCommandBuffer allocates and begins a single one-time
// submission command buffer, used by the transfer engine's copy
// submissions (spec §4.6).
func (p *commandPool) allocTransientCommandBuffer(device vk.Device) (vk.CommandBuffer, error) {
	bufs, err := p.allocCommandBuffers(device, 1)
	if err != nil {
		return nil, err
	}
	cmd := bufs[0]
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return cmd, nil
}

func (p *commandPool) freeCommandBuffers(device vk.Device, bufs []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, p.pool, uint32(len(bufs)), bufs)
}

// defaultDescriptorPoolSizes sizes a descriptor pool for the engine's
// typical binding workload: a handful of uniform/dynamic-uniform and
// combined-image-sampler descriptors, scaled by maxSets.
func defaultDescriptorPoolSizes(maxSets uint32) []vk.DescriptorPoolSize {
	return []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxSets * 4},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: maxSets * 4},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxSets * 8},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: maxSets * 2},
	}
}

func newDescriptorPool(device vk.Device, maxSets uint32) (vk.DescriptorPool, error) {
	sizes := defaultDescriptorPoolSizes(maxSets)
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return pool, nil
}
