package vzgpu

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// BufferType names one of the default typed buffers an Arena keeps,
// matching spec §4.4's "staging, vertex, index, storage,
// uniform-device, uniform-mappable".
type BufferType int

const (
	BufferStaging BufferType = iota
	BufferVertex
	BufferIndex
	BufferStorage
	BufferUniformDevice
	BufferUniformMappable
)

// defaultBufferSize is the starting size for each default buffer kind,
// per original_source/include/datoviz/context.h (16 MiB for
// staging/vertex/index/storage, 4 MiB for both uniform variants; see
// DESIGN.md "Context init default buffer sizes").
func defaultBufferSize(t BufferType) vk.DeviceSize {
	const mib = 1 << 20
	switch t {
	case BufferUniformDevice, BufferUniformMappable:
		return 4 * mib
	default:
		return 16 * mib
	}
}

func (t BufferType) usageFlags() vk.BufferUsageFlagBits {
	switch t {
	case BufferVertex:
		return vk.BufferUsageFlagBits(vk.BufferUsageVertexBufferBit) | vk.BufferUsageFlagBits(vk.BufferUsageTransferDstBit)
	case BufferIndex:
		return vk.BufferUsageFlagBits(vk.BufferUsageIndexBufferBit) | vk.BufferUsageFlagBits(vk.BufferUsageTransferDstBit)
	case BufferStorage:
		return vk.BufferUsageFlagBits(vk.BufferUsageStorageBufferBit) | vk.BufferUsageFlagBits(vk.BufferUsageTransferDstBit) | vk.BufferUsageFlagBits(vk.BufferUsageTransferSrcBit)
	case BufferUniformDevice, BufferUniformMappable:
		return vk.BufferUsageFlagBits(vk.BufferUsageUniformBufferBit) | vk.BufferUsageFlagBits(vk.BufferUsageTransferDstBit)
	case BufferStaging:
		return vk.BufferUsageFlagBits(vk.BufferUsageTransferSrcBit) | vk.BufferUsageFlagBits(vk.BufferUsageTransferDstBit)
	default:
		return 0
	}
}

func (t BufferType) isMappable() bool {
	return t == BufferStaging || t == BufferUniformMappable
}

// Buffer owns device memory of a given total size, usage flags, and a
// bump-allocation cursor (spec §3 "Buffer"). Mappable buffers keep a
// permanent host pointer for the lifetime of the buffer.
type Buffer struct {
	device   vk.Device
	handle   vk.Buffer
	memory   vk.DeviceMemory
	size     vk.DeviceSize
	typ      BufferType
	mapped   unsafe.Pointer
	allocated vk.DeviceSize
}

// createBuffer allocates a vk.Buffer of size backed by memory matching
// want, optionally mapped permanently when t is mappable.
func createBuffer(device vk.Device, memProps vk.PhysicalDeviceMemoryProperties, t BufferType, size vk.DeviceSize) (*Buffer, error) {
	var handle vk.Buffer
	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Usage: vk.BufferUsageFlags(t.usageFlags()),
		Size:  size,
	}, nil, &handle)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &req)
	req.Deref()

	want := vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit)
	if t.isMappable() {
		want = vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit)
	}
	typeIdx, ok := findMemoryType(memProps, req.MemoryTypeBits, want)
	if !ok {
		vk.DestroyBuffer(device, handle, nil)
		return nil, newErr(KindOOM, "no memory type for buffer (usage=%v mappable=%v)", t.usageFlags(), t.isMappable())
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}, nil, &mem)
	if isVkError(ret) {
		vk.DestroyBuffer(device, handle, nil)
		return nil, newVkError(ret)
	}
	vk.BindBufferMemory(device, handle, mem, 0)

	b := &Buffer{device: device, handle: handle, memory: mem, size: size, typ: t}
	if t.isMappable() {
		var ptr unsafe.Pointer
		ret = vk.MapMemory(device, mem, 0, size, 0, &ptr)
		if isVkError(ret) {
			b.destroy()
			return nil, newVkError(ret)
		}
		b.mapped = ptr
	}
	return b, nil
}

func (b *Buffer) destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device, b.memory)
		b.mapped = nil
	}
	vk.FreeMemory(b.device, b.memory, nil)
	vk.DestroyBuffer(b.device, b.handle, nil)
}

// write copies data into the buffer's permanent host pointer at
// offset. Only valid for mappable buffers.
func (b *Buffer) write(offset vk.DeviceSize, data []byte) {
	dst := unsafe.Pointer(uintptr(b.mapped) + uintptr(offset))
	vk.Memcopy(dst, data)
}

// read copies n bytes out of the buffer's permanent host pointer at
// offset. Only valid for mappable buffers.
func (b *Buffer) read(offset vk.DeviceSize, n int) []byte {
	out := make([]byte, n)
	src := unsafe.Pointer(uintptr(b.mapped) + uintptr(offset))
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(out, srcSlice)
	return out
}

// BufferRegions is a view of N same-sized regions within a Buffer
// (spec §3). Invariant: offsets[i+1] - offsets[i] == alignedSize.
type BufferRegions struct {
	buffer      *Buffer
	count       int
	itemSize    vk.DeviceSize
	alignment   vk.DeviceSize
	alignedSize vk.DeviceSize
	offsets     []vk.DeviceSize
}

func (r *BufferRegions) Count() int                { return r.count }
func (r *BufferRegions) ItemSize() vk.DeviceSize    { return r.itemSize }
func (r *BufferRegions) AlignedSize() vk.DeviceSize { return r.alignedSize }
func (r *BufferRegions) Offset(i int) vk.DeviceSize { return r.offsets[i] }
