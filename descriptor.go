package vzgpu

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu/deque"
)

// SlotKind identifies the descriptor type a slot binds, restricted to
// the kinds this engine actually records (spec §3 "Descriptor slot
// set").
type SlotKind int

const (
	SlotUniform SlotKind = iota
	SlotUniformDynamic
	SlotStorage
	SlotImageSampler
)

func (k SlotKind) vkType() vk.DescriptorType {
	switch k {
	case SlotUniform:
		return vk.DescriptorTypeUniformBuffer
	case SlotUniformDynamic:
		return vk.DescriptorTypeUniformBufferDynamic
	case SlotStorage:
		return vk.DescriptorTypeStorageBuffer
	case SlotImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

// Slot is one (binding index, descriptor type, optional item size for
// dynamic UBO) entry of a DescriptorSlotSet.
type Slot struct {
	Binding  uint32
	Kind     SlotKind
	Stages   vk.ShaderStageFlagBits
	ItemSize vk.DeviceSize // only meaningful for SlotUniformDynamic

	alignment vk.DeviceSize // derived from device minUniformBufferOffsetAlignment
}

// DescriptorSlotSet is an ordered list of Slots and the
// vk.DescriptorSetLayout built from them.
type DescriptorSlotSet struct {
	device vk.Device
	slots  []Slot
	layout vk.DescriptorSetLayout
}

// NewDescriptorSlotSet creates the descriptor set layout for slots,
// computing each dynamic slot's alignment from minUBOAlign.
func NewDescriptorSlotSet(device vk.Device, minUBOAlign vk.DeviceSize, slots []Slot) (*DescriptorSlotSet, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(slots))
	for i := range slots {
		if slots[i].Kind == SlotUniformDynamic {
			slots[i].alignment = minUBOAlign
		}
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         slots[i].Binding,
			DescriptorType:  slots[i].Kind.vkType(),
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(slots[i].Stages),
		}
	}

	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &DescriptorSlotSet{device: device, slots: slots, layout: layout}, nil
}

func (s *DescriptorSlotSet) Layout() vk.DescriptorSetLayout { return s.layout }

func (s *DescriptorSlotSet) Destroy() {
	vk.DestroyDescriptorSetLayout(s.device, s.layout, nil)
}

// DynamicAlignment returns the computed alignment for slot index i
// (only meaningful for SlotUniformDynamic).
func (s *DescriptorSlotSet) DynamicAlignment(i int) vk.DeviceSize { return s.slots[i].alignment }

// Bindings is a concrete instance of a DescriptorSlotSet: one
// vk.DescriptorSet per swapchain image when imageCount > 1, with
// resource references attached per slot (spec §3 "Bindings").
type Bindings struct {
	device vk.Device
	set    *DescriptorSlotSet
	dsets  []vk.DescriptorSet
	status deque.Status

	bufferRefs map[int][]vk.DescriptorBufferInfo // slot idx -> per-image buffer info
	imageRefs  map[int][]vk.DescriptorImageInfo
}

func (s *DescriptorSlotSet) NewBindings(pool vk.DescriptorPool, imageCount int) (*Bindings, error) {
	layouts := make([]vk.DescriptorSetLayout, imageCount)
	for i := range layouts {
		layouts[i] = s.layout
	}
	dsets := make([]vk.DescriptorSet, imageCount)
	ret := vk.AllocateDescriptorSets(s.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(imageCount),
		PSetLayouts:        layouts,
	}, dsets)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &Bindings{
		device:     s.device,
		set:        s,
		dsets:      dsets,
		status:     deque.StatusNeedUpdate,
		bufferRefs: map[int][]vk.DescriptorBufferInfo{},
		imageRefs:  map[int][]vk.DescriptorImageInfo{},
	}, nil
}

// ObjStatus implements deque.Tagged so Bindings can live in a deque.Container.
func (b *Bindings) ObjStatus() deque.Status { return b.status }

// SetBuffer attaches dat's region perImage as the resource for slot,
// one reference per descriptor set (spec: "one per swapchain image
// when count>1"). Marks the Bindings need_update.
func (b *Bindings) SetBuffer(slot int, dat *Dat, size vk.DeviceSize) {
	refs := make([]vk.DescriptorBufferInfo, len(b.dsets))
	for i := range refs {
		region := i
		if region >= dat.regions.count {
			region = dat.regions.count - 1
		}
		refs[i] = vk.DescriptorBufferInfo{
			Buffer: dat.regions.buffer.handle,
			Offset: dat.regions.offsets[region],
			Range:  size,
		}
	}
	b.bufferRefs[slot] = refs
	b.status = deque.StatusNeedUpdate
}

// SetImage attaches tex as the resource for slot.
func (b *Bindings) SetImage(slot int, tex *Tex) {
	refs := make([]vk.DescriptorImageInfo, len(b.dsets))
	for i := range refs {
		refs[i] = vk.DescriptorImageInfo{
			Sampler:     tex.sampler.handle,
			ImageView:   tex.image.view,
			ImageLayout: tex.image.layout,
		}
	}
	b.imageRefs[slot] = refs
	b.status = deque.StatusNeedUpdate
}

// Update applies every pending resource assignment to all dset_count
// descriptor sets in one vkUpdateDescriptorSets pass, per spec §4.5.
func (b *Bindings) Update() {
	var writes []vk.WriteDescriptorSet
	for slotIdx, refs := range b.bufferRefs {
		slot := b.set.slots[slotIdx]
		for img, ref := range refs {
			r := ref
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          b.dsets[img],
				DstBinding:      slot.Binding,
				DescriptorCount: 1,
				DescriptorType:  slot.Kind.vkType(),
				PBufferInfo:     []vk.DescriptorBufferInfo{r},
			})
		}
	}
	for slotIdx, refs := range b.imageRefs {
		slot := b.set.slots[slotIdx]
		for img, ref := range refs {
			r := ref
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          b.dsets[img],
				DstBinding:      slot.Binding,
				DescriptorCount: 1,
				DescriptorType:  slot.Kind.vkType(),
				PImageInfo:      []vk.DescriptorImageInfo{r},
			})
		}
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(b.device, uint32(len(writes)), writes, 0, nil)
	}
	b.status = deque.StatusCreated
}

// DynamicOffset computes offsets[k] = dynIdx * alignment[k] for slot
// k, used by bind_graphics when the pipeline has dynamic UBO slots
// (spec §4.7).
func (b *Bindings) DynamicOffset(slot int, dynIdx uint32) uint32 {
	return uint32(b.set.slots[slot].alignment) * dynIdx
}

// dynamicOffsetsFor collects DynamicOffset(slot, dynIdx) for every
// SlotUniformDynamic slot in declaration order, matching the order
// vkCmdBindDescriptorSets expects dynamic offsets in.
func (b *Bindings) dynamicOffsetsFor(dynIdx uint32) []uint32 {
	var offsets []uint32
	for i, slot := range b.set.slots {
		if slot.Kind == SlotUniformDynamic {
			offsets = append(offsets, b.DynamicOffset(i, dynIdx))
		}
	}
	return offsets
}

func (b *Bindings) Set(imageIdx int) vk.DescriptorSet { return b.dsets[imageIdx] }

func (b *Bindings) Layout() vk.DescriptorSetLayout { return b.set.layout }
