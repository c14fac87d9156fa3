package vzgpu

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// newTestBindings builds a Bindings against a hand-assembled
// DescriptorSlotSet, bypassing NewDescriptorSlotSet/NewBindings (which
// both require a live vk.Device) so the pure offset arithmetic in
// DynamicOffset/dynamicOffsetsFor can be exercised on its own.
func newTestBindings(slots []Slot, imageCount int) *Bindings {
	set := &DescriptorSlotSet{slots: slots}
	return &Bindings{
		set:        set,
		dsets:      make([]vk.DescriptorSet, imageCount),
		bufferRefs: map[int][]vk.DescriptorBufferInfo{},
		imageRefs:  map[int][]vk.DescriptorImageInfo{},
	}
}

func TestDynamicOffsetScalesByAlignment(t *testing.T) {
	slots := []Slot{
		{Binding: 0, Kind: SlotUniformDynamic, alignment: 256},
	}
	b := newTestBindings(slots, 3)

	cases := []struct {
		dynIdx uint32
		want   uint32
	}{
		{0, 0},
		{1, 256},
		{4, 1024},
	}
	for _, c := range cases {
		if got := b.DynamicOffset(0, c.dynIdx); got != c.want {
			t.Errorf("DynamicOffset(0, %d) = %d, want %d", c.dynIdx, got, c.want)
		}
	}
}

func TestDynamicOffsetsForCollectsOnlyDynamicSlotsInOrder(t *testing.T) {
	slots := []Slot{
		{Binding: 0, Kind: SlotUniform},
		{Binding: 1, Kind: SlotUniformDynamic, alignment: 128},
		{Binding: 2, Kind: SlotStorage},
		{Binding: 3, Kind: SlotUniformDynamic, alignment: 64},
	}
	b := newTestBindings(slots, 1)

	offsets := b.dynamicOffsetsFor(2)
	want := []uint32{256, 128}
	if len(offsets) != len(want) {
		t.Fatalf("expected %d dynamic offsets, got %d (%v)", len(want), len(offsets), offsets)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}
}

func TestDynamicOffsetsForEmptyWhenNoDynamicSlots(t *testing.T) {
	slots := []Slot{
		{Binding: 0, Kind: SlotUniform},
		{Binding: 1, Kind: SlotStorage},
	}
	b := newTestBindings(slots, 1)
	if offsets := b.dynamicOffsetsFor(5); len(offsets) != 0 {
		t.Errorf("expected no dynamic offsets, got %v", offsets)
	}
}

func TestSlotKindVkType(t *testing.T) {
	cases := map[SlotKind]vk.DescriptorType{
		SlotUniform:        vk.DescriptorTypeUniformBuffer,
		SlotUniformDynamic: vk.DescriptorTypeUniformBufferDynamic,
		SlotStorage:        vk.DescriptorTypeStorageBuffer,
		SlotImageSampler:   vk.DescriptorTypeCombinedImageSampler,
	}
	for kind, want := range cases {
		if got := kind.vkType(); got != want {
			t.Errorf("SlotKind(%d).vkType() = %v, want %v", kind, got, want)
		}
	}
}
