package vzgpu

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestQueueKindString(t *testing.T) {
	cases := map[QueueKind]string{
		QueueTransfer: "transfer",
		QueueCompute:  "compute",
		QueueRender:   "render",
		QueuePresent:  "present",
		QueueKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("QueueKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestQueueKindRequiredFlags(t *testing.T) {
	if f := QueueCompute.requiredFlags(); f != vk.QueueFlagBits(vk.QueueComputeBit) {
		t.Errorf("QueueCompute.requiredFlags() = %v, want QueueComputeBit", f)
	}
	if f := QueueRender.requiredFlags(); f != vk.QueueFlagBits(vk.QueueGraphicsBit) {
		t.Errorf("QueueRender.requiredFlags() = %v, want QueueGraphicsBit", f)
	}
	if f := QueueTransfer.requiredFlags(); f != 0 {
		t.Errorf("QueueTransfer.requiredFlags() = %v, want 0", f)
	}
	if f := QueuePresent.requiredFlags(); f != 0 {
		t.Errorf("QueuePresent.requiredFlags() = %v, want 0", f)
	}
}

func newTestFamilyProperties(flags ...vk.QueueFlagBits) *familyProperties {
	props := make([]vk.QueueFamilyProperties, len(flags))
	for i, f := range flags {
		props[i] = vk.QueueFamilyProperties{QueueFlags: vk.QueueFlags(f), QueueCount: 4}
	}
	return &familyProperties{props: props, allocated: make([]uint32, len(flags))}
}

func TestSelectQueueFamilyPrefersUnclaimedFamily(t *testing.T) {
	fp := newTestFamilyProperties(
		vk.QueueFlagBits(vk.QueueGraphicsBit),
		vk.QueueFlagBits(vk.QueueGraphicsBit),
	)
	fp.allocated[0] = 1 // family 0 already has a queue bound

	var gpu vk.PhysicalDevice
	idx, ok := fp.selectQueueFamily(gpu, vk.QueueFlagBits(vk.QueueGraphicsBit), vk.NullSurface)
	if !ok {
		t.Fatalf("expected a family to satisfy the request")
	}
	if idx != 1 {
		t.Errorf("expected unclaimed family 1, got %d", idx)
	}
}

func TestSelectQueueFamilyFallsBackToSharedFamily(t *testing.T) {
	fp := newTestFamilyProperties(vk.QueueFlagBits(vk.QueueGraphicsBit))
	fp.allocated[0] = 1

	var gpu vk.PhysicalDevice
	idx, ok := fp.selectQueueFamily(gpu, vk.QueueFlagBits(vk.QueueGraphicsBit), vk.NullSurface)
	if !ok {
		t.Fatalf("expected fallback to the only matching family")
	}
	if idx != 0 {
		t.Errorf("expected family 0, got %d", idx)
	}
}

func TestSelectQueueFamilyNoMatch(t *testing.T) {
	fp := newTestFamilyProperties(vk.QueueFlagBits(vk.QueueComputeBit))

	var gpu vk.PhysicalDevice
	_, ok := fp.selectQueueFamily(gpu, vk.QueueFlagBits(vk.QueueGraphicsBit), vk.NullSurface)
	if ok {
		t.Fatalf("expected no family to satisfy a graphics-only request")
	}
}

func TestBindQueuesSpreadsAcrossFamilies(t *testing.T) {
	fp := newTestFamilyProperties(
		vk.QueueFlagBits(vk.QueueGraphicsBit),
		vk.QueueFlagBits(vk.QueueGraphicsBit),
	)
	var gpu vk.PhysicalDevice
	bindings, err := bindQueues(fp, gpu, vk.NullSurface, []QueueKind{QueueRender, QueueTransfer})
	if err != nil {
		t.Fatalf("bindQueues: %v", err)
	}
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	if bindings[0].family == bindings[1].family {
		t.Errorf("expected distinct families when more than one satisfies the request, got both on %d", bindings[0].family)
	}
}

func TestBindQueuesErrorsWhenNoFamilySatisfies(t *testing.T) {
	fp := newTestFamilyProperties(vk.QueueFlagBits(0))
	var gpu vk.PhysicalDevice
	if _, err := bindQueues(fp, gpu, vk.NullSurface, []QueueKind{QueueRender}); err == nil {
		t.Fatalf("expected an error when no family supports graphics")
	}
}

func TestDeviceQueueCreateInfosSizesToHighestOffset(t *testing.T) {
	bindings := []queueBinding{
		{family: 0, offset: 0},
		{family: 0, offset: 1},
		{family: 2, offset: 0},
	}
	infos := deviceQueueCreateInfos(bindings)
	if len(infos) != 2 {
		t.Fatalf("expected 2 distinct family infos, got %d", len(infos))
	}
	byFamily := map[uint32]uint32{}
	for _, info := range infos {
		byFamily[info.QueueFamilyIndex] = info.QueueCount
	}
	if byFamily[0] != 2 {
		t.Errorf("expected family 0 to request 2 queues, got %d", byFamily[0])
	}
	if byFamily[2] != 1 {
		t.Errorf("expected family 2 to request 1 queue, got %d", byFamily[2])
	}
}
