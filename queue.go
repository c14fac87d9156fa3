package vzgpu

import vk "github.com/vulkan-go/vulkan"

// QueueKind identifies one of the up to four logical queues a Device
// can open (spec §3 "Queue family mapping"): queue 0 always supports
// transfer.
type QueueKind int

const (
	QueueTransfer QueueKind = iota
	QueueCompute
	QueueRender
	QueuePresent
)

func (k QueueKind) String() string {
	switch k {
	case QueueTransfer:
		return "transfer"
	case QueueCompute:
		return "compute"
	case QueueRender:
		return "render"
	case QueuePresent:
		return "present"
	default:
		return "unknown"
	}
}

func (k QueueKind) requiredFlags() vk.QueueFlagBits {
	switch k {
	case QueueCompute:
		return vk.QueueFlagBits(vk.QueueComputeBit)
	case QueueRender:
		return vk.QueueFlagBits(vk.QueueGraphicsBit)
	default:
		return 0
	}
}

// queueBinding records which family a logical queue maps to and which
// slot within that family (offset), per spec's "(family, offset) pair".
type queueBinding struct {
	family uint32
	offset uint32
	handle vk.Queue
	kind   QueueKind
}

// familyProperties caches a physical device's queue family table along
// with per-family allocation counters: how many logical queues have
// already claimed a distinct offset within each family.
type familyProperties struct {
	props     []vk.QueueFamilyProperties
	allocated []uint32
}

func queryFamilyProperties(gpu vk.PhysicalDevice) *familyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return &familyProperties{props: props, allocated: make([]uint32, count)}
}

// selectQueueFamily finds a family satisfying flags (and, when surface
// is non-null, present support), preferring one not yet claimed by any
// other requested logical queue so load spreads across families where
// possible, falling back to a shared family otherwise.
func (fp *familyProperties) selectQueueFamily(gpu vk.PhysicalDevice, flags vk.QueueFlagBits, surface vk.Surface) (uint32, bool) {
	needPresent := surface != vk.NullSurface

	trySelect := func(preferUnused bool) (uint32, bool) {
		for i := range fp.props {
			if preferUnused && fp.allocated[i] > 0 {
				continue
			}
			if flags != 0 && vk.QueueFlagBits(fp.props[i].QueueFlags)&flags != flags {
				continue
			}
			if needPresent {
				var supported vk.Bool32
				vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), surface, &supported)
				if !supported.B() {
					continue
				}
			}
			return uint32(i), true
		}
		return 0, false
	}

	if idx, ok := trySelect(true); ok {
		return idx, true
	}
	return trySelect(false)
}

func surfaceFor(kind QueueKind, surface vk.Surface) vk.Surface {
	if kind == QueuePresent {
		return surface
	}
	return vk.NullSurface
}

// bindQueues resolves requested QueueKinds to concrete (family,
// offset) bindings. Every Vulkan queue family that supports graphics
// or compute implicitly supports transfer, so requesting QueueTransfer
// alongside the others and letting it share whatever family satisfies
// them is sufficient to honor "queue 0 always supports transfer"
// without a dedicated transfer-only search.
func bindQueues(fp *familyProperties, gpu vk.PhysicalDevice, surface vk.Surface, kinds []QueueKind) ([]queueBinding, error) {
	bindings := make([]queueBinding, 0, len(kinds))
	for _, kind := range kinds {
		family, ok := fp.selectQueueFamily(gpu, kind.requiredFlags(), surfaceFor(kind, surface))
		if !ok {
			return nil, newErr(KindInitFailure, "no queue family satisfies %s", kind)
		}
		offset := fp.allocated[family]
		if offset >= fp.props[family].QueueCount {
			offset = fp.props[family].QueueCount - 1
		}
		fp.allocated[family]++
		bindings = append(bindings, queueBinding{family: family, offset: offset, kind: kind})
	}
	return bindings, nil
}

// deviceQueueCreateInfos builds one vk.DeviceQueueCreateInfo per
// distinct family referenced by bindings, sized to the highest offset
// requested from it.
func deviceQueueCreateInfos(bindings []queueBinding) []vk.DeviceQueueCreateInfo {
	counts := map[uint32]uint32{}
	for _, b := range bindings {
		if c := b.offset + 1; c > counts[b.family] {
			counts[b.family] = c
		}
	}
	infos := make([]vk.DeviceQueueCreateInfo, 0, len(counts))
	for family, count := range counts {
		priorities := make([]float32, count)
		for i := range priorities {
			priorities[i] = 1.0
		}
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       count,
			PQueuePriorities: priorities,
		})
	}
	return infos
}
