package vzgpu

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu/wsi"
)

// DeviceRequest describes the queues and surface a Device should open
// (spec §4.3). Queues lists the logical queues wanted, in the order
// they become Device.Queue(0), Queue(1), ... Surface, if non-nil,
// causes a present-capable queue to be required and a vk.Surface to be
// created from the backend before logical-device creation (so present
// support can be queried per queue family).
type DeviceRequest struct {
	Queues          []QueueKind
	Surface         wsi.Backend
	DeviceExtensions []string
	MaxDescriptorSets uint32
}

// Device owns a physical+logical Vulkan device pair, its bound logical
// queues, one command pool per distinct queue family in use, and a
// descriptor pool. Grounded on the teacher's device.go CoreDevice +
// queue.go CoreQueue + pools.go CorePool, consolidated into a single
// owning type to break the Context/Platform/Queue cyclic references
// the teacher's split produced (spec §9).
type Device struct {
	app      *App
	gpu      vk.PhysicalDevice
	handle   vk.Device
	props    vk.PhysicalDeviceProperties
	memProps vk.PhysicalDeviceMemoryProperties

	queues  []queueBinding
	pools   map[uint32]*commandPool
	descPool vk.DescriptorPool

	surface vk.Surface
}

// OpenDevice enumerates physical devices, picks the first that
// satisfies req (deterministic, preferring a discrete GPU), opens a
// logical device with the requested queues, and creates one command
// pool per distinct family used by those queues plus a descriptor pool.
func (a *App) OpenDevice(req DeviceRequest) (dev *Device, err error) {
	defer recoverErr(&err)

	gpus, err := enumeratePhysicalDevices(a.instance)
	orPanic(err)
	if len(gpus) == 0 {
		orPanic(newErr(KindInitFailure, "no physical devices found"))
	}

	var surface vk.Surface
	if req.Surface != nil {
		surface, err = req.Surface.CreateSurface(a.instance)
		orPanic(err)
	}

	gpu, fp, err := pickPhysicalDevice(gpus, surface, req.Queues)
	orPanic(err)

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memProps)
	memProps.Deref()

	if a.level <= logInfo {
		a.infoLog.Printf("selected physical device: %s", vk.ToString(props.DeviceName[:]))
	}

	bindings, err := bindQueues(fp, gpu, surface, req.Queues)
	orPanic(err)

	wantExt := req.DeviceExtensions
	if len(wantExt) == 0 {
		wantExt = defaultDeviceExtensions
	}
	if req.Surface != nil {
		wantExt = appendUnique(wantExt, "VK_KHR_swapchain")
	}
	availExt, err := deviceExtensions(gpu)
	orPanic(err)
	if missing := checkExisting(availExt, wantExt); len(missing) > 0 {
		orPanic(newErr(KindInitFailure, "missing required device extensions: %v", missing))
	}

	queueInfos := deviceQueueCreateInfos(bindings)
	var handle vk.Device
	ret := vk.CreateDevice(gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(wantExt)),
		PpEnabledExtensionNames: safeStrings(wantExt),
	}, nil, &handle)
	orPanic(newVkError(ret))

	for i := range bindings {
		var q vk.Queue
		vk.GetDeviceQueue(handle, bindings[i].family, bindings[i].offset, &q)
		bindings[i].handle = q
	}

	maxSets := req.MaxDescriptorSets
	if maxSets == 0 {
		maxSets = 64
	}
	descPool, err := newDescriptorPool(handle, maxSets)
	orPanic(err)

	dev = &Device{
		app:      a,
		gpu:      gpu,
		handle:   handle,
		props:    props,
		memProps: memProps,
		queues:   bindings,
		pools:    map[uint32]*commandPool{},
		descPool: descPool,
		surface:  surface,
	}

	families := map[uint32]bool{}
	for _, b := range bindings {
		families[b.family] = true
	}
	for family := range families {
		pool, perr := newCommandPool(handle, family)
		orPanic(perr)
		dev.pools[family] = pool
	}

	return dev, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func enumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(instance, &count, nil)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, gpus)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return gpus, nil
}

// pickPhysicalDevice returns the first physical device that can
// satisfy every requested queue kind (and present, if surface is set),
// preferring a discrete GPU over other types.
func pickPhysicalDevice(gpus []vk.PhysicalDevice, surface vk.Surface, kinds []QueueKind) (vk.PhysicalDevice, *familyProperties, error) {
	var fallback vk.PhysicalDevice
	var fallbackFP *familyProperties
	haveFallback := false

	for _, gpu := range gpus {
		fp := queryFamilyProperties(gpu)
		if _, err := bindQueues(fp, gpu, surface, kinds); err != nil {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			return gpu, queryFamilyProperties(gpu), nil
		}
		if !haveFallback {
			fallback, fallbackFP, haveFallback = gpu, fp, true
		}
	}
	if haveFallback {
		return fallback, fallbackFP, nil
	}
	return nil, nil, fmt.Errorf("vzgpu: no physical device satisfies requested queues")
}

// Queue returns the i'th requested logical queue's handle.
func (d *Device) Queue(i int) vk.Queue { return d.queues[i].handle }

// QueueFamily returns the i'th requested logical queue's family index.
func (d *Device) QueueFamily(i int) uint32 { return d.queues[i].family }

func (d *Device) Handle() vk.Device                 { return d.handle }
func (d *Device) PhysicalDevice() vk.PhysicalDevice { return d.gpu }
func (d *Device) Surface() vk.Surface               { return d.surface }
func (d *Device) DescriptorPool() vk.DescriptorPool { return d.descPool }
func (d *Device) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return d.memProps
}
func (d *Device) Properties() vk.PhysicalDeviceProperties { return d.props }

// CommandPool returns the command pool servicing family, creating one
// on demand if this Device hadn't bound any queue from it yet.
func (d *Device) CommandPool(family uint32) (*commandPool, error) {
	if pool, ok := d.pools[family]; ok {
		return pool, nil
	}
	pool, err := newCommandPool(d.handle, family)
	if err != nil {
		return nil, err
	}
	d.pools[family] = pool
	return pool, nil
}

// AllocCommandBuffers allocates count primary command buffers from the
// pool servicing family, for callers outside this package (e.g. the
// transfer engine) that cannot name the unexported commandPool type.
func (d *Device) AllocCommandBuffers(family uint32, count int) ([]vk.CommandBuffer, error) {
	pool, err := d.CommandPool(family)
	if err != nil {
		return nil, err
	}
	return pool.allocCommandBuffers(d.handle, count)
}

// AllocTransientCommandBuffer allocates and begins a one-time-submit
// command buffer from the pool servicing family.
func (d *Device) AllocTransientCommandBuffer(family uint32) (vk.CommandBuffer, error) {
	pool, err := d.CommandPool(family)
	if err != nil {
		return nil, err
	}
	return pool.allocTransientCommandBuffer(d.handle)
}

// FreeCommandBuffers returns bufs to the pool servicing family.
func (d *Device) FreeCommandBuffers(family uint32, bufs []vk.CommandBuffer) {
	pool, err := d.CommandPool(family)
	if err != nil {
		return
	}
	pool.freeCommandBuffers(d.handle, bufs)
}

func (d *Device) WaitIdle() error {
	ret := vk.DeviceWaitIdle(d.handle)
	if isVkError(ret) {
		return newVkError(ret)
	}
	return nil
}

func (d *Device) WaitQueueIdle(i int) error {
	ret := vk.QueueWaitIdle(d.queues[i].handle)
	if isVkError(ret) {
		return newVkError(ret)
	}
	return nil
}

// Destroy releases the descriptor pool, all command pools, the
// logical device, and the surface (if owned).
func (d *Device) Destroy() {
	vk.DeviceWaitIdle(d.handle)
	vk.DestroyDescriptorPool(d.handle, d.descPool, nil)
	for _, pool := range d.pools {
		pool.destroy(d.handle)
	}
	if d.handle != nil {
		vk.DestroyDevice(d.handle, nil)
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.app.instance, d.surface, nil)
	}
}
