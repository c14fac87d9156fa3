package vzgpu

import vk "github.com/vulkan-go/vulkan"

// FenceManager keeps track of fences used to know when GPU work has
// completed. Not thread-safe; transfer.Engine uses one for its
// transient submissions. Grounded on the teacher's managers.go FenceManager.
type FenceManager struct {
	device vk.Device
	fences []vk.Fence
	count  uint32
}

func NewFenceManager(device vk.Device) *FenceManager {
	return &FenceManager{device: device}
}

// Reset waits for every outstanding fence to signal, then resets them
// all and rewinds the allocation cursor to zero so NewFence recycles
// them on the next frame.
func (f *FenceManager) Reset() error {
	if f.count > 0 {
		vk.WaitForFences(f.device, f.count, f.fences, vk.True, vk.MaxUint64)
		ret := vk.ResetFences(f.device, f.count, f.fences)
		if isVkError(ret) {
			return newVkError(ret)
		}
	}
	f.count = 0
	return nil
}

// NewFence returns a recycled fence if one is free, else creates one.
func (f *FenceManager) NewFence() (vk.Fence, error) {
	if f.count < uint32(len(f.fences)) {
		fence := f.fences[f.count]
		f.count++
		return fence, nil
	}
	var fence vk.Fence
	ret := vk.CreateFence(f.device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &fence)
	if isVkError(ret) {
		return vk.NullFence, newVkError(ret)
	}
	f.fences = append(f.fences, fence)
	f.count++
	return fence, nil
}

func (f *FenceManager) ActiveFences() []vk.Fence { return f.fences[:f.count] }

func (f *FenceManager) Destroy() {
	f.Reset()
	for _, fence := range f.fences {
		vk.DestroyFence(f.device, fence, nil)
	}
	f.fences = nil
}

// newSignaledFences creates n fences in the signaled state, per spec
// §3 "Fence / Semaphore sets": fences are created signaled.
func newSignaledFences(device vk.Device, n int) ([]vk.Fence, error) {
	fences := make([]vk.Fence, n)
	for i := range fences {
		ret := vk.CreateFence(device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fences[i])
		if isVkError(ret) {
			for _, f := range fences[:i] {
				vk.DestroyFence(device, f, nil)
			}
			return nil, newVkError(ret)
		}
	}
	return fences, nil
}

// newBinarySemaphores creates n binary semaphores.
func newBinarySemaphores(device vk.Device, n int) ([]vk.Semaphore, error) {
	sems := make([]vk.Semaphore, n)
	for i := range sems {
		ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sems[i])
		if isVkError(ret) {
			for _, s := range sems[:i] {
				vk.DestroySemaphore(device, s, nil)
			}
			return nil, newVkError(ret)
		}
	}
	return sems, nil
}

func destroyFences(device vk.Device, fences []vk.Fence) {
	for _, f := range fences {
		if f != vk.NullFence {
			vk.DestroyFence(device, f, nil)
		}
	}
}

func destroySemaphores(device vk.Device, sems []vk.Semaphore) {
	for _, s := range sems {
		if s != vk.NullSemaphore {
			vk.DestroySemaphore(device, s, nil)
		}
	}
}
