package vzgpu

import vk "github.com/vulkan-go/vulkan"

// MaxFramesInFlight bounds the per-frame semaphore sets a Canvas keeps,
// matching spec §4.9's cur_frame modulus.
const MaxFramesInFlight = 2

// canvasSync holds the per-image and per-frame synchronization objects
// spec §3 attaches to a Canvas: fences_in_flight indexed by swapchain
// image, sem_img_available/sem_render_finished indexed by cur_frame.
// Grounded on the teacher's instance.go PerFrame (command+fence+
// image_acquired+queue_complete), split here into its image-indexed and
// frame-indexed halves per spec's exact indexing rule.
type canvasSync struct {
	device vk.Device

	fencesInFlight []vk.Fence // len == image count; nil entries mean "not yet submitted"

	semImageAvailable []vk.Semaphore // len == MaxFramesInFlight
	semRenderFinished []vk.Semaphore // len == MaxFramesInFlight
	frameFences       []vk.Fence     // len == MaxFramesInFlight, always signaled-or-waited
}

func newCanvasSync(device vk.Device, imageCount int) (*canvasSync, error) {
	semImg, err := newBinarySemaphores(device, MaxFramesInFlight)
	if err != nil {
		return nil, err
	}
	semRender, err := newBinarySemaphores(device, MaxFramesInFlight)
	if err != nil {
		destroySemaphores(device, semImg)
		return nil, err
	}
	frameFences, err := newSignaledFences(device, MaxFramesInFlight)
	if err != nil {
		destroySemaphores(device, semImg)
		destroySemaphores(device, semRender)
		return nil, err
	}
	return &canvasSync{
		device:            device,
		fencesInFlight:    make([]vk.Fence, imageCount),
		semImageAvailable: semImg,
		semRenderFinished: semRender,
		frameFences:       frameFences,
	}, nil
}

func (s *canvasSync) resizeImages(imageCount int) {
	s.fencesInFlight = make([]vk.Fence, imageCount)
}

func (s *canvasSync) destroy() {
	destroySemaphores(s.device, s.semImageAvailable)
	destroySemaphores(s.device, s.semRenderFinished)
	destroyFences(s.device, s.frameFences)
}
