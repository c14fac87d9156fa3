package wsi

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// GLFWBackend is the reference Backend implementation, grounded on the
// teacher's display.go (CoreDisplay) and test/render_test.go window
// setup. Exactly one GLFWBackend may exist per process: GLFW itself is
// process-global, so Init/Terminate are managed by NewGLFWBackend and
// Destroy.
type GLFWBackend struct {
	window   *glfw.Window
	resizeFn func(width, height int)
}

// NewGLFWBackend initializes GLFW (if not already) and opens a window
// of the given size and title. Call Destroy to tear both down.
func NewGLFWBackend(width, height int, title string) (*GLFWBackend, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("wsi: glfw init: %w", err)
	}
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("wsi: create window: %w", err)
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("wsi: vk init: %w", err)
	}

	b := &GLFWBackend{window: window}
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		if b.resizeFn != nil {
			b.resizeFn(w, h)
		}
	})
	return b, nil
}

func (b *GLFWBackend) RequiredInstanceExtensions() []string {
	return b.window.GetRequiredInstanceExtensions()
}

func (b *GLFWBackend) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surf, err := b.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("wsi: create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(surf), nil
}

func (b *GLFWBackend) Size() (int, int) { return b.window.GetFramebufferSize() }

func (b *GLFWBackend) ShouldClose() bool { return b.window.ShouldClose() }

func (b *GLFWBackend) PollEvents() { glfw.PollEvents() }

func (b *GLFWBackend) OnResize(fn func(width, height int)) { b.resizeFn = fn }

func (b *GLFWBackend) Destroy() {
	b.window.Destroy()
	glfw.Terminate()
}
