// Package wsi defines the window-system capability trait the GPU
// substrate needs to create a presentable surface and pump window
// events, plus a GLFW-backed implementation of it.
//
// This breaks the backend-glue-via-function-pointer-table pattern
// (teacher's platform.go embeds GLFW calls directly in Application
// methods) into an injectable interface, so vzgpu.App never imports a
// windowing library itself.
package wsi

import vk "github.com/vulkan-go/vulkan"

// Backend is the capability trait a window-system integration must
// provide. It is the Go equivalent of a function-pointer table:
// create_surface, poll_events, get_size, should_close, destroy_window.
type Backend interface {
	// RequiredInstanceExtensions returns the instance extensions the
	// backend needs enabled to be able to create a surface later.
	RequiredInstanceExtensions() []string

	// CreateSurface creates a vk.Surface bound to this backend's window
	// against the given, already-created instance.
	CreateSurface(instance vk.Instance) (vk.Surface, error)

	// Size returns the current framebuffer size in pixels.
	Size() (width, height int)

	// ShouldClose reports whether the user requested the window close.
	ShouldClose() bool

	// PollEvents pumps the backend's event queue once.
	PollEvents()

	// Destroy releases backend-owned resources (the window itself).
	// It does not touch anything Vulkan owns.
	Destroy()
}

// ResizeListener is implemented by backends that can notify callers of
// a framebuffer resize, used to drive swapchain recreate (C9).
type ResizeListener interface {
	OnResize(fn func(width, height int))
}
