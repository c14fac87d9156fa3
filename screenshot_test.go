package vzgpu

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestIsBGRAFormat(t *testing.T) {
	cases := map[vk.Format]bool{
		vk.FormatB8g8r8a8Unorm: true,
		vk.FormatB8g8r8a8Srgb:  true,
		vk.FormatR8g8b8a8Unorm: false,
		vk.FormatR8g8b8a8Srgb:  false,
		vk.FormatUndefined:     false,
	}
	for format, want := range cases {
		if got := isBGRAFormat(format); got != want {
			t.Errorf("isBGRAFormat(%v) = %v, want %v", format, got, want)
		}
	}
}
