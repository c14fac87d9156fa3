package vzgpu

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestNextPow2(t *testing.T) {
	cases := []struct {
		in   vk.DeviceSize
		want vk.DeviceSize
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{1023, 1024},
		{1024, 1024},
		{1025, 2048},
	}
	for _, c := range cases {
		if got := nextPow2(c.in); got != c.want {
			t.Errorf("nextPow2(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		v, alignment, want vk.DeviceSize
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{100, 1, 100},
		{100, 0, 100},
	}
	for _, c := range cases {
		if got := alignUp(c.v, c.alignment); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.v, c.alignment, got, c.want)
		}
	}
}

func TestNextPow2NeverBelowInput(t *testing.T) {
	for v := vk.DeviceSize(0); v < 2000; v++ {
		if got := nextPow2(v); got < v {
			t.Fatalf("nextPow2(%d) = %d is below input", v, got)
		}
	}
}
