package vzgpu

import lin "github.com/xlab/linmath"

// VulkanProjectionMat converts an OpenGL-style projection matrix to
// Vulkan's clip space: Vulkan has a top-left origin and a [0, 1] depth
// range instead of [-1, 1].
//
// linmath produces GL-style projections, so this applies the standard
// fixup (flip Y, rescale+translate Z) before combining with proj.
func VulkanProjectionMat(m *lin.Mat4x4, proj *lin.Mat4x4) {
	m.Fill(1.0)
	m.ScaleAniso(m, 1.0, -1.0, 1.0)
	m.ScaleAniso(m, 1.0, 1.0, 0.5)
	m.Translate(0.0, 0.0, 1.0)
	m.Mult(m, proj)
}
