package vzgpu

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu/deque"
)

// Tex pairs an Image with a Sampler and exposes the dimensions shaders
// need for a combined-image-sampler binding (spec §3 "Tex"). Grounded
// on the teacher's context.go Texture (image+sampler+view+dims fields)
// generalized beyond its single hardcoded staging-texture use.
type Tex struct {
	image   *Image
	sampler *Sampler
	width, height uint32
}

func NewTex(image *Image, sampler *Sampler) *Tex {
	ext := image.Extent()
	return &Tex{image: image, sampler: sampler, width: ext.Width, height: ext.Height}
}

func (t *Tex) ObjStatus() deque.Status { return t.image.ObjStatus() }

func (t *Tex) Image() *Image     { return t.image }
func (t *Tex) Sampler() *Sampler { return t.sampler }
func (t *Tex) Width() uint32     { return t.width }
func (t *Tex) Height() uint32    { return t.height }

func (t *Tex) Destroy() {
	t.image.Destroy()
	t.sampler.Destroy()
}
