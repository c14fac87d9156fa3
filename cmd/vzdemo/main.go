// Command vzdemo renders the triangle scenario of spec §8 scenario 1:
// a single Canvas showing one static triangle, one vertex buffer
// dup-uploaded once into each swapchain image's region through a
// transfer.Engine, one dynamic-UBO-bound graphics
// pipeline, optionally running headless with a screenshot dump.
//
// Grounded on the teacher's cmd/demo/main.go render_test.go setup
// sequence (instance -> device -> swapchain -> pipeline -> render
// loop), restructured around vzgpu's App/Device/Canvas/transfer.Engine.
package main

import (
	"flag"
	"log"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"

	"github.com/vkscene/vzgpu"
	"github.com/vkscene/vzgpu/transfer"
	"github.com/vkscene/vzgpu/wsi"
)

var triangleVerts = []float32{
	// x, y, r, g, b
	0.0, -0.5, 1, 0, 0,
	0.5, 0.5, 0, 1, 0,
	-0.5, 0.5, 0, 0, 1,
}

type uboData struct {
	MVP [16]float32
}

func main() {
	var (
		frames     = flag.Int("frames", 0, "run exactly N frames headless then exit (0 = interactive)")
		screenshot = flag.String("screenshot", "", "write a PNG screenshot of swapchain image 0 after the last frame to this path (autorun only)")
	)
	flag.Parse()

	if err := run(*frames, *screenshot); err != nil {
		log.Fatalf("vzdemo: %v", err)
	}
}

func run(frameCount int, screenshotPath string) error {
	backend, err := wsi.NewGLFWBackend(800, 600, "vzgpu triangle")
	if err != nil {
		return err
	}
	defer backend.Destroy()

	app, err := vzgpu.NewApp(vzgpu.AppConfig{Name: "vzdemo", Validation: true, Backend: backend})
	if err != nil {
		return err
	}
	defer app.Destroy()

	dev, err := app.OpenDevice(vzgpu.DeviceRequest{
		Queues:  []vzgpu.QueueKind{vzgpu.QueueRender},
		Surface: backend,
	})
	if err != nil {
		return err
	}
	defer dev.Destroy()

	arena, err := vzgpu.NewArena(dev)
	if err != nil {
		return err
	}
	defer arena.Destroy()

	vs, err := vzgpu.LoadShaderFile(dev.Handle(), "shaders/triangle.vert.spv", vzgpu.StageVertex)
	if err != nil {
		return err
	}
	defer vs.Destroy()
	fs, err := vzgpu.LoadShaderFile(dev.Handle(), "shaders/triangle.frag.spv", vzgpu.StageFragment)
	if err != nil {
		return err
	}
	defer fs.Destroy()
	program := &vzgpu.ShaderProgram{Stages: []*vzgpu.Shader{vs, fs}}

	slots, err := vzgpu.NewDescriptorSlotSet(dev.Handle(), dev.Properties().Limits.MinUniformBufferOffsetAlignment, []vzgpu.Slot{
		{Binding: 0, Kind: vzgpu.SlotUniformDynamic, Stages: vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), ItemSize: vk.DeviceSize(unsafe.Sizeof(uboData{}))},
	})
	if err != nil {
		return err
	}
	defer slots.Destroy()

	const imageCount = 3
	bindings, err := slots.NewBindings(dev.DescriptorPool(), imageCount)
	if err != nil {
		return err
	}

	ubo, err := arena.Alloc(vzgpu.BufferUniformMappable, imageCount, vk.DeviceSize(unsafe.Sizeof(uboData{})), vzgpu.DatOptions{})
	if err != nil {
		return err
	}
	bindings.SetBuffer(0, ubo, vk.DeviceSize(unsafe.Sizeof(uboData{})))
	bindings.Update()

	vertexBuf, err := arena.Alloc(vzgpu.BufferVertex, imageCount, vk.DeviceSize(len(triangleVerts)*4), vzgpu.DatOptions{})
	if err != nil {
		return err
	}

	xferEngine := transfer.NewEngine(dev, arena, 0, 0)
	xferEngine.RunBackground()
	defer xferEngine.Stop()

	vertsBytes := float32SliceToBytes(triangleVerts)
	xferEngine.RegisterDup(vertexBuf, imageCount, false, func(imgIdx int) []byte {
		return vertsBytes
	})

	var pipeline *vzgpu.GraphicsPipeline
	var canvas *vzgpu.Canvas
	// handleRefillWrap has already begun the render pass on cmd before
	// calling this and ends it afterward; refill only binds and draws.
	var refill vzgpu.RefillFunc = func(cmd vk.CommandBuffer, imgIdx int) {
		rec := vzgpu.NewRecorder(cmd)
		rec.Viewport(canvas.Extent())
		rec.BindVertexBuffer(vertexBuf.Regions(), imgIdx, 0)
		// Image selection happens via the per-image descriptor set
		// (imgIdx); this demo draws one object per frame, so the
		// dynamic-UBO sub-index is always 0.
		rec.BindGraphics(pipeline, bindings, imgIdx, 0)
		rec.Draw(0, 3)
	}

	canvas, err = vzgpu.NewCanvas(dev, backend, 0, refill)
	if err != nil {
		return err
	}
	defer canvas.Destroy()
	canvas.DupApply = xferEngine.ApplyDup

	pipeline, err = vzgpu.NewGraphicsPipeline(dev.Handle(), vzgpu.GraphicsPipelineOptions{
		Program:  program,
		Bindings: []vzgpu.VertexBinding{{Binding: 0, Stride: 5 * 4}},
		Attributes: []vzgpu.VertexAttribute{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 2 * 4},
		},
		Topology:       vk.PrimitiveTopologyTriangleList,
		CullMode:       vk.CullModeFlagBits(vk.CullModeNone),
		FrontFace:      vk.FrontFaceCounterClockwise,
		SetLayouts: []vk.DescriptorSetLayout{slots.Layout()},
		RenderPass: canvas.RenderPass(),
	})
	if err != nil {
		return err
	}
	defer pipeline.Destroy()

	var proj, mvp lin.Mat4x4
	vzgpu.VulkanProjectionMat(&mvp, &proj)
	for i := 0; i < imageCount; i++ {
		if err := ubo.Upload(i, mat4x4Bytes(&mvp)); err != nil {
			return err
		}
	}

	if frameCount > 0 {
		canvas.SetAutorun(vzgpu.AutorunConfig{FrameCount: frameCount, ScreenshotPath: screenshotPath})
		return canvas.RunAutorun()
	}

	for canvas.Running() {
		xferEngine.DrainCopy()
		xferEngine.DrainEvents()
		if err := canvas.RunFrame(); err != nil {
			return err
		}
	}
	return nil
}

func float32SliceToBytes(v []float32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func mat4x4Bytes(m *lin.Mat4x4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m)), int(unsafe.Sizeof(*m)))
}
