// Package transfer implements the asynchronous buffer/image transfer
// engine of spec §4.6, built atop vzgpu/deque the same way vzgpu.Canvas
// builds its render loop atop it: named queues grouped into procs, with
// typed callbacks performing the actual Vulkan work.
package transfer

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu"
	"github.com/vkscene/vzgpu/deque"
)

const (
	queueUL deque.QueueID = iota
	queueDL
	queueCOPY
	queueEV
	queueDUP
)

const (
	typeBufferUploadStaged deque.TypeID = iota
	typeBufferUploadDirect
	typeBufferDownloadDirect
	typeBufferCopy
	typeBufferDownloadCopy
	typeBufferDownload
	typeDownloadDone
	typeImageUpload
	typeImageDownloadCopy
	typeImageDownload
	typeImageCopy
	typeStop
)

// maxDups bounds the dup table (spec §4.6 "dup table is a
// fixed-capacity array"), mirroring the preallocated-slice convention
// the rest of this hot-path engine uses instead of dynamic growth.
const maxDups = 64

// Engine owns the UL/DL/COPY/EV/DUP queues and their servicing procs
// (UD = {UL,DL} on a background thread; CPY = {COPY}; EV = {EV}; DUP =
// {DUP}), grounded on spec §4.6's table. It holds a vzgpu.Arena to
// allocate the staging regions upload/download chains need.
type Engine struct {
	dev   *vzgpu.Device
	arena *vzgpu.Arena
	deq   *deque.Deq

	ud  *deque.Proc
	cpy *deque.Proc
	ev  *deque.Proc

	transferQueueIdx int
	renderQueueIdx   int

	fm *vzgpu.FenceManager

	mu   sync.Mutex
	dups [maxDups]*dupEntry
}

// NewEngine creates the engine's queues and procs and wires every
// handler named in spec §4.6. transferQueueIdx/renderQueueIdx index
// into the Device's logical queue list (vzgpu.DeviceRequest.Queues).
func NewEngine(dev *vzgpu.Device, arena *vzgpu.Arena, transferQueueIdx, renderQueueIdx int) *Engine {
	e := &Engine{
		dev:              dev,
		arena:            arena,
		deq:              deque.NewDeq(5, 16),
		transferQueueIdx: transferQueueIdx,
		renderQueueIdx:   renderQueueIdx,
		fm:               vzgpu.NewFenceManager(dev.Handle()),
	}
	e.ud = e.deq.AddProc(queueUL, queueDL)
	e.cpy = e.deq.AddProc(queueCOPY)
	e.ev = e.deq.AddProc(queueEV)
	_ = e.deq.AddProc(queueDUP) // reserved for future dup-queue notifications; ApplyDup drives dups directly

	e.wireHandlers()
	return e
}

type bufferJob struct {
	dat     *vzgpu.Dat
	region  int
	data    []byte
	staging *vzgpu.Dat
	n       int
	onDone  func([]byte)
}

func (e *Engine) wireHandlers() {
	e.deq.OnDequeue(queueUL, typeBufferUploadStaged, func(item deque.Item) {
		job := item.Value.(*bufferJob)
		job.staging.Upload(0, job.data)
		e.deq.Enqueue(queueCOPY, typeBufferCopy, job)
	})
	e.deq.OnDequeue(queueCOPY, typeBufferUploadDirect, func(item deque.Item) {
		job := item.Value.(*bufferJob)
		job.dat.Upload(job.region, job.data)
	})
	e.deq.OnDequeue(queueCOPY, typeBufferDownloadDirect, func(item deque.Item) {
		job := item.Value.(*bufferJob)
		data, err := job.dat.Download(job.region, job.n)
		if err != nil {
			return
		}
		e.deq.Enqueue(queueEV, typeDownloadDone, &downloadResult{data: data, onDone: job.onDone})
	})
	e.deq.OnDequeue(queueCOPY, typeBufferCopy, func(item deque.Item) {
		job := item.Value.(*bufferJob)
		e.submitBufferCopy(job.staging, 0, job.dat, job.region, vk.DeviceSize(len(job.data)))
		job.staging.Destroy()
	})
	e.deq.OnDequeue(queueCOPY, typeBufferDownloadCopy, func(item deque.Item) {
		job := item.Value.(*bufferJob)
		e.submitBufferCopy(job.dat, job.region, job.staging, 0, vk.DeviceSize(job.n))
		e.deq.Enqueue(queueDL, typeBufferDownload, job)
	})
	e.deq.OnDequeue(queueDL, typeBufferDownload, func(item deque.Item) {
		job := item.Value.(*bufferJob)
		data, err := job.staging.Download(0, job.n)
		job.staging.Destroy()
		if err != nil {
			return
		}
		e.deq.Enqueue(queueEV, typeDownloadDone, &downloadResult{data: data, onDone: job.onDone})
	})
	e.deq.OnDequeue(queueEV, typeDownloadDone, func(item deque.Item) {
		res := item.Value.(*downloadResult)
		if res.onDone != nil {
			res.onDone(res.data)
		}
	})

	e.deq.OnDequeue(queueCOPY, typeImageUpload, func(item deque.Item) {
		job := item.Value.(*imageJob)
		e.submitImageUpload(job.img, job.staging)
		job.staging.Destroy()
	})
	e.deq.OnDequeue(queueCOPY, typeImageDownloadCopy, func(item deque.Item) {
		job := item.Value.(*imageJob)
		e.submitImageDownloadCopy(job.img, job.staging)
		e.deq.Enqueue(queueDL, typeImageDownload, job)
	})
	e.deq.OnDequeue(queueDL, typeImageDownload, func(item deque.Item) {
		job := item.Value.(*imageJob)
		data, err := job.staging.Download(0, job.n)
		job.staging.Destroy()
		if err != nil {
			return
		}
		e.deq.Enqueue(queueEV, typeDownloadDone, &downloadResult{data: data, onDone: job.onDone})
	})
	e.deq.OnDequeue(queueCOPY, typeImageCopy, func(item deque.Item) {
		job := item.Value.(*imageCopyJob)
		e.submitImageCopy(job.src, job.dst)
	})
}

type downloadResult struct {
	data   []byte
	onDone func([]byte)
}

type imageJob struct {
	img     *vzgpu.Image
	staging *vzgpu.Dat
	n       int
	onDone  func([]byte)
}

type imageCopyJob struct {
	src, dst *vzgpu.Image
}

// UploadBuffer implements spec §4.6's buffer upload algorithm: a
// mappable target is written directly on COPY; otherwise the upload is
// staged through UL then copied on COPY.
func (e *Engine) UploadBuffer(dat *vzgpu.Dat, region int, data []byte) error {
	if dat.Mappable() {
		e.deq.Enqueue(queueCOPY, typeBufferUploadDirect, &bufferJob{dat: dat, region: region, data: data})
		return nil
	}
	stg, err := e.arena.Alloc(vzgpu.BufferStaging, 1, vk.DeviceSize(len(data)), vzgpu.DatOptions{})
	if err != nil {
		return vzgpu.ErrUnsupported
	}
	e.deq.Enqueue(queueUL, typeBufferUploadStaged, &bufferJob{dat: dat, region: region, data: data, staging: stg})
	return nil
}

// DownloadBuffer implements the mirror algorithm: a mappable source is
// read on COPY (symmetric with UploadBuffer's direct-mappable path,
// both running off the caller's goroutine through the same proc rather
// than one staying synchronous and the other not); otherwise the
// download is staged through COPY then DL. Either way onDone fires from
// the EV proc once the data is ready.
func (e *Engine) DownloadBuffer(dat *vzgpu.Dat, region int, n int, onDone func([]byte)) error {
	if dat.Mappable() {
		e.deq.Enqueue(queueCOPY, typeBufferDownloadDirect, &bufferJob{dat: dat, region: region, n: n, onDone: onDone})
		return nil
	}
	stg, err := e.arena.Alloc(vzgpu.BufferStaging, 1, vk.DeviceSize(n), vzgpu.DatOptions{})
	if err != nil {
		return vzgpu.ErrUnsupported
	}
	e.deq.Enqueue(queueCOPY, typeBufferDownloadCopy, &bufferJob{dat: dat, region: region, staging: stg, n: n, onDone: onDone})
	return nil
}

// UploadImage always stages through a temporary buffer, per spec §4.6
// ("Image upload: always via staging").
func (e *Engine) UploadImage(img *vzgpu.Image, data []byte) error {
	stg, err := e.arena.Alloc(vzgpu.BufferStaging, 1, vk.DeviceSize(len(data)), vzgpu.DatOptions{})
	if err != nil {
		return vzgpu.ErrUnsupported
	}
	stg.Upload(0, data)
	e.deq.Enqueue(queueCOPY, typeImageUpload, &imageJob{img: img, staging: stg})
	return nil
}

// DownloadImage is the mirror of UploadImage.
func (e *Engine) DownloadImage(img *vzgpu.Image, byteSize int, onDone func([]byte)) error {
	stg, err := e.arena.Alloc(vzgpu.BufferStaging, 1, vk.DeviceSize(byteSize), vzgpu.DatOptions{})
	if err != nil {
		return vzgpu.ErrUnsupported
	}
	e.deq.Enqueue(queueCOPY, typeImageDownloadCopy, &imageJob{img: img, staging: stg, n: byteSize, onDone: onDone})
	return nil
}

// CopyImage submits a single two-barrier, one-copy, two-transition-back
// command buffer moving src's contents into dst.
func (e *Engine) CopyImage(src, dst *vzgpu.Image) {
	e.deq.Enqueue(queueCOPY, typeImageCopy, &imageCopyJob{src: src, dst: dst})
}

func (e *Engine) submitBufferCopy(src *vzgpu.Dat, srcRegion int, dst *vzgpu.Dat, dstRegion int, size vk.DeviceSize) {
	e.dev.WaitQueueIdle(e.renderQueueIdx)
	family := e.dev.QueueFamily(e.transferQueueIdx)
	cmd, err := e.dev.AllocTransientCommandBuffer(family)
	if err != nil {
		return
	}
	defer e.dev.FreeCommandBuffers(family, []vk.CommandBuffer{cmd})

	rec := vzgpu.NewRecorder(cmd)
	if rec.Begin() != nil {
		return
	}
	rec.CopyBuffer(src.BufferHandle(), dst.BufferHandle(), src.Regions().Offset(srcRegion), dst.Regions().Offset(dstRegion), size)
	if rec.End() != nil {
		return
	}
	e.submitAndWaitTransfer(cmd)
}

func (e *Engine) submitImageUpload(img *vzgpu.Image, stg *vzgpu.Dat) {
	family := e.dev.QueueFamily(e.transferQueueIdx)
	cmd, err := e.dev.AllocTransientCommandBuffer(family)
	if err != nil {
		return
	}
	defer e.dev.FreeCommandBuffers(family, []vk.CommandBuffer{cmd})

	final := img.Layout()
	if final == vk.ImageLayoutUndefined {
		final = vk.ImageLayoutShaderReadOnlyOptimal
	}

	rec := vzgpu.NewRecorder(cmd)
	rec.Begin()
	rec.Barrier(vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, nil, []vzgpu.ImageBarrier{{
		Image: img, OldLayout: img.Layout(), NewLayout: vk.ImageLayoutTransferDstOptimal,
		DstAccess: vk.AccessTransferWriteBit,
	}})
	rec.CopyBufferToImage(stg.BufferHandle(), 0, img)
	rec.Barrier(vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit, nil, []vzgpu.ImageBarrier{{
		Image: img, OldLayout: vk.ImageLayoutTransferDstOptimal, NewLayout: final,
		SrcAccess: vk.AccessTransferWriteBit, DstAccess: vk.AccessShaderReadBit,
	}})
	rec.End()
	e.submitAndWaitTransfer(cmd)
}

func (e *Engine) submitImageDownloadCopy(img *vzgpu.Image, stg *vzgpu.Dat) {
	family := e.dev.QueueFamily(e.transferQueueIdx)
	cmd, err := e.dev.AllocTransientCommandBuffer(family)
	if err != nil {
		return
	}
	defer e.dev.FreeCommandBuffers(family, []vk.CommandBuffer{cmd})

	prev := img.Layout()
	rec := vzgpu.NewRecorder(cmd)
	rec.Begin()
	rec.Barrier(vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, nil, []vzgpu.ImageBarrier{{
		Image: img, OldLayout: prev, NewLayout: vk.ImageLayoutTransferSrcOptimal,
		SrcAccess: vk.AccessShaderReadBit, DstAccess: vk.AccessTransferReadBit,
	}})
	rec.CopyImageToBuffer(img, stg.BufferHandle(), 0)
	rec.Barrier(vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit, nil, []vzgpu.ImageBarrier{{
		Image: img, OldLayout: vk.ImageLayoutTransferSrcOptimal, NewLayout: prev,
		SrcAccess: vk.AccessTransferReadBit, DstAccess: vk.AccessShaderReadBit,
	}})
	rec.End()
	e.submitAndWaitTransfer(cmd)
}

func (e *Engine) submitImageCopy(src, dst *vzgpu.Image) {
	family := e.dev.QueueFamily(e.transferQueueIdx)
	cmd, err := e.dev.AllocTransientCommandBuffer(family)
	if err != nil {
		return
	}
	defer e.dev.FreeCommandBuffers(family, []vk.CommandBuffer{cmd})

	srcPrev, dstPrev := src.Layout(), dst.Layout()
	rec := vzgpu.NewRecorder(cmd)
	rec.Begin()
	rec.Barrier(vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, nil, []vzgpu.ImageBarrier{
		{Image: src, OldLayout: srcPrev, NewLayout: vk.ImageLayoutTransferSrcOptimal, DstAccess: vk.AccessTransferReadBit},
		{Image: dst, OldLayout: dstPrev, NewLayout: vk.ImageLayoutTransferDstOptimal, DstAccess: vk.AccessTransferWriteBit},
	})
	rec.CopyImage(src, dst)
	rec.Barrier(vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit, nil, []vzgpu.ImageBarrier{
		{Image: src, OldLayout: vk.ImageLayoutTransferSrcOptimal, NewLayout: srcPrev, SrcAccess: vk.AccessTransferReadBit},
		{Image: dst, OldLayout: vk.ImageLayoutTransferDstOptimal, NewLayout: dstPrev, SrcAccess: vk.AccessTransferWriteBit},
	})
	rec.End()
	e.submitAndWaitTransfer(cmd)
}

// submitAndWaitTransfer submits cmd on the transfer queue and blocks
// until it completes, recycling one fence from the shared FenceManager
// rather than stalling the whole queue via vkQueueWaitIdle.
func (e *Engine) submitAndWaitTransfer(cmd vk.CommandBuffer) {
	fence, err := e.fm.NewFence()
	if err != nil {
		return
	}
	queue := e.dev.Queue(e.transferQueueIdx)
	vk.QueueSubmit(queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, fence)
	vk.WaitForFences(e.dev.Handle(), 1, []vk.Fence{fence}, vk.True, vk.MaxUint64)
	e.fm.Reset()
}

// dupEntry tracks one per-frame duplicated upload: data is resupplied
// per image index and written into region[imgIdx] until every bit in
// done is set, per spec §4.6's dup algorithm.
type dupEntry struct {
	dat       *vzgpu.Dat
	supply    func(imgIdx int) []byte
	done      []bool
	recurrent bool
}

// RegisterDup adds a dup-transfer entry covering imageCount regions of
// dat (one per swapchain image) into the first free slot of the
// fixed-capacity dup table. supply is called once per image index the
// first time (or, for recurrent entries, every time) that image's
// region needs refreshing. Entries beyond maxDups are silently dropped,
// matching the fixed-capacity table's no-growth contract.
func (e *Engine) RegisterDup(dat *vzgpu.Dat, imageCount int, recurrent bool, supply func(imgIdx int) []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.dups {
		if e.dups[i] == nil {
			e.dups[i] = &dupEntry{dat: dat, supply: supply, done: make([]bool, imageCount), recurrent: recurrent}
			return
		}
	}
}

// ApplyDup runs the dup algorithm for imgIdx: for every active entry
// whose done[imgIdx] bit isn't set, it writes region[imgIdx] (direct
// memcpy if dat is mappable, else a small staging copy waited to
// completion) and sets the bit. Entries with every bit set free their
// table slot unless recurrent, in which case their bits reset instead.
// This is meant to be called once per frame, after waiting the frame's
// in-flight fence, via vzgpu.Canvas.DupApply.
func (e *Engine) ApplyDup(imgIdx int) {
	e.mu.Lock()
	entries := e.dups
	e.mu.Unlock()

	for i, d := range entries {
		if d == nil {
			continue
		}
		if imgIdx < len(d.done) && !d.done[imgIdx] {
			data := d.supply(imgIdx)
			if d.dat.Mappable() {
				d.dat.Upload(imgIdx, data)
			} else {
				stg, err := e.arena.Alloc(vzgpu.BufferStaging, 1, vk.DeviceSize(len(data)), vzgpu.DatOptions{})
				if err == nil {
					stg.Upload(0, data)
					e.submitBufferCopy(stg, 0, d.dat, imgIdx, vk.DeviceSize(len(data)))
					stg.Destroy()
				}
			}
			d.done[imgIdx] = true
		}
		allDone := true
		for _, b := range d.done {
			if !b {
				allDone = false
				break
			}
		}
		if allDone && d.recurrent {
			for i := range d.done {
				d.done[i] = false
			}
		}
		if allDone && !d.recurrent {
			e.mu.Lock()
			e.dups[i] = nil
			e.mu.Unlock()
		}
	}
}

// DrainCopy services the CPY proc (buffer/image copy submissions),
// meant to be called once per frame from the main thread.
func (e *Engine) DrainCopy() { e.cpy.DequeueBatch() }

// DrainEvents services the EV proc (download_done notifications).
func (e *Engine) DrainEvents() { e.ev.DequeueBatch() }

// RunBackground starts the UD proc's servicing loop (UL+DL) on its own
// goroutine, draining until Stop is called.
func (e *Engine) RunBackground() {
	go func() {
		for {
			item, ok := e.ud.Dequeue(true)
			if !ok {
				continue
			}
			if item.Type == typeStop {
				return
			}
		}
	}()
}

// Stop enqueues the background proc's stop sentinel.
func (e *Engine) Stop() {
	e.deq.Enqueue(queueUL, typeStop, nil)
}
