package vzgpu

import (
	vk "github.com/vulkan-go/vulkan"
)

// Arena sub-allocates offsets inside a small set of large typed
// buffers, per spec §4.4. It owns the default buffers (one per
// BufferType) and hands out Dat handles carved from them, or
// standalone Dats with their own dedicated Buffer.
type Arena struct {
	device    vk.Device
	memProps  vk.PhysicalDeviceMemoryProperties
	minUBOAlign vk.DeviceSize
	buffers   map[BufferType]*Buffer
}

// NewArena creates the default buffers (staging, vertex, index,
// storage, uniform-device, uniform-mappable) at their documented
// default sizes.
func NewArena(dev *Device) (*Arena, error) {
	a := &Arena{
		device:      dev.handle,
		memProps:    dev.memProps,
		minUBOAlign: dev.props.Limits.MinUniformBufferOffsetAlignment,
		buffers:     map[BufferType]*Buffer{},
	}
	for _, t := range []BufferType{BufferStaging, BufferVertex, BufferIndex, BufferStorage, BufferUniformDevice, BufferUniformMappable} {
		buf, err := createBuffer(a.device, a.memProps, t, defaultBufferSize(t))
		if err != nil {
			a.Destroy()
			return nil, err
		}
		a.buffers[t] = buf
	}
	return a, nil
}

func (a *Arena) Destroy() {
	for _, buf := range a.buffers {
		buf.destroy()
	}
	a.buffers = map[BufferType]*Buffer{}
}

func nextPow2(v vk.DeviceSize) vk.DeviceSize {
	if v == 0 {
		return 1
	}
	v--
	p := vk.DeviceSize(1)
	for p <= v {
		p <<= 1
	}
	return p
}

func alignUp(v, alignment vk.DeviceSize) vk.DeviceSize {
	if alignment <= 1 {
		return v
	}
	return ((v + alignment - 1) / alignment) * alignment
}

// Dat is a named handle for a logical allocation: either shared (a
// BufferRegions carved from one of the Arena's typed buffers) or
// standalone (owns its own Buffer). Spec §3.
type Dat struct {
	arena    *Arena
	typ      BufferType
	regions  *BufferRegions
	standalone *Buffer

	resizable bool
	persistentStaging bool
}

// DatOptions configures Alloc.
type DatOptions struct {
	Resizable         bool
	PersistentStaging bool
	Standalone        bool
}

// Alloc implements the allocation algorithm of spec §4.4 exactly:
// select the typed buffer, compute alignment (minUniformBufferOffsetAlignment
// for uniform-like types, else 1), bump-allocate offset(s), growing
// the backing buffer to next_pow2(needed) on overflow.
func (a *Arena) Alloc(t BufferType, count int, size vk.DeviceSize, opts DatOptions) (*Dat, error) {
	if opts.Standalone {
		buf, err := createBuffer(a.device, a.memProps, t, size*vk.DeviceSize(count))
		if err != nil {
			return nil, err
		}
		d := &Dat{arena: a, typ: t, standalone: buf, resizable: opts.Resizable, persistentStaging: opts.PersistentStaging}
		d.regions = &BufferRegions{buffer: buf, count: count, itemSize: size, alignment: 1, alignedSize: size, offsets: offsetsFrom(0, size, count)}
		return d, nil
	}

	buf, ok := a.buffers[t]
	if !ok {
		return nil, newErr(KindResourceInvalid, "no default buffer for type %v", t)
	}

	alignment := vk.DeviceSize(1)
	if t == BufferUniformDevice || t == BufferUniformMappable {
		alignment = a.minUBOAlign
		if alignment == 0 {
			alignment = 1
		}
	}

	alignedSize := alignUp(size, alignment)
	offset := buf.allocated // invariant: already aligned

	needed := offset + alignedSize*vk.DeviceSize(count)
	if needed > buf.size {
		grown, err := a.growBuffer(t, nextPow2(needed))
		if err != nil {
			return nil, err
		}
		buf = grown
	}

	buf.allocated = offset + alignedSize*vk.DeviceSize(count)

	d := &Dat{
		arena:     a,
		typ:       t,
		resizable: opts.Resizable,
		persistentStaging: opts.PersistentStaging,
		regions: &BufferRegions{
			buffer:      buf,
			count:       count,
			itemSize:    size,
			alignment:   alignment,
			alignedSize: alignedSize,
			offsets:     offsetsFrom(offset, alignedSize, count),
		},
	}
	return d, nil
}

func offsetsFrom(base, stride vk.DeviceSize, count int) []vk.DeviceSize {
	offs := make([]vk.DeviceSize, count)
	for i := range offs {
		offs[i] = base + vk.DeviceSize(i)*stride
	}
	return offs
}

// growBuffer reallocates the default buffer for t to newSize,
// discarding previous contents — existing Dats referencing it must be
// treated by the caller as invalidated, per spec §4.4 step 5.
func (a *Arena) growBuffer(t BufferType, newSize vk.DeviceSize) (*Buffer, error) {
	old := a.buffers[t]
	grown, err := createBuffer(a.device, a.memProps, t, newSize)
	if err != nil {
		return nil, err
	}
	grown.allocated = old.allocated
	old.destroy()
	a.buffers[t] = grown
	return grown, nil
}

// Resize implements spec §4.4's documented limitation: in-place resize
// is only supported when d is the last-allocated region of its arena
// buffer (offset + old_size == allocated_size) and count == 1. A
// single-region Dat that is not the last-allocated region is replaced
// by a fresh allocation and its old region is leaked. A Dat with
// count > 1, or a standalone Dat, returns ErrUnsupported.
func (d *Dat) Resize(newSize vk.DeviceSize) error {
	if d.regions.count != 1 {
		return ErrUnsupported
	}
	if d.standalone != nil {
		return ErrUnsupported
	}
	buf := d.regions.buffer
	offset := d.regions.offsets[0]
	oldAlignedSize := d.regions.alignedSize
	if offset+oldAlignedSize != buf.allocated {
		// Not the last-allocated region: leak the old region and
		// hand back a fresh allocation, per spec's documented limitation.
		fresh, err := d.arena.Alloc(d.typ, 1, newSize, DatOptions{Resizable: d.resizable})
		if err != nil {
			return err
		}
		*d = *fresh
		return nil
	}

	alignment := d.regions.alignment
	newAligned := alignUp(newSize, alignment)
	needed := offset + newAligned
	if needed > buf.size {
		grown, err := d.arena.growBuffer(d.typ, nextPow2(needed))
		if err != nil {
			return err
		}
		buf = grown
	}
	buf.allocated = offset + newAligned
	d.regions.itemSize = newSize
	d.regions.alignedSize = newAligned
	d.regions.offsets = offsetsFrom(offset, newAligned, 1)
	d.regions.buffer = buf
	return nil
}

func (d *Dat) Regions() *BufferRegions { return d.regions }
func (d *Dat) BufferHandle() vk.Buffer {
	return d.regions.buffer.handle
}

// Mappable reports whether this Dat's backing buffer has a permanent
// host pointer, i.e. whether the transfer engine's direct-upload path
// (spec §4.6 step 1, "target assumed mappable") applies.
func (d *Dat) Mappable() bool { return d.regions.buffer.mapped != nil }

func (d *Dat) Destroy() {
	if d.standalone != nil {
		d.standalone.destroy()
		d.standalone = nil
	}
}

// Upload writes data into region i (direct memcpy if the backing
// buffer is host-mappable; otherwise this is a programmer error — the
// transfer engine is the only path for device-local Dats, per spec
// §4.6).
func (d *Dat) Upload(i int, data []byte) error {
	buf := d.regions.buffer
	if buf.mapped == nil {
		return newErr(KindResourceInvalid, "dat is not mappable; use the transfer engine")
	}
	buf.write(d.regions.offsets[i], data)
	return nil
}

// Download reads n bytes back out of region i.
func (d *Dat) Download(i int, n int) ([]byte, error) {
	buf := d.regions.buffer
	if buf.mapped == nil {
		return nil, newErr(KindResourceInvalid, "dat is not mappable; use the transfer engine")
	}
	return buf.read(d.regions.offsets[i], n), nil
}
