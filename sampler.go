package vzgpu

import vk "github.com/vulkan-go/vulkan"

// Sampler wraps a vk.Sampler with the filter/address-mode parameters
// spec §3 attaches to a Tex: independent min/mag filters and one
// address mode per axis (spec §4.5 "Sampler").
type Sampler struct {
	device vk.Device
	handle vk.Sampler
}

// SamplerOptions configures NewSampler. AddressU/V/W are passed to
// Vulkan unchanged; their zero value is SamplerAddressModeRepeat.
type SamplerOptions struct {
	MinFilter vk.Filter
	MagFilter vk.Filter
	AddressU  vk.SamplerAddressMode
	AddressV  vk.SamplerAddressMode
	AddressW  vk.SamplerAddressMode
	Anisotropy float32 // 0 disables anisotropic filtering
}

func NewSampler(device vk.Device, opts SamplerOptions) (*Sampler, error) {
	enableAniso := opts.Anisotropy > 1
	var handle vk.Sampler
	ret := vk.CreateSampler(device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               opts.MagFilter,
		MinFilter:               opts.MinFilter,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            opts.AddressU,
		AddressModeV:            opts.AddressV,
		AddressModeW:            opts.AddressW,
		AnisotropyEnable:        vk.Bool32(boolToInt(enableAniso)),
		MaxAnisotropy:           opts.Anisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		CompareOp:               vk.CompareOpNever,
		MinLod:                  0,
		MaxLod:                  1,
		MipLodBias:              0,
	}, nil, &handle)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &Sampler{device: device, handle: handle}, nil
}

func boolToInt(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (s *Sampler) Handle() vk.Sampler { return s.handle }

func (s *Sampler) Destroy() {
	vk.DestroySampler(s.device, s.handle, nil)
}
