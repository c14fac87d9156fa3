package vzgpu

import (
	"reflect"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// safeString returns a NUL-terminated copy of s, as every Vulkan
// PName/PApplicationName/PEngineName field requires.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// sliceUint32 copies a SPIR-V byte blob into a new uint32 slice, the
// form vk.ShaderModuleCreateInfo.PCode expects.
func sliceUint32(data []byte) []uint32 {
	const sizeofUint32 = 4
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&data))
	out := make([]uint32, len(data)/sizeofUint32)
	copy(out, (*(*[]uint32)(unsafe.Pointer(sh)))[:len(data)/sizeofUint32])
	return out
}

// unsafeBytePtr returns a pointer to the first byte of data for
// vkCmdPushConstants' raw void* parameter, nil for an empty slice.
func unsafeBytePtr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Pointer(&data[0])
}

// checkExisting reports which of wanted are absent from actual.
func checkExisting(actual, wanted []string) (missing []string) {
	for _, w := range wanted {
		found := false
		for _, a := range actual {
			if a == w {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, w)
		}
	}
	return missing
}

// instanceExtensions lists the instance extensions the platform offers.
func instanceExtensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// deviceExtensions lists the extensions a given physical device offers.
func deviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// validationLayers lists the instance validation layers the platform
// offers.
func validationLayers() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	names := make([]string, 0, count)
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// findMemoryType searches props for a memory type matching typeBits
// that also carries every flag in want.
func findMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if vk.MemoryPropertyFlagBits(props.MemoryTypes[i].PropertyFlags)&want == want {
			return i, true
		}
	}
	return 0, false
}
