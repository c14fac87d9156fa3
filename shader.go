package vzgpu

import (
	"io/ioutil"

	vk "github.com/vulkan-go/vulkan"
)

// ShaderStage names the pipeline stage a shader module targets,
// generalized past the teacher's hardcoded vertex/fragment pair to
// cover compute and the tessellation/geometry stages spec §4.5 lists.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
	StageGeometry
	StageTessControl
	StageTessEval
)

func (s ShaderStage) vkFlag() vk.ShaderStageFlagBits {
	switch s {
	case StageVertex:
		return vk.ShaderStageVertexBit
	case StageFragment:
		return vk.ShaderStageFragmentBit
	case StageCompute:
		return vk.ShaderStageComputeBit
	case StageGeometry:
		return vk.ShaderStageGeometryBit
	case StageTessControl:
		return vk.ShaderStageTessellationControlBit
	case StageTessEval:
		return vk.ShaderStageTessellationEvaluationBit
	default:
		return vk.ShaderStageVertexBit
	}
}

// Shader is a loaded SPIR-V module bound to a stage.
type Shader struct {
	device vk.Device
	handle vk.ShaderModule
	stage  ShaderStage
}

// LoadShaderFile reads a SPIR-V binary from path and creates a module
// for stage, per the teacher's LoadShaderModule (ReadFile, sliceUint32,
// CreateShaderModule), generalized to any stage and to return errors
// instead of calling os.Exit.
func LoadShaderFile(device vk.Device, path string, stage ShaderStage) (*Shader, error) {
	code, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, newErr(KindInitFailure, "reading shader %q: %v", path, err)
	}
	return LoadShaderBytes(device, code, stage)
}

// LoadShaderBytes creates a shader module directly from a SPIR-V blob,
// used when shaders are embedded rather than loaded from disk.
func LoadShaderBytes(device vk.Device, code []byte, stage ShaderStage) (*Shader, error) {
	var handle vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &handle)
	if isVkError(ret) {
		return nil, newVkError(ret)
	}
	return &Shader{device: device, handle: handle, stage: stage}, nil
}

func (s *Shader) stageInfo(entryPoint string) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.stage.vkFlag(),
		Module: s.handle,
		PName:  safeString(entryPoint),
	}
}

func (s *Shader) Destroy() {
	vk.DestroyShaderModule(s.device, s.handle, nil)
}

// ShaderProgram groups the modules that make up one graphics or compute
// pipeline, replacing the teacher's CoreShader path/name maps with an
// explicit, type-checked list.
type ShaderProgram struct {
	Stages []*Shader
}

func (p *ShaderProgram) stageInfos(entryPoint string) []vk.PipelineShaderStageCreateInfo {
	infos := make([]vk.PipelineShaderStageCreateInfo, len(p.Stages))
	for i, s := range p.Stages {
		infos[i] = s.stageInfo(entryPoint)
	}
	return infos
}

func (p *ShaderProgram) Destroy() {
	for _, s := range p.Stages {
		s.Destroy()
	}
}
