package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampledLayout = BindGroupLayout{
	Key: "sampled",
	Entries: []Binding{
		{Binding: 0, Type: BindingTexture, Visibility: VisibilityFragment},
		{Binding: 1, Type: BindingSampler, Visibility: VisibilityFragment},
	},
}

func blitShaders(t *testing.T) (shader.Shader, shader.Shader) {
	t.Helper()
	lib := shader.NewLibrary()
	vs, err := lib.Shader(shader.Blit, shader.ShaderTypeVertex)
	require.NoError(t, err)
	fs, err := lib.Shader(shader.Blit, shader.ShaderTypeFragment)
	require.NoError(t, err)
	return vs, fs
}

func TestDefaults(t *testing.T) {
	p := NewPipeline("plain", WithSampleCount(0))
	assert.Equal(t, "plain", p.PipelineKey())
	assert.Equal(t, gpu.TextureFormatSurface, p.ColorFormat())
	assert.Equal(t, gpu.TextureFormatUndefined, p.DepthFormat())
	assert.Equal(t, uint32(1), p.SampleCount())
	assert.True(t, p.DepthTestEnabled())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, WriteMaskAll, p.WriteMask())
	assert.Equal(t, CullModeNone, p.CullMode())
	assert.Nil(t, p.Pipeline())

	p.SetRenderPipeline("handle")
	assert.Equal(t, "handle", p.Pipeline())
}

func TestValidateAcceptsMatchingLayout(t *testing.T) {
	vs, fs := blitShaders(t)
	p := NewPipeline("blit",
		WithVertexShader(vs),
		WithFragmentShader(fs),
		WithBindGroupLayouts(sampledLayout),
	)
	assert.NoError(t, p.Validate())
	assert.Same(t, vs, p.Shader(shader.ShaderTypeVertex))
	assert.Same(t, fs, p.Shader(shader.ShaderTypeFragment))
}

func TestValidateRejectsMismatches(t *testing.T) {
	vs, fs := blitShaders(t)

	err := NewPipeline("blit", WithVertexShader(vs)).Validate()
	assert.ErrorContains(t, err, "shaders are required")

	err = NewPipeline("blit", WithVertexShader(vs), WithFragmentShader(fs)).Validate()
	assert.ErrorContains(t, err, "group 0, which has no layout")

	missing := BindGroupLayout{Key: "short", Entries: sampledLayout.Entries[:1]}
	err = NewPipeline("blit", WithVertexShader(vs), WithFragmentShader(fs), WithBindGroupLayouts(missing)).Validate()
	assert.ErrorContains(t, err, `missing from layout "short"`)

	swapped := BindGroupLayout{Key: "swapped", Entries: []Binding{
		{Binding: 0, Type: BindingSampler},
		{Binding: 1, Type: BindingTexture},
	}}
	err = NewPipeline("blit", WithVertexShader(vs), WithFragmentShader(fs), WithBindGroupLayouts(swapped)).Validate()
	assert.ErrorContains(t, err, "different resource kind")
}

func TestBufferLayoutsMatchModelRecords(t *testing.T) {
	assert.Equal(t, uint64(model.VertexSize), MeshLayout.Stride)
	assert.Equal(t, StepModeInstance, InstanceLayout.StepMode)
	last := InstanceLayout.Attributes[len(InstanceLayout.Attributes)-1]
	assert.Equal(t, uint32(14), last.Location)
	assert.Less(t, last.Offset, InstanceLayout.Stride)
}

func TestComputePipelineValidation(t *testing.T) {
	cs, err := shader.NewLibrary().Shader(shader.Equirect, shader.ShaderTypeCompute)
	require.NoError(t, err)
	projection := BindGroupLayout{Key: "projection", Entries: []Binding{
		{Binding: 0, Type: BindingUnfilterableTexture, Visibility: VisibilityCompute},
		{Binding: 1, Type: BindingStorageTexture, Visibility: VisibilityCompute, Format: gpu.TextureFormatRGBA16Float},
	}}

	p := NewComputePipeline("equirect", WithComputeShader(cs), WithBindGroupLayouts(projection))
	assert.Equal(t, PipelineTypeCompute, p.Type())
	assert.Same(t, cs, p.Shader(shader.ShaderTypeCompute))
	assert.NoError(t, p.Validate())

	err = NewComputePipeline("equirect", WithBindGroupLayouts(projection)).Validate()
	assert.ErrorContains(t, err, "compute shader is required")

	sampledOnly := BindGroupLayout{Key: "sampled_only", Entries: []Binding{
		{Binding: 0, Type: BindingUnfilterableTexture},
		{Binding: 1, Type: BindingTexture},
	}}
	err = NewComputePipeline("equirect", WithComputeShader(cs), WithBindGroupLayouts(sampledOnly)).Validate()
	assert.ErrorContains(t, err, "different resource kind")

	assert.Equal(t, PipelineTypeRender, NewPipeline("plain").Type())
}
