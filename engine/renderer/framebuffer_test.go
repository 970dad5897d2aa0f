package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultisampledFrameBufferResolves(t *testing.T) {
	device := &gputest.Device{}
	fb := NewFrameBuffer(RenderTargetScene, gpu.TextureFormatRGBA16Float, WithDepth(), WithSampleCount(MSAA4x))
	assert.Equal(t, "scene", fb.Label())
	assert.Nil(t, fb.Sampled())

	changed, err := fb.Resize(device, 640, 480)
	require.NoError(t, err)
	assert.True(t, changed)

	color := fb.Color().(*gputest.Texture)
	resolve := fb.Resolve().(*gputest.Texture)
	depth := fb.Depth().(*gputest.Texture)
	assert.Equal(t, uint32(4), color.Desc.SampleCount)
	assert.Equal(t, gpu.TextureUsageRenderTarget, color.Desc.Usage)
	assert.Equal(t, uint32(1), resolve.Desc.SampleCount)
	assert.NotZero(t, resolve.Desc.Usage&gpu.TextureUsageSampled)
	assert.Equal(t, gpu.TextureFormatDepth24Plus, depth.Desc.Format)
	assert.Equal(t, uint32(4), depth.Desc.SampleCount)
	assert.Same(t, resolve, fb.Sampled())
	assert.Equal(t, "scene color", color.Desc.Label)
}

func TestFrameBufferResizeIsNoOpForSameOrZeroSize(t *testing.T) {
	device := &gputest.Device{}
	fb := NewFrameBuffer(RenderTargetHDR, gpu.TextureFormatRGBA16Float)

	_, err := fb.Resize(device, 640, 480)
	require.NoError(t, err)
	created := len(device.Textures)

	changed, err := fb.Resize(device, 640, 480)
	require.NoError(t, err)
	assert.False(t, changed)
	changed, err = fb.Resize(device, 0, 480)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, device.Textures, created)

	old := fb.Color().(*gputest.Texture)
	changed, err = fb.Resize(device, 800, 600)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, old.Released)
	assert.Len(t, device.LiveTextures("hdr color"), 1)

	w, h := fb.Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
}

func TestSingleSampleFrameBufferSamplesColor(t *testing.T) {
	device := &gputest.Device{}
	fb := NewFrameBuffer(RenderTargetBloom, gpu.TextureFormatRGBA16Float)
	_, err := fb.Resize(device, 32, 32)
	require.NoError(t, err)

	assert.Nil(t, fb.Resolve())
	assert.Nil(t, fb.Depth())
	assert.Same(t, fb.Color(), fb.Sampled())
	assert.NotZero(t, fb.Color().(*gputest.Texture).Desc.Usage&gpu.TextureUsageSampled)

	fb.Release()
	assert.Empty(t, device.LiveTextures("bloom color"))
	w, _ := fb.Size()
	assert.Zero(t, w)
}

func TestFrameBufferAllocationFailure(t *testing.T) {
	device := &gputest.Device{FailNext: true}
	fb := NewFrameBuffer(RenderTargetCustom, gpu.TextureFormatRGBA8Unorm)
	_, err := fb.Resize(device, 16, 16)
	require.Error(t, err)
	assert.Nil(t, fb.Color())
}
