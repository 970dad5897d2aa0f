package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapImages struct {
	images map[string]common.TextureStagingData
	reads  map[string]int
}

func (m *mapImages) ReadImage(rel string) (common.TextureStagingData, error) {
	if m.reads == nil {
		m.reads = make(map[string]int)
	}
	m.reads[rel]++
	img, ok := m.images[rel]
	if !ok {
		return common.TextureStagingData{}, &common.AssetLoadError{Path: rel, Err: errors.New("missing")}
	}
	return img, nil
}

func TestResolveZeroKeyUsesPlaceholders(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	tc := NewTextureCache(device, queue, nil)

	diffuse := tc.Resolve(cache.CacheKey{}, TextureRoleDiffuse).(*gputest.Texture)
	normal := tc.Resolve(cache.CacheKey{}, TextureRoleNormal).(*gputest.Texture)

	assert.Equal(t, FallbackDiffuseKey, diffuse.Label())
	assert.Equal(t, gpu.TextureFormatRGBA8UnormSrgb, diffuse.Format())
	assert.Equal(t, []byte{255, 255, 255, 255}, diffuse.Pixels)
	assert.Equal(t, FallbackNormalKey, normal.Label())
	assert.Equal(t, gpu.TextureFormatRGBA8Unorm, normal.Format())
	assert.Equal(t, []byte{128, 128, 255, 255}, normal.Pixels)

	// Placeholders are created once.
	assert.Same(t, diffuse, tc.Resolve(cache.CacheKey{}, TextureRoleDiffuse))
	assert.Equal(t, 2, tc.Len())
}

func TestResolveMissingImageFallsBack(t *testing.T) {
	device := &gputest.Device{}
	tc := NewTextureCache(device, &gputest.Queue{}, &mapImages{})

	tex := tc.Resolve(cache.NewCacheKey("textures/missing.png"), TextureRoleDiffuse)
	require.NotNil(t, tex)
	assert.Equal(t, FallbackDiffuseKey, tex.Label())

	_, err := tc.Load(cache.NewCacheKey("textures/missing.png"), TextureRoleDiffuse)
	var loadErr *common.AssetLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadUploadsOncePerRole(t *testing.T) {
	images := &mapImages{images: map[string]common.TextureStagingData{
		"textures/stone.png": {Pixels: make([]byte, 2*2*4), Width: 2, Height: 2},
	}}
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	tc := NewTextureCache(device, queue, images)
	key := cache.NewCacheKey("textures/stone.png")

	a, err := tc.Load(key, TextureRoleDiffuse)
	require.NoError(t, err)
	b, err := tc.Load(key, TextureRoleDiffuse)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, images.reads["textures/stone.png"])

	n, err := tc.Load(key, TextureRoleNormal)
	require.NoError(t, err)
	assert.NotSame(t, a, n)
	assert.Equal(t, gpu.TextureFormatRGBA8Unorm, n.Format())
	assert.Len(t, queue.TextureWrites, 2)

	tc.Release()
	assert.Empty(t, device.LiveTextures("textures/stone.png"))
	assert.Zero(t, tc.Len())
}

func TestLoadZeroKeyIsCacheMiss(t *testing.T) {
	tc := NewTextureCache(&gputest.Device{}, &gputest.Queue{}, nil)
	_, err := tc.Load(cache.CacheKey{}, TextureRoleDiffuse)
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}
