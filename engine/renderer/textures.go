package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"go.uber.org/zap"
)

// TextureRole selects the color space a texture is uploaded in and the placeholder used when it is missing.
type TextureRole int

const (
	// TextureRoleDiffuse is an sRGB color map; its placeholder is solid white.
	TextureRoleDiffuse TextureRole = iota
	// TextureRoleNormal is a linear tangent-space normal map; its placeholder is the flat normal (0.5, 0.5, 1).
	TextureRoleNormal
)

func (r TextureRole) String() string {
	if r == TextureRoleNormal {
		return "normal"
	}
	return "diffuse"
}

func (r TextureRole) format() gpu.TextureFormat {
	if r == TextureRoleNormal {
		return gpu.TextureFormatRGBA8Unorm
	}
	return gpu.TextureFormatRGBA8UnormSrgb
}

// Fallback texture keys.
const (
	FallbackDiffuseKey = "fallback_diffuse_texture"
	FallbackNormalKey  = "fallback_normal_texture"
)

// ImageReader decodes an image by path relative to the asset root. assets.Loader satisfies it.
type ImageReader interface {
	ReadImage(rel string) (common.TextureStagingData, error)
}

type textureCache struct {
	device gpu.Device
	queue  gpu.Queue
	reader ImageReader
	log    *logger.Logger

	textures cache.Cache[gpu.Texture]
}

// TextureCache uploads image assets once per key and role. A missing texture is not an error: Resolve hands
// back a constant placeholder for the zero key and for any image that cannot be read.
type TextureCache interface {
	// Resolve returns the texture for key, loading it on first use.
	//
	// Parameters:
	//   - key: the asset path of the image, or the zero key for "none"
	//   - role: how the texture is sampled
	//
	// Returns:
	//   - gpu.Texture: the texture, or the role's placeholder
	Resolve(key cache.CacheKey, role TextureRole) gpu.Texture

	// Load returns the texture for key, loading it on first use, and reports failures.
	//
	// Parameters:
	//   - key: the asset path of the image
	//   - role: how the texture is sampled
	//
	// Returns:
	//   - gpu.Texture: the texture
	//   - error: the read, decode or upload failure
	Load(key cache.CacheKey, role TextureRole) (gpu.Texture, error)

	// Fallback returns the placeholder for a role, creating it on first use.
	//
	// Parameters:
	//   - role: the role
	//
	// Returns:
	//   - gpu.Texture: the placeholder
	//   - error: an allocation failure
	Fallback(role TextureRole) (gpu.Texture, error)

	// Len returns the number of cached textures, placeholders included.
	Len() int

	// Release frees every cached texture.
	Release()
}

var _ TextureCache = &textureCache{}

// NewTextureCache creates a TextureCache. A nil reader makes every non-zero key resolve to its placeholder.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for uploads
//   - reader: the image source
//
// Returns:
//   - TextureCache: the new cache
func NewTextureCache(device gpu.Device, queue gpu.Queue, reader ImageReader) TextureCache {
	return &textureCache{
		device:   device,
		queue:    queue,
		reader:   reader,
		log:      logger.Provide().Named("textures"),
		textures: cache.NewCache(cache.WithLabel[gpu.Texture]("texture")),
	}
}

func (c *textureCache) Resolve(key cache.CacheKey, role TextureRole) gpu.Texture {
	if !key.IsZero() {
		tex, err := c.Load(key, role)
		if err == nil {
			return tex
		}
		c.log.Warn("texture unavailable, using placeholder",
			zap.String("texture", key.String()),
			zap.Stringer("role", role),
			zap.Error(err),
		)
	}
	tex, err := c.Fallback(role)
	if err != nil {
		c.log.Error("placeholder texture allocation failed", zap.Stringer("role", role), zap.Error(err))
		return nil
	}
	return tex
}

func (c *textureCache) Load(key cache.CacheKey, role TextureRole) (gpu.Texture, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("load texture: %w", common.ErrCacheMiss)
	}
	return c.textures.GetOrCreate(key.Join(role.String()), func() (gpu.Texture, error) {
		if c.reader == nil {
			return nil, &common.AssetLoadError{Path: key.String(), Err: common.ErrCacheMiss}
		}
		data, err := c.reader.ReadImage(key.String())
		if err != nil {
			return nil, err
		}
		return c.upload(key.String(), data, role.format())
	})
}

func (c *textureCache) Fallback(role TextureRole) (gpu.Texture, error) {
	key, pixel := FallbackDiffuseKey, common.SolidTexture(255, 255, 255, 255)
	if role == TextureRoleNormal {
		key, pixel = FallbackNormalKey, common.SolidTexture(128, 128, 255, 255)
	}
	return c.textures.GetOrCreate(cache.NewCacheKey(key), func() (gpu.Texture, error) {
		return c.upload(key, pixel, role.format())
	})
}

func (c *textureCache) Len() int {
	return c.textures.Len()
}

func (c *textureCache) Release() {
	for _, key := range c.textures.Keys() {
		if tex, ok := c.textures.Remove(key); ok {
			tex.Release()
		}
	}
}

func (c *textureCache) upload(label string, data common.TextureStagingData, format gpu.TextureFormat) (gpu.Texture, error) {
	tex, err := c.device.CreateTexture(gpu.TextureDescriptor{
		Label:       label,
		Width:       data.Width,
		Height:      data.Height,
		Format:      format,
		Usage:       gpu.TextureUsageSampled | gpu.TextureUsageCopyDst,
		SampleCount: 1,
	})
	if err != nil {
		return nil, err
	}
	if err := c.queue.WriteTexture(tex, data); err != nil {
		tex.Release()
		return nil, err
	}
	return tex, nil
}
