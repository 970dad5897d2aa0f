package cache

import (
	"github.com/cespare/xxhash/v2"
)

// CacheKey is the string identity used to address every cached resource: shaders, pipelines,
// textures, meshes, materials, models, buffers and bind groups. Equality is by string value.
type CacheKey struct {
	id string
}

// NewCacheKey wraps an identity string into a CacheKey.
func NewCacheKey(id string) CacheKey {
	return CacheKey{id: id}
}

// String returns the identity string.
func (k CacheKey) String() string {
	return k.id
}

// IsZero reports whether the key was never assigned an identity.
func (k CacheKey) IsZero() bool {
	return k.id == ""
}

// Hash returns a stable 64-bit digest of the identity, used for log correlation and bucket ids.
func (k CacheKey) Hash() uint64 {
	return Digest(k.id)
}

// Digest returns the xxhash of content. The shader library compares digests to skip rebuilding pipelines
// for a source that did not change.
func Digest(content string) uint64 {
	return xxhash.Sum64String(content)
}

// Join derives a child key, e.g. a material key scoped under a model key.
func (k CacheKey) Join(suffix string) CacheKey {
	if k.id == "" {
		return CacheKey{id: suffix}
	}
	return CacheKey{id: k.id + "_" + suffix}
}
