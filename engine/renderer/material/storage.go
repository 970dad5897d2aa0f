package material

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// storage is the implementation of the Storage interface.
type storage struct {
	mu        *sync.Mutex
	materials cache.Cache[Material]
	order     []Material
	buffer    *gpu.DynamicBuffer
	rebuild   bool
}

// Storage owns every material of the scene and the storage buffer holding their MaterialData blocks. Each material
// gets a stable slot on first store; the buffer is rebuilt lazily when a new slot has been added.
type Storage interface {
	// Store returns the material under key, creating it with options on first use. A newly created material is
	// assigned the next free slot and flags the storage buffer for rebuild.
	//
	// Parameters:
	//   - key: the material identity
	//   - options: the options used if the material must be created
	//
	// Returns:
	//   - Material: the cached or newly created material
	//   - error: an error if creation failed
	Store(key cache.CacheKey, options ...MaterialBuilderOption) (Material, error)

	// Get retrieves a stored material.
	//
	// Parameters:
	//   - key: the material identity
	//
	// Returns:
	//   - Material: the material, or nil
	//   - bool: true if the key is stored
	Get(key cache.CacheKey) (Material, bool)

	// Len returns the number of stored materials.
	Len() int

	// Materials returns every stored material ordered by slot.
	//
	// Returns:
	//   - []Material: the materials, index i holding slot i
	Materials() []Material

	// NeedsRebuild reports whether a material was added since the last Sync.
	NeedsRebuild() bool

	// Sync restages and uploads the storage buffer if a rebuild is pending.
	//
	// Parameters:
	//   - device: the device used for (re)allocation
	//   - queue: the queue used for the upload
	//
	// Returns:
	//   - bool: true if the GPU buffer was (re)allocated and bind groups referencing it must be recreated
	//   - error: an error if staging or upload failed; the rebuild stays pending
	Sync(device gpu.Device, queue gpu.Queue) (bool, error)

	// Buffer returns the GPU storage buffer, or nil before the first Sync.
	Buffer() gpu.Buffer
}

var _ Storage = &storage{}

// NewStorage creates an empty material Storage.
//
// Returns:
//   - Storage: the new storage
func NewStorage() Storage {
	return &storage{
		mu:        &sync.Mutex{},
		materials: cache.NewCache[Material](cache.WithLabel[Material]("material")),
		buffer:    gpu.NewDynamicBuffer("material_storage", gpu.BufferUsageStorage),
	}
}

func (s *storage) Store(key cache.CacheKey, options ...MaterialBuilderOption) (Material, error) {
	return s.materials.GetOrCreate(key, func() (Material, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		opts := append(append([]MaterialBuilderOption{}, options...), withIndex(uint32(len(s.order))))
		m := NewMaterial(key, opts...)
		s.order = append(s.order, m)
		s.rebuild = true
		return m, nil
	})
}

func (s *storage) Get(key cache.CacheKey) (Material, bool) {
	return s.materials.Get(key)
}

func (s *storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *storage) Materials() []Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Material, len(s.order))
	copy(out, s.order)
	return out
}

func (s *storage) NeedsRebuild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild
}

func (s *storage) Sync(device gpu.Device, queue gpu.Queue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rebuild {
		return false, nil
	}

	data := make([]byte, 0, len(s.order)*MaterialDataSize)
	for _, m := range s.order {
		d := m.Data()
		data = append(data, d.Marshal()...)
	}
	grew, err := s.buffer.Stage(device, data, len(s.order))
	if err != nil {
		return false, fmt.Errorf("stage material storage: %w", err)
	}
	if err := s.buffer.Upload(queue); err != nil {
		return grew, err
	}
	s.rebuild = false
	return grew, nil
}

func (s *storage) Buffer() gpu.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Buffer()
}
