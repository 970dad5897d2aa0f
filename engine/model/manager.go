package model

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"go.uber.org/zap"
)

// SourcePart is one named piece of supplied geometry and the material it should be drawn with.
type SourcePart struct {
	Name        string
	Data        MeshData
	MaterialKey cache.CacheKey
	Material    []material.MaterialBuilderOption
}

// Source is the canonical description of a model produced by a geometry supplier.
type Source struct {
	Parts []SourcePart
}

// Supplier produces the Source for a model key. It is only called when the model is not cached yet.
type Supplier func(key cache.CacheKey) (Source, error)

// Lookup resolves a model by key. cache.Cache[Model] and Manager both satisfy it.
type Lookup interface {
	Get(key cache.CacheKey) (Model, bool)
}

// manager is the implementation of the Manager interface.
type manager struct {
	device    gpu.Device
	queue     gpu.Queue
	materials material.Storage
	models    cache.Cache[Model]
	meshes    cache.Cache[*Mesh]
	log       *logger.Logger
}

// Manager builds Models from a Supplier on first use and keeps them, and their meshes, in caches keyed by content
// identity. Meshes are keyed "<model>_<part>" so two models sharing a part name never collide.
type Manager interface {
	// Load returns the model under key, supplying and uploading it on first use.
	//
	// Parameters:
	//   - key: the model identity
	//   - supplier: the geometry supplier called on a cache miss
	//
	// Returns:
	//   - Model: the cached or newly built model
	//   - error: an error if supplying, uploading or material creation failed; the key stays absent
	Load(key cache.CacheKey, supplier Supplier) (Model, error)

	// Get retrieves a loaded model without loading.
	//
	// Parameters:
	//   - key: the model identity
	//
	// Returns:
	//   - Model: the model, or nil
	//   - bool: true if loaded
	Get(key cache.CacheKey) (Model, bool)

	// Mesh retrieves an uploaded mesh by its part key.
	Mesh(key cache.CacheKey) (*Mesh, bool)

	// Unload drops a model and releases the GPU buffers of its meshes.
	//
	// Parameters:
	//   - key: the model identity
	//
	// Returns:
	//   - bool: true if the model was loaded
	Unload(key cache.CacheKey) bool

	// Keys returns the loaded model keys in sorted order.
	Keys() []cache.CacheKey

	// Materials returns the material storage models register their materials in.
	Materials() material.Storage
}

var _ Manager = &manager{}
var _ Lookup = &manager{}

// NewManager creates a Manager uploading through device and queue and registering materials in materials.
//
// Parameters:
//   - device: the device used for mesh buffers
//   - queue: the queue used for mesh uploads
//   - materials: the material storage
//
// Returns:
//   - Manager: the new manager
func NewManager(device gpu.Device, queue gpu.Queue, materials material.Storage) Manager {
	log := logger.Provide().Named("model")
	onCreate := func(label string) func(cache.CacheKey, time.Duration) {
		return func(key cache.CacheKey, elapsed time.Duration) {
			log.Debug("resource created",
				zap.String("cache", label),
				zap.String("key", key.String()),
				zap.Uint64("hash", key.Hash()),
				zap.Duration("elapsed", elapsed),
			)
		}
	}
	return &manager{
		device:    device,
		queue:     queue,
		materials: materials,
		models:    cache.NewCache(cache.WithLabel[Model]("model"), cache.WithOnCreate[Model](onCreate("model"))),
		meshes:    cache.NewCache(cache.WithLabel[*Mesh]("mesh"), cache.WithOnCreate[*Mesh](onCreate("mesh"))),
		log:       log,
	}
}

func (m *manager) Load(key cache.CacheKey, supplier Supplier) (Model, error) {
	return m.models.GetOrCreate(key, func() (Model, error) {
		src, err := supplier(key)
		if err != nil {
			return nil, fmt.Errorf("supply model %s: %w", key, err)
		}
		if len(src.Parts) == 0 {
			return nil, fmt.Errorf("supply model %s: no parts", key)
		}

		var uploaded []cache.CacheKey
		parts, err := m.buildParts(key, src, &uploaded)
		if err != nil {
			m.discardMeshes(uploaded)
			return nil, err
		}

		mdl := NewModel(key, WithParts(parts...))
		m.log.Info("model loaded",
			zap.String("model", key.String()),
			zap.Int("parts", len(parts)),
			zap.Float32("radius", mdl.BoundingRadius()),
		)
		return mdl, nil
	})
}

// buildParts uploads each part's mesh and registers its material. Mesh keys uploaded by this call are appended to
// uploaded so a failure can roll them back.
func (m *manager) buildParts(key cache.CacheKey, src Source, uploaded *[]cache.CacheKey) ([]Part, error) {
	parts := make([]Part, 0, len(src.Parts))
	for i, sp := range src.Parts {
		name := sp.Name
		if name == "" {
			name = fmt.Sprintf("part%d", i)
		}
		meshKey := key.Join(name)
		data := sp.Data
		mesh, err := m.meshes.GetOrCreate(meshKey, func() (*Mesh, error) {
			mesh, err := UploadMesh(m.device, m.queue, meshKey, data)
			if err == nil {
				*uploaded = append(*uploaded, meshKey)
			}
			return mesh, err
		})
		if err != nil {
			return nil, err
		}

		matKey := sp.MaterialKey
		if matKey.IsZero() {
			matKey = meshKey.Join("material")
		}
		mat, err := m.materials.Store(matKey, sp.Material...)
		if err != nil {
			return nil, fmt.Errorf("material %s: %w", matKey, err)
		}
		parts = append(parts, Part{Mesh: mesh, Material: mat})
	}
	return parts, nil
}

func (m *manager) discardMeshes(keys []cache.CacheKey) {
	for _, k := range keys {
		if mesh, ok := m.meshes.Remove(k); ok {
			mesh.Release()
		}
	}
	if len(keys) > 0 {
		m.log.Debug("rolled back partial model", zap.Int("meshes", len(keys)))
	}
}

func (m *manager) Get(key cache.CacheKey) (Model, bool) {
	return m.models.Get(key)
}

func (m *manager) Mesh(key cache.CacheKey) (*Mesh, bool) {
	return m.meshes.Get(key)
}

func (m *manager) Unload(key cache.CacheKey) bool {
	mdl, ok := m.models.Remove(key)
	if !ok {
		return false
	}
	for _, p := range mdl.Parts() {
		if p.Mesh == nil {
			continue
		}
		if mesh, ok := m.meshes.Remove(p.Mesh.Key); ok {
			mesh.Release()
		}
	}
	return true
}

func (m *manager) Keys() []cache.CacheKey {
	return m.models.Keys()
}

func (m *manager) Materials() material.Storage {
	return m.materials
}
