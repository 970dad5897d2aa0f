package model

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() MeshData {
	n := [3]float32{0, 0, 1}
	return MeshData{
		Vertices: []Vertex{
			{Position: [3]float32{-1, -1, 0}, TexCoord: [2]float32{0, 0}, Normal: n},
			{Position: [3]float32{1, -1, 0}, TexCoord: [2]float32{1, 0}, Normal: n},
			{Position: [3]float32{1, 1, 0}, TexCoord: [2]float32{1, 1}, Normal: n},
			{Position: [3]float32{-1, 1, 0}, TexCoord: [2]float32{0, 1}, Normal: n},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestRecordSizes(t *testing.T) {
	var v Vertex
	var r InstanceRecord
	assert.Equal(t, VertexSize, v.Size())
	assert.Len(t, v.Marshal(), VertexSize)
	assert.Equal(t, InstanceRecordSize, r.Size())
	assert.Len(t, r.AppendTo(nil), InstanceRecordSize)
}

func TestInstanceRecordLayout(t *testing.T) {
	m := mgl32.Translate3D(3, 4, 5)
	r := NewInstanceRecord(m, mgl32.Ident4(), 7)
	buf := r.AppendTo(nil)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(3), f(48))
	assert.Equal(t, float32(5), f(56))
	assert.Equal(t, float32(1), f(64))
	assert.Equal(t, float32(1), f(64+16+4))
	assert.Equal(t, float32(1), f(112))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[136:]))
	assert.Equal(t, mgl32.Vec3{3, 4, 5}, r.Translation())
}

func TestComputeTangents(t *testing.T) {
	data := quad()
	data.ComputeTangents()
	for _, v := range data.Vertices {
		assert.InDelta(t, 1, v.Tangent[0], 1e-5)
		assert.InDelta(t, 0, v.Tangent[1], 1e-5)
		assert.InDelta(t, 0, v.Tangent[2], 1e-5)
	}
}

func TestComputeTangentsDegenerateUV(t *testing.T) {
	data := quad()
	for i := range data.Vertices {
		data.Vertices[i].TexCoord = [2]float32{}
	}
	data.ComputeTangents()
	for _, v := range data.Vertices {
		tangent := mgl32.Vec3(v.Tangent)
		assert.InDelta(t, 1, tangent.Len(), 1e-5)
		assert.InDelta(t, 0, tangent.Dot(mgl32.Vec3(v.Normal)), 1e-5)
	}
}

func TestBounds(t *testing.T) {
	data := quad()
	b := data.Bounds()
	assert.Equal(t, mgl32.Vec3{-1, -1, 0}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, b.Max)
	assert.InDelta(t, math.Sqrt2, b.Radius(), 1e-5)
}

func TestUploadMesh(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}

	mesh, err := UploadMesh(device, queue, cache.NewCacheKey("quad"), quad())
	require.NoError(t, err)
	assert.True(t, mesh.Drawable())
	assert.Equal(t, uint32(4), mesh.VertexCount)
	assert.Equal(t, uint32(6), mesh.IndexCount)
	require.Len(t, queue.Writes, 2)
	assert.Equal(t, 4*VertexSize, queue.Writes[0].Size)
	assert.Equal(t, 24, queue.Writes[1].Size)

	_, err = UploadMesh(device, queue, cache.NewCacheKey("empty"), MeshData{})
	assert.Error(t, err)
}

func TestManagerLoadsOnce(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	mgr := NewManager(device, queue, material.NewStorage())

	calls := 0
	supplier := func(key cache.CacheKey) (Source, error) {
		calls++
		return Source{Parts: []SourcePart{{Name: "body", Data: quad()}}}, nil
	}

	key := cache.NewCacheKey("cube")
	first, err := mgr.Load(key, supplier)
	require.NoError(t, err)
	second, err := mgr.Load(key, supplier)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	require.Len(t, first.Parts(), 1)
	assert.Equal(t, uint32(0), first.Parts()[0].Material.Index())
	_, ok := mgr.Mesh(cache.NewCacheKey("cube_body"))
	assert.True(t, ok)
	assert.Equal(t, 1, mgr.Materials().Len())
}

func TestManagerSupplierFailureLeavesKeyAbsent(t *testing.T) {
	mgr := NewManager(&gputest.Device{}, &gputest.Queue{}, material.NewStorage())
	boom := errors.New("boom")

	_, err := mgr.Load(cache.NewCacheKey("cube"), func(cache.CacheKey) (Source, error) {
		return Source{}, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := mgr.Get(cache.NewCacheKey("cube"))
	assert.False(t, ok)
}

func TestManagerPartFailureRollsBackEarlierMeshes(t *testing.T) {
	device := &gputest.Device{}
	mgr := NewManager(device, &gputest.Queue{}, material.NewStorage())
	key := cache.NewCacheKey("crate")

	_, err := mgr.Load(key, func(cache.CacheKey) (Source, error) {
		return Source{Parts: []SourcePart{
			{Name: "body", Data: quad()},
			{Name: "lid"},
		}}, nil
	})
	require.Error(t, err)

	_, ok := mgr.Get(key)
	assert.False(t, ok)
	_, ok = mgr.Mesh(cache.NewCacheKey("crate_body"))
	assert.False(t, ok)
	require.Len(t, device.Created, 2)
	for _, b := range device.Created {
		assert.True(t, b.Released)
	}

	// A later supplier that succeeds uploads fresh buffers.
	mdl, err := mgr.Load(key, func(cache.CacheKey) (Source, error) {
		return Source{Parts: []SourcePart{{Name: "body", Data: quad()}}}, nil
	})
	require.NoError(t, err)
	assert.False(t, mdl.Parts()[0].Mesh.VertexBuffer.(*gputest.Buffer).Released)
}

func TestManagerUnloadReleasesMeshes(t *testing.T) {
	device := &gputest.Device{}
	mgr := NewManager(device, &gputest.Queue{}, material.NewStorage())
	key := cache.NewCacheKey("cube")
	_, err := mgr.Load(key, func(cache.CacheKey) (Source, error) {
		return Source{Parts: []SourcePart{{Data: quad()}}}, nil
	})
	require.NoError(t, err)

	assert.True(t, mgr.Unload(key))
	assert.False(t, mgr.Unload(key))
	for _, b := range device.Created {
		assert.True(t, b.Released)
	}
	assert.Empty(t, mgr.Keys())
}
