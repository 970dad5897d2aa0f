package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
	"go.uber.org/zap"
)

// DefaultEnvironmentSize is the edge length in texels of each projected cube face.
const DefaultEnvironmentSize uint32 = 1080

// environmentWorkgroupSize matches @workgroup_size of the projection shader.
const environmentWorkgroupSize = 16

// Pipeline keys of the environment map.
const (
	EquirectPipelineKey    = "equirect"
	EnvironmentPipelineKey = "environment"
)

var (
	// ProjectionLayout is group 0 of the projection compute shader: the equirectangular source and the cube faces
	// it writes.
	ProjectionLayout = pipeline.BindGroupLayout{
		Key: "projection",
		Entries: []pipeline.Binding{
			{Binding: 0, Type: pipeline.BindingUnfilterableTexture, Visibility: pipeline.VisibilityCompute},
			{Binding: 1, Type: pipeline.BindingStorageTexture, Visibility: pipeline.VisibilityCompute, Format: gpu.TextureFormatRGBA16Float},
		},
	}

	// EnvironmentLayout is group 1 of the environment sky shader: the cube map and its sampler.
	EnvironmentLayout = pipeline.BindGroupLayout{
		Key: "environment",
		Entries: []pipeline.Binding{
			{Binding: 0, Type: pipeline.BindingCubeTexture, Visibility: pipeline.VisibilityFragment},
			{Binding: 1, Type: pipeline.BindingSampler, Visibility: pipeline.VisibilityFragment},
		},
	}
)

// EnvironmentSource reads the bytes of an environment map. assets.Loader satisfies it.
type EnvironmentSource interface {
	ReadBytes(rel string) ([]byte, error)
}

// environment is a Radiance map projected once onto a cube and sampled by the sky draw.
type environment struct {
	source EnvironmentSource
	path   string
	size   uint32

	equirect gpu.Texture
	cube     gpu.Texture

	projectionGroup bind_group_provider.BindGroupProvider
	group           bind_group_provider.BindGroupProvider
}

func (e *environment) ready() bool {
	return e != nil && e.group != nil
}

// workgroups returns the dispatch size covering every texel of the six faces.
func (e *environment) workgroups() [3]uint32 {
	n := (e.size + environmentWorkgroupSize - 1) / environmentWorkgroupSize
	return [3]uint32{n, n, gpu.CubeFaces}
}

func (e *environment) release() {
	for _, bg := range []bind_group_provider.BindGroupProvider{e.projectionGroup, e.group} {
		if bg != nil {
			bg.Release()
		}
	}
	for _, tex := range []gpu.Texture{e.equirect, e.cube} {
		if tex != nil {
			tex.Release()
		}
	}
	e.projectionGroup, e.group, e.equirect, e.cube = nil, nil, nil, nil
}

// initEnvironmentLocked decodes the configured map, projects it onto the cube and prepares the sky bind group.
// Any failure leaves the environment unset and the gradient sky in use. Caller must hold the mutex.
func (g *graph) initEnvironmentLocked() {
	if g.env == nil {
		return
	}
	if err := g.loadEnvironmentLocked(); err != nil {
		g.env.release()
		g.log.Warn("environment map unavailable, using gradient sky", zap.String("path", g.env.path), zap.Error(err))
		return
	}
	g.log.Info("environment map projected", zap.String("path", g.env.path), zap.Uint32("size", g.env.size))
}

func (g *graph) loadEnvironmentLocked() error {
	env := g.env
	if env.source == nil || env.path == "" {
		return errors.New("no environment source")
	}
	data, err := env.source.ReadBytes(env.path)
	if err != nil {
		return err
	}
	img, err := common.DecodeHDR(env.path, data)
	if err != nil {
		return err
	}

	device := g.renderer.Device()
	if env.equirect, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:       "environment_equirect",
		Width:       img.Width,
		Height:      img.Height,
		Format:      gpu.TextureFormatRGBA32Float,
		Usage:       gpu.TextureUsageSampled | gpu.TextureUsageCopyDst,
		SampleCount: 1,
	}); err != nil {
		return err
	}
	if err = g.renderer.Queue().WriteTexture(env.equirect, img); err != nil {
		return err
	}
	if env.cube, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:       "environment_cube",
		Width:       env.size,
		Height:      env.size,
		Format:      gpu.TextureFormatRGBA16Float,
		Usage:       gpu.TextureUsageStorage | gpu.TextureUsageSampled,
		SampleCount: 1,
		Layers:      gpu.CubeFaces,
		Cube:        true,
	}); err != nil {
		return err
	}

	pipelines := make([]pipeline.Pipeline, 0, 2)
	for _, key := range []string{EquirectPipelineKey, EnvironmentPipelineKey} {
		p, buildErr := g.buildPipelineLocked(key)
		if buildErr != nil {
			return buildErr
		}
		pipelines = append(pipelines, p)
	}
	if err = g.renderer.RegisterPipelines(pipelines...); err != nil {
		return err
	}

	if env.projectionGroup, err = g.renderer.CreateBindGroup(ProjectionLayout, "environment_projection",
		BindGroupEntry{Binding: 0, Texture: env.equirect},
		BindGroupEntry{Binding: 1, Texture: env.cube},
	); err != nil {
		return err
	}
	if err = g.projectEnvironmentLocked(); err != nil {
		return err
	}
	env.group, err = g.renderer.CreateBindGroup(EnvironmentLayout, "environment",
		BindGroupEntry{Binding: 0, Texture: env.cube},
		BindGroupEntry{Binding: 1, Sampler: g.sampler},
	)
	return err
}

// projectEnvironmentLocked writes every cube face from the equirectangular source.
func (g *graph) projectEnvironmentLocked() error {
	if err := g.renderer.DispatchCompute(EquirectPipelineKey,
		[]bind_group_provider.BindGroupProvider{g.env.projectionGroup}, g.env.workgroups()); err != nil {
		return fmt.Errorf("project %s: %w", g.env.path, err)
	}
	return nil
}

// skyLocked draws the environment cube when one is projected, otherwise the gradient sky.
func (g *graph) skyLocked(pass gpu.RenderPass) {
	if !g.env.ready() {
		g.fullScreenLocked(pass, SkyboxPipelineKey, g.frameGroup)
		return
	}
	p, ok := g.renderer.Pipeline(EnvironmentPipelineKey)
	if !ok || g.frameGroup == nil {
		return
	}
	pass.SetPipeline(p)
	pass.SetBindGroup(0, g.frameGroup)
	pass.SetBindGroup(1, g.env.group)
	pass.Draw(3, 1)
}
