package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-voxel/engine"
	"github.com/Carmen-Shannon/oxy-voxel/engine/assets"
	"github.com/Carmen-Shannon/oxy-voxel/engine/camera"
	"github.com/Carmen-Shannon/oxy-voxel/engine/config"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/light"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-voxel/engine/text"
	"github.com/Carmen-Shannon/oxy-voxel/engine/window"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oxy",
		Short: "Real-time WebGPU voxel engine",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scenesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type runOptions struct {
	profile    bool
	target     string
	configPath string
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a window and render a scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.profile, "profile", false, "log frame statistics every second at debug level")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "sandbox", "scene to load (see `oxy scenes`)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	return cmd
}

func scenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the scenes run --target accepts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, s := range sceneTargets {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", s.name, s.description)
			}
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	target, err := findScene(opts.target)
	if err != nil {
		return err
	}

	level := cfg.Log.LoggerLevel()
	if opts.profile {
		level = logger.LevelDebug
	}
	log := logger.New(level)
	defer func() { _ = log.Sync() }()

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title+" - "+target.name),
		window.WithWidth(cfg.Window.Width),
		window.WithHeight(cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer func() { _ = win.Close() }()

	r, err := renderer.NewWGPURenderer(win.SurfaceDescriptor(),
		renderer.WithPresentMode(renderer.ParsePresentMode(cfg.Render.PresentMode)),
		renderer.WithMSAA(renderer.ParseMSAA(cfg.Render.MSAA)),
		renderer.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer r.Release()

	loader, err := assets.NewLoader(assets.WithRoot(cfg.Assets.Root))
	if err != nil {
		return err
	}

	materials := material.NewStorage()
	graphOptions := []renderer.GraphBuilderOption{
		renderer.WithShaderLibrary(shader.NewLibrary(shader.WithReader(loader), shader.WithLogger(log.Named("shaders")))),
		renderer.WithMaterialStorage(materials),
		renderer.WithTextureCache(renderer.NewTextureCache(r.Device(), r.Queue(), loader)),
		renderer.WithClearColor(cfg.Render.ClearColor),
		renderer.WithGraphLogger(log),
	}
	if cfg.Render.Environment != "" {
		graphOptions = append(graphOptions,
			renderer.WithEnvironment(loader, cfg.Render.Environment, uint32(cfg.Render.EnvironmentSize)))
	}
	graph := renderer.NewGraph(r, graphOptions...)

	setup := &sceneSetup{
		cfg:       cfg,
		world:     ecs.NewWorld(),
		models:    model.NewManager(r.Device(), r.Queue(), materials),
		materials: materials,
		log:       log,
	}
	sceneOpts, err := target.build(setup)
	if err != nil {
		return fmt.Errorf("build scene %s: %w", target.name, err)
	}

	controllerOpts := []camera.CameraControllerOption{camera.WithRadiusBounds(1, cfg.Camera.Far)}
	if cfg.Camera.FreeLook {
		controllerOpts = append(controllerOpts, camera.WithFreeLook())
	}
	cam := camera.NewCamera(
		camera.WithFov(cfg.Camera.FovyRadians()),
		camera.WithNear(cfg.Camera.Near),
		camera.WithFar(cfg.Camera.Far),
		camera.WithController(camera.NewOrbitController(cfg.Camera.PositionVec(), cfg.Camera.TargetVec(), controllerOpts...)),
	)

	engineOpts := []engine.EngineBuilderOption{
		engine.WithWindow(win),
		engine.WithGraph(graph),
		engine.WithGPU(r.Device(), r.Queue()),
		engine.WithWorld(setup.world),
		engine.WithModels(setup.models),
		engine.WithCamera(cam),
		engine.WithLight(light.NewOrbitingLight()),
		engine.WithOverlay(text.NewOverlay(win.Width(), win.Height())),
		engine.WithTicker(cfg.Engine.TickEnabled),
		engine.WithTickRate(float64(cfg.Engine.TickRate)),
		engine.WithFrameLimit(cfg.Engine.FrameLimit),
		engine.WithSpin(cfg.Engine.Spin),
		engine.WithProfiling(opts.profile),
		engine.WithLogger(log),
	}
	if cfg.Assets.Watch {
		w, err := assets.NewWatcher(loader.Root(), log)
		if err != nil {
			log.Warn("asset hot reload disabled", zap.String("root", loader.Root()), zap.Error(err))
		} else {
			engineOpts = append(engineOpts, engine.WithWatcher(w))
		}
	}

	eng, err := engine.NewEngine(append(engineOpts, sceneOpts...)...)
	if err != nil {
		return err
	}
	log.Info("starting",
		zap.String("scene", target.name),
		zap.String("session", eng.SessionID()),
		zap.Int("entities", setup.world.EntityCount()),
	)
	return eng.Run(ctx)
}
