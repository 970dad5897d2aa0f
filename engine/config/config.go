// Package config loads the engine configuration from YAML. Every field has a default, so an empty
// document or a missing section yields a runnable configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML document.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Engine  EngineConfig  `yaml:"engine"`
	Render  RenderConfig  `yaml:"render"`
	Camera  CameraConfig  `yaml:"camera"`
	Terrain TerrainConfig `yaml:"terrain"`
	Assets  AssetsConfig  `yaml:"assets"`
	Log     LogConfig     `yaml:"log"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// EngineConfig controls the frame loop. With TickEnabled the ticker requests draws at TickRate Hz;
// otherwise the loop draws once per iteration.
type EngineConfig struct {
	TickRate    int  `yaml:"tick_rate"`
	TickEnabled bool `yaml:"tick_enabled"`
	// FrameLimit stops the engine after this many frames. Zero runs until the window closes.
	FrameLimit uint64 `yaml:"frame_limit"`
	Spin       bool   `yaml:"spin"`
}

type RenderConfig struct {
	// PresentMode is one of fifo, mailbox or immediate.
	PresentMode string     `yaml:"present_mode"`
	MSAA        int        `yaml:"msaa"`
	ClearColor  [4]float64 `yaml:"clear_color"`
	// Environment is a Radiance .hdr map under the assets root drawn as the sky. Empty keeps the gradient sky.
	Environment     string `yaml:"environment"`
	EnvironmentSize int    `yaml:"environment_size"`
}

// CameraConfig places the initial camera. Fovy is in degrees.
type CameraConfig struct {
	Fovy     float32    `yaml:"fovy"`
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Position [3]float32 `yaml:"position"`
	Target   [3]float32 `yaml:"target"`
	FreeLook bool       `yaml:"free_look"`
}

type TerrainConfig struct {
	ViewDistance  int32  `yaml:"view_distance"`
	DefaultMedium string `yaml:"default_medium"`
}

type AssetsConfig struct {
	Root  string `yaml:"root"`
	Watch bool   `yaml:"watch"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var presentModes = map[string]struct{}{"fifo": {}, "mailbox": {}, "immediate": {}}

// maxEnvironmentSize is the default WebGPU limit on 2D texture edges.
const maxEnvironmentSize = 8192

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Window: WindowConfig{Title: "oxy-voxel", Width: 1280, Height: 720},
		Engine: EngineConfig{TickRate: 60, TickEnabled: true},
		Render: RenderConfig{PresentMode: "fifo", MSAA: 1, ClearColor: [4]float64{0.1, 0.2, 0.3, 1}, EnvironmentSize: 1080},
		Camera: CameraConfig{
			Fovy:     45,
			Near:     0.1,
			Far:      100,
			Position: [3]float32{0, 20, 40},
		},
		Terrain: TerrainConfig{ViewDistance: 4, DefaultMedium: "air"},
		Assets:  AssetsConfig{Root: "assets", Watch: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the configuration, defaults filled in
//   - error: error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML over the defaults and validates the result. Unknown keys are rejected.
//
// Parameters:
//   - r: the YAML document
//
// Returns:
//   - Config: the configuration
//   - error: error if the document is malformed or invalid
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Engine.TickEnabled && c.Engine.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick_rate %d must be positive when ticking", c.Engine.TickRate))
	}
	if _, ok := presentModes[strings.ToLower(c.Render.PresentMode)]; !ok {
		errs = append(errs, fmt.Errorf("render.present_mode %q is not fifo, mailbox or immediate", c.Render.PresentMode))
	}
	if c.Render.MSAA != 1 && c.Render.MSAA != 4 {
		errs = append(errs, fmt.Errorf("render.msaa %d must be 1 or 4", c.Render.MSAA))
	}
	if c.Render.Environment != "" {
		if !strings.EqualFold(path.Ext(c.Render.Environment), ".hdr") {
			errs = append(errs, fmt.Errorf("render.environment %q must be a .hdr file", c.Render.Environment))
		}
		if c.Render.EnvironmentSize <= 0 || c.Render.EnvironmentSize > maxEnvironmentSize {
			errs = append(errs, fmt.Errorf("render.environment_size %d must be in (0, %d]", c.Render.EnvironmentSize, maxEnvironmentSize))
		}
	}
	if c.Camera.Fovy <= 0 || c.Camera.Fovy >= 180 {
		errs = append(errs, fmt.Errorf("camera.fovy %.1f must be in (0, 180)", c.Camera.Fovy))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera near %.3f and far %.3f must satisfy 0 < near < far", c.Camera.Near, c.Camera.Far))
	}
	if c.Terrain.ViewDistance < 0 {
		errs = append(errs, fmt.Errorf("terrain.view_distance %d must not be negative", c.Terrain.ViewDistance))
	}
	if _, err := terrain.ParseMedium(c.Terrain.DefaultMedium); err != nil {
		errs = append(errs, fmt.Errorf("terrain.default_medium: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// FovyRadians returns the camera field of view in radians.
func (c CameraConfig) FovyRadians() float32 {
	return mgl32.DegToRad(c.Fovy)
}

// PositionVec returns the camera position as a vector.
func (c CameraConfig) PositionVec() mgl32.Vec3 {
	return mgl32.Vec3(c.Position)
}

// TargetVec returns the camera target as a vector.
func (c CameraConfig) TargetVec() mgl32.Vec3 {
	return mgl32.Vec3(c.Target)
}

// Medium returns the parsed default terrain medium. Validate guarantees it parses.
func (c TerrainConfig) Medium() terrain.Medium {
	m, _ := terrain.ParseMedium(c.DefaultMedium)
	return m
}

// LoggerLevel returns the parsed log level.
func (c LogConfig) LoggerLevel() logger.Level {
	return logger.ParseLevel(c.Level)
}
