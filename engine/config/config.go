// Package config loads the bridge settings from YAML. Fields left out of a file keep their
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"gopkg.in/yaml.v3"
)

// DefaultPanel is the host panel the bridge renders into unless configured otherwise.
const DefaultPanel = "modelPanel4"

// Config holds every setting the bridge and the CLI read at startup.
type Config struct {
	// Panel is the host viewport panel whose size drives the frame graph.
	Panel string `yaml:"panel"`

	// DefaultTexture is pinned in the texture cache for the bridge lifetime. Empty disables it.
	DefaultTexture string `yaml:"defaultTexture,omitempty"`

	// PointLightRadius is the range given to every point light.
	PointLightRadius float32 `yaml:"pointLightRadius"`

	DefaultMaterial MaterialConfig `yaml:"defaultMaterial"`
	Texture         TextureConfig  `yaml:"texture"`
	Renderer        RendererConfig `yaml:"renderer"`
	Log             LogConfig      `yaml:"log"`
	Metrics         MetricsConfig  `yaml:"metrics"`
}

// MaterialConfig holds the constants of the DEFAULT material.
type MaterialConfig struct {
	Color     [3]float32 `yaml:"color"`
	Metallic  float32    `yaml:"metallic"`
	Roughness float32    `yaml:"roughness"`
}

// TextureConfig tunes texture uploads.
type TextureConfig struct {
	SRGB         bool `yaml:"srgb"`
	GenerateMips bool `yaml:"generateMips"`
	Workers      int  `yaml:"workers"`
}

// RendererConfig selects and sizes the rendering backend.
type RendererConfig struct {
	// Backend is "wgpu" or "null".
	Backend              string `yaml:"backend"`
	ForceFallbackAdapter bool   `yaml:"forceFallbackAdapter"`
	Width                int    `yaml:"width"`
	Height               int    `yaml:"height"`
}

// LogConfig sets the logger verbosity; 1 enables per-notification traces.
type LogConfig struct {
	Verbosity int `yaml:"verbosity"`
}

// MetricsConfig sets where the CLI serves /metrics. Empty disables the endpoint.
type MetricsConfig struct {
	Address string `yaml:"address,omitempty"`
}

// Default returns the built-in configuration.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Panel:            DefaultPanel,
		PointLightRadius: 20,
		DefaultMaterial: MaterialConfig{
			Color:     [3]float32{1, 1, 1},
			Metallic:  1,
			Roughness: 1,
		},
		Texture: TextureConfig{
			SRGB:    true,
			Workers: 4,
		},
		Renderer: RendererConfig{
			Backend: renderer.BackendTypeWGPU.String(),
			Width:   1280,
			Height:  720,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file cannot be read or is invalid
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
//
// Parameters:
//   - data: the YAML document, may be empty
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the document is malformed, has unknown fields or invalid values
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode: %w", err)
	}

	def := Default()
	cfg.Panel = common.Coalesce(cfg.Panel, def.Panel)
	cfg.Renderer.Backend = common.Coalesce(cfg.Renderer.Backend, def.Renderer.Backend)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
//
// Returns:
//   - error: the joined violations
func (c Config) Validate() error {
	var errs []error
	if c.PointLightRadius <= 0 {
		errs = append(errs, fmt.Errorf("pointLightRadius must be positive, got %v", c.PointLightRadius))
	}
	if c.Texture.Workers < 1 {
		errs = append(errs, fmt.Errorf("texture.workers must be at least 1, got %d", c.Texture.Workers))
	}
	if c.Renderer.Width <= 0 || c.Renderer.Height <= 0 {
		errs = append(errs, fmt.Errorf("renderer size must be positive, got %dx%d", c.Renderer.Width, c.Renderer.Height))
	}
	if _, err := c.Backend(); err != nil {
		errs = append(errs, err)
	}
	for i, v := range c.DefaultMaterial.Color {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("defaultMaterial.color[%d] out of range: %v", i, v))
		}
	}
	if c.DefaultMaterial.Metallic < 0 || c.DefaultMaterial.Metallic > 1 {
		errs = append(errs, fmt.Errorf("defaultMaterial.metallic out of range: %v", c.DefaultMaterial.Metallic))
	}
	if c.DefaultMaterial.Roughness < 0 || c.DefaultMaterial.Roughness > 1 {
		errs = append(errs, fmt.Errorf("defaultMaterial.roughness out of range: %v", c.DefaultMaterial.Roughness))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity))
	}
	return errors.Join(errs...)
}

// Backend returns the configured renderer backend.
func (c Config) Backend() (renderer.RendererBackendType, error) {
	return renderer.ParseBackendType(c.Renderer.Backend)
}

// LoadFlags returns the texture upload flags.
func (c Config) LoadFlags() texture.LoadFlags {
	var flags texture.LoadFlags
	if c.Texture.SRGB {
		flags |= texture.FlagSRGB
	}
	if c.Texture.GenerateMips {
		flags |= texture.FlagGenerateMips
	}
	return flags
}

// Marshal encodes the configuration as YAML.
//
// Returns:
//   - []byte: the document
//   - error: encoding failure
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
