package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.InputSrc = "in"
	cfg.OutputDir = "out"
	cfg.Actions = []string{"none"}
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing input", func(c *Config) { c.InputSrc = "" }},
		{"missing output", func(c *Config) { c.OutputDir = "" }},
		{"negative pct-test", func(c *Config) { c.PctTest = -0.1 }},
		{"pct-test of one", func(c *Config) { c.PctTest = 1 }},
		{"unknown save mode", func(c *Config) { c.SaveMode = "tiles" }},
		{"unknown extension", func(c *Config) { c.SaveExt = "gif" }},
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"zero num-per", func(c *Config) { c.NumPer = 0 }},
		{"frac above one", func(c *Config) { c.Frac = 1.5 }},
		{"frac-vary too large", func(c *Config) { c.Frac = 0.5; c.FracVary = 0.5 }},
		{"stretch of one", func(c *Config) { c.MaxStretch = 1 }},
		{"no actions", func(c *Config) { c.Actions = nil }},
		{"face crop above one", func(c *Config) { c.FaceCrop = 2 }},
		{"zero lerp", func(c *Config) { c.FaceCropLerp = 0 }},
		{"missing target face", func(c *Config) { c.TargetFaceImage = "/does/not/exist.png" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}
}

func TestUsesFaces(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.UsesFaces())

	cfg.Actions = []string{"trace", "face"}
	assert.True(t, cfg.UsesFaces())

	cfg.Actions = []string{"trace"}
	cfg.FaceCrop = 0.4
	assert.True(t, cfg.UsesFaces())
}

func TestParseFlags(t *testing.T) {
	cfg := DefaultConfig()
	err := ParseFlags(&cfg, []string{
		"--input", "movie.mp4",
		"--output", "dataset",
		"--action", "quantize, Trace",
		"--save-mode", "combined",
		"--pct-test", "0.2",
		"--num-per", "3",
		"--shuffle",
		"-w", "512",
	})
	require.NoError(t, err)

	assert.Equal(t, "movie.mp4", cfg.InputSrc)
	assert.Equal(t, "dataset", cfg.OutputDir)
	assert.Equal(t, []string{"quantize", "trace"}, cfg.Actions)
	assert.Equal(t, SaveCombined, cfg.SaveMode)
	assert.Equal(t, 0.2, cfg.PctTest)
	assert.Equal(t, 3, cfg.NumPer)
	assert.True(t, cfg.Shuffle)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 256, cfg.Height)
}

func TestParseFlags_InvalidSaveMode(t *testing.T) {
	cfg := DefaultConfig()
	err := ParseFlags(&cfg, []string{"--save-mode", "mosaic"})
	require.Error(t, err)
}

func TestParseFlags_Help(t *testing.T) {
	cfg := DefaultConfig()
	err := ParseFlags(&cfg, []string{"--help"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseFlags_PresetThenFlags(t *testing.T) {
	dir := t.TempDir()
	preset := filepath.Join(dir, "edges.yaml")
	content := "input_src: frames\noutput_dir: edges\nactions: [hed]\nnum_per: 4\nsave_mode: split\n"
	require.NoError(t, os.WriteFile(preset, []byte(content), 0o644))

	cfg := DefaultConfig()
	err := ParseFlags(&cfg, []string{"--config", preset, "--num-per", "2"})
	require.NoError(t, err)

	assert.Equal(t, preset, cfg.ConfigFile)
	assert.Equal(t, "frames", cfg.InputSrc)
	assert.Equal(t, []string{"hed"}, cfg.Actions)
	assert.Equal(t, SaveSplit, cfg.SaveMode)
	assert.Equal(t, 2, cfg.NumPer, "flag must override preset")
	assert.Equal(t, 256, cfg.Width, "keys absent from the preset keep their value")
}

func TestLoadPreset_Malformed(t *testing.T) {
	dir := t.TempDir()
	preset := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(preset, []byte("num_per: [oops"), 0o644))

	cfg := DefaultConfig()
	err := LoadPreset(preset, &cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HED_MODEL_PATH", "/models/hed.onnx")
	t.Setenv("OUTPUT_WIDTH", "128")
	t.Setenv("FACE_CROP_LERP", "not-a-number")

	cfg := Load()
	assert.Equal(t, "/models/hed.onnx", cfg.HEDModelPath)
	assert.Equal(t, 128, cfg.Width)
	assert.Equal(t, 1.0, cfg.FaceCropLerp)
}

func TestSplitActions(t *testing.T) {
	assert.Equal(t, []string{"quantize", "trace"}, SplitActions("quantize,trace"))
	assert.Equal(t, []string{""}, SplitActions(""))
	assert.Equal(t, []string{"hed", "simplify"}, SplitActions(" HED , simplify "))
}
