package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can
// tell configuration mistakes apart from runtime errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// SaveMode selects how input/target pairs are laid out on disk.
type SaveMode string

const (
	SaveOutputOnly SaveMode = "output_only" // Only the target image.
	SaveSplit      SaveMode = "split"       // Input and target in parallel A/B trees.
	SaveCombined   SaveMode = "combined"    // Target and input side by side in one image.
)

// Config holds every setting of a dataset run. It is seeded by Load from
// defaults and the environment, optionally overridden by a YAML preset and
// finally by command line flags.
type Config struct {
	// Input / output.
	InputSrc  string   `yaml:"input_src"`
	OutputDir string   `yaml:"output_dir"`
	PctTest   float64  `yaml:"pct_test"`
	SaveMode  SaveMode `yaml:"save_mode"`
	SaveExt   string   `yaml:"save_ext"` // "png" or "jpg".

	// Sampling.
	MaxNumImages int   `yaml:"max_num_images"` // 0 means all frames.
	Shuffle      bool  `yaml:"shuffle"`
	MinDim       int   `yaml:"min_dim"`
	Seed         int64 `yaml:"seed"` // 0 draws a time based seed.

	// Augmentation.
	Width      int     `yaml:"w"`
	Height     int     `yaml:"h"`
	NumPer     int     `yaml:"num_per"`
	Frac       float64 `yaml:"frac"`
	FracVary   float64 `yaml:"frac_vary"`
	MaxAngRot  float64 `yaml:"max_ang_rot"` // Degrees.
	MaxStretch float64 `yaml:"max_stretch"`
	Centered   bool    `yaml:"centered"`

	// Actions.
	Actions         []string `yaml:"actions"`
	TargetFaceImage string   `yaml:"target_face_image"`
	FaceCrop        float64  `yaml:"face_crop"` // 0 disables the face crop.
	FaceCropLerp    float64  `yaml:"face_crop_lerp"`

	// Model assets.
	HEDModelPath     string `yaml:"hed_model_path"`
	SegmentModelPath string `yaml:"segment_model_path"`
	FaceCascadePath  string `yaml:"face_cascade_path"`
	FaceEmbedderPath string `yaml:"face_embedder_path"`

	// Behavior.
	Clean    bool `yaml:"clean"`
	FailFast bool `yaml:"fail_fast"`

	// Logging, manifest and progress.
	LogDirectory string `yaml:"log_dir"`
	Verbose      bool   `yaml:"verbose"`
	Quiet        bool   `yaml:"quiet"`
	ManifestPath string `yaml:"manifest"`
	ProgressAddr string `yaml:"progress_addr"`

	// Set from flags only.
	ConfigFile  string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

// DefaultConfig returns the built-in defaults, before the environment is read.
func DefaultConfig() Config {
	return Config{
		PctTest:          0,
		SaveMode:         SaveOutputOnly,
		SaveExt:          "png",
		Width:            256,
		Height:           256,
		NumPer:           1,
		Frac:             1.0,
		FaceCropLerp:     1.0,
		HEDModelPath:     filepath.Join(".", "data", "hed.onnx"),
		SegmentModelPath: filepath.Join(".", "data", "segmentation.onnx"),
		FaceCascadePath:  filepath.Join(".", "data", "haarcascade_frontalface_default.xml"),
		FaceEmbedderPath: filepath.Join(".", "data", "nn4.small2.v1.t7"),
		LogDirectory:     filepath.Join(".", "logs"),
	}
}

// Load returns the defaults overridden by environment variables. A .env file
// in the working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.HEDModelPath = getEnv("HED_MODEL_PATH", cfg.HEDModelPath)
	cfg.SegmentModelPath = getEnv("SEGMENT_MODEL_PATH", cfg.SegmentModelPath)
	cfg.FaceCascadePath = getEnv("FACE_CASCADE_PATH", cfg.FaceCascadePath)
	cfg.FaceEmbedderPath = getEnv("FACE_EMBEDDER_PATH", cfg.FaceEmbedderPath)
	cfg.LogDirectory = getEnv("LOG_DIR", cfg.LogDirectory)
	cfg.ManifestPath = getEnv("MANIFEST_PATH", cfg.ManifestPath)
	cfg.ProgressAddr = getEnv("PROGRESS_ADDR", cfg.ProgressAddr)
	cfg.Width = getEnvAsInt("OUTPUT_WIDTH", cfg.Width)
	cfg.Height = getEnvAsInt("OUTPUT_HEIGHT", cfg.Height)
	cfg.FaceCropLerp = getEnvAsFloat("FACE_CROP_LERP", cfg.FaceCropLerp)
	return &cfg
}

// Validate checks ranges and enums. Action names are validated by the action
// registry, which owns the list of known actions.
func (c *Config) Validate() error {
	if c.InputSrc == "" {
		return invalid("input source is required")
	}
	if c.OutputDir == "" {
		return invalid("output directory is required")
	}
	if c.PctTest < 0 || c.PctTest >= 1 {
		return invalid("pct-test must be in [0, 1), got %g", c.PctTest)
	}

	switch c.SaveMode {
	case SaveOutputOnly, SaveSplit, SaveCombined:
		// valid
	default:
		return invalid("save-mode must be one of split, combined, output_only (got %q)", c.SaveMode)
	}
	switch c.SaveExt {
	case "png", "jpg":
		// valid
	default:
		return invalid("save-ext must be png or jpg (got %q)", c.SaveExt)
	}

	if c.MaxNumImages < 0 {
		return invalid("max-num-images must not be negative")
	}
	if c.MinDim < 0 {
		return invalid("min-dim must not be negative")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return invalid("output size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.NumPer < 1 {
		return invalid("num-per must be at least 1")
	}
	if c.Frac <= 0 || c.Frac > 1 {
		return invalid("frac must be in (0, 1], got %g", c.Frac)
	}
	if c.FracVary < 0 || c.Frac-c.FracVary <= 0 {
		return invalid("frac-vary must be >= 0 and smaller than frac")
	}
	if c.MaxAngRot < 0 {
		return invalid("max-ang-rot must not be negative")
	}
	if c.MaxStretch < 0 || c.MaxStretch >= 1 {
		return invalid("max-stretch must be in [0, 1), got %g", c.MaxStretch)
	}

	if len(c.Actions) == 0 {
		return invalid("at least one action is required (use none for augmentation only)")
	}
	if c.FaceCrop < 0 || c.FaceCrop > 1 {
		return invalid("face-crop must be in (0, 1] or 0 to disable, got %g", c.FaceCrop)
	}
	if c.FaceCropLerp <= 0 || c.FaceCropLerp > 1 {
		return invalid("face-crop-lerp must be in (0, 1], got %g", c.FaceCropLerp)
	}
	if c.TargetFaceImage != "" {
		if _, err := os.Stat(c.TargetFaceImage); err != nil {
			return invalid("target face image: %v", err)
		}
	}
	return nil
}

// UsesFaces reports whether the run needs the face detector.
func (c *Config) UsesFaces() bool {
	if c.FaceCrop > 0 {
		return true
	}
	for _, a := range c.Actions {
		if a == "face" {
			return true
		}
	}
	return false
}

// IncludeTest reports whether a test split is produced.
func (c *Config) IncludeTest() bool {
	return c.PctTest > 0
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
