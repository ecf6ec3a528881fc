package config

// Flags mirror the YAML keys with dashes instead of underscores. The preset
// named by --config is loaded before the flag set is built so its values
// become the flag defaults and explicit flags still win.

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags applies the preset file (if any) and then the command line
// arguments to cfg. It returns flag.ErrHelp when --help was given; -h is
// the output height.
func ParseFlags(cfg *Config, args []string) error {
	if path := lookupFlag(args, "config"); path != "" {
		if err := LoadPreset(path, cfg); err != nil {
			return err
		}
		cfg.ConfigFile = path
	}

	fs := flag.NewFlagSet("pairgen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printUsage(fs) }

	var ignoredConfig string
	fs.StringVar(&ignoredConfig, "config", cfg.ConfigFile, "YAML preset applied before flags")

	defineIOFlags(fs, cfg)
	defineSamplingFlags(fs, cfg)
	defineAugmentationFlags(fs, cfg)
	defineActionFlags(fs, cfg)
	defineRunFlags(fs, cfg)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments: %s", ErrInvalidConfig, strings.Join(fs.Args(), " "))
	}
	return nil
}

func defineIOFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.InputSrc, "input", cfg.InputSrc, "Directory of input images or a movie file")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Where to put output images")
	fs.Float64Var(&cfg.PctTest, "pct-test", cfg.PctTest, "Fraction of samples that go to the test set")
	fs.Var(&saveModeValue{&cfg.SaveMode}, "save-mode", "split | combined | output_only")
	fs.StringVar(&cfg.SaveExt, "save-ext", cfg.SaveExt, "Image save extension: png | jpg")
}

func defineSamplingFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.MaxNumImages, "max-num-images", cfg.MaxNumImages, "Maximum number of frames to take (0 = all)")
	fs.BoolVar(&cfg.Shuffle, "shuffle", cfg.Shuffle, "Sample frames at random instead of taking the first ones")
	fs.IntVar(&cfg.MinDim, "min-dim", cfg.MinDim, "Skip frames narrower or shorter than this")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for sampling and augmentation (0 = time based)")
}

func defineAugmentationFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Width, "w", cfg.Width, "Output image width")
	fs.IntVar(&cfg.Height, "h", cfg.Height, "Output image height")
	fs.IntVar(&cfg.NumPer, "num-per", cfg.NumPer, "Augmented copies per sampled frame")
	fs.Float64Var(&cfg.Frac, "frac", cfg.Frac, "Cropping ratio before resizing")
	fs.Float64Var(&cfg.FracVary, "frac-vary", cfg.FracVary, "Cropping ratio variation")
	fs.Float64Var(&cfg.MaxAngRot, "max-ang-rot", cfg.MaxAngRot, "Maximum rotation angle in degrees")
	fs.Float64Var(&cfg.MaxStretch, "max-stretch", cfg.MaxStretch, "Maximum stretching factor (0 = none)")
	fs.BoolVar(&cfg.Centered, "centered", cfg.Centered, "Use centered crops instead of random ones")
}

func defineActionFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(&actionListValue{&cfg.Actions}, "action", "Comma separated actions: none,quantize,trace,hed,segment,simplify,face")
	fs.StringVar(&cfg.TargetFaceImage, "target-face-image", cfg.TargetFaceImage, "Image of the face to extract (default: first face found)")
	fs.Float64Var(&cfg.FaceCrop, "face-crop", cfg.FaceCrop, "Crop around the face first, face filling this fraction of the crop (0 = off)")
	fs.Float64Var(&cfg.FaceCropLerp, "face-crop-lerp", cfg.FaceCropLerp, "Smoothing of the face crop between frames (1 = none)")
	fs.StringVar(&cfg.HEDModelPath, "hed-model", cfg.HEDModelPath, "HED edge detection model")
	fs.StringVar(&cfg.SegmentModelPath, "segment-model", cfg.SegmentModelPath, "Semantic segmentation model")
	fs.StringVar(&cfg.FaceCascadePath, "face-cascade", cfg.FaceCascadePath, "Haar cascade for face detection")
	fs.StringVar(&cfg.FaceEmbedderPath, "face-embedder", cfg.FaceEmbedderPath, "Torch face embedding model")
}

func defineRunFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Clean, "clean", cfg.Clean, "Remove the output directory before writing")
	fs.BoolVar(&cfg.FailFast, "fail-fast", cfg.FailFast, "Stop at the first frame that fails")
	fs.StringVar(&cfg.LogDirectory, "log-dir", cfg.LogDirectory, "Directory for log files")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Same as --verbose")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Hide the progress bar")
	fs.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "SQLite manifest of written samples (empty = off)")
	fs.StringVar(&cfg.ProgressAddr, "progress-addr", cfg.ProgressAddr, "Serve live progress and metrics on this address (empty = off)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
}

// lookupFlag finds the value of -name/--name in args without parsing the
// rest, so the preset can be applied before the real flag set exists.
func lookupFlag(args []string, name string) string {
	for i, a := range args {
		trimmed := strings.TrimLeft(a, "-")
		if trimmed == a {
			continue
		}
		if trimmed == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(trimmed, name+"=") {
			return strings.TrimPrefix(trimmed, name+"=")
		}
	}
	return ""
}

// SplitActions turns "quantize, trace" into ["quantize", "trace"]. An empty
// element is kept as "" which the registry treats like none.
func SplitActions(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "pairgen builds paired image datasets for image-to-image translation.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  pairgen --input <dir|movie> --output <dir> --action <a,b,...> [OPTIONS]")
	fmt.Fprintln(os.Stderr)
	fs.PrintDefaults()
}

// flag.Value adapters.

type saveModeValue struct{ p *SaveMode }

func (s *saveModeValue) String() string {
	if s.p == nil {
		return ""
	}
	return string(*s.p)
}

func (s *saveModeValue) Set(v string) error {
	switch SaveMode(strings.ToLower(v)) {
	case SaveOutputOnly:
		*s.p = SaveOutputOnly
	case SaveSplit:
		*s.p = SaveSplit
	case SaveCombined:
		*s.p = SaveCombined
	default:
		return fmt.Errorf("invalid save mode %q (use split, combined or output_only)", v)
	}
	return nil
}

type actionListValue struct{ p *[]string }

func (a *actionListValue) String() string {
	if a.p == nil {
		return ""
	}
	return strings.Join(*a.p, ",")
}

func (a *actionListValue) Set(v string) error {
	*a.p = SplitActions(v)
	return nil
}
