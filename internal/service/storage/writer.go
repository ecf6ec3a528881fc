package storage

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"pairgen/internal/config"
	"pairgen/internal/model"
	"pairgen/internal/repository"
	"pairgen/internal/service/ai"
	"pairgen/internal/service/crop"
	"pairgen/internal/service/sampling"

	"gocv.io/x/gocv"
)

// Record is one (input, target) pair ready to be written.
type Record struct {
	Index     int // Sample index of the source frame.
	Variant   int
	FrameName string
	Label     sampling.Label
	Input     gocv.Mat
	Target    gocv.Mat
	Window    crop.Box // Where the input was cut from, for the manifest.
}

// Written describes the files produced for one record.
type Written struct {
	Name       string
	Label      sampling.Label
	InputPath  string // Empty unless the input was written to its own file.
	TargetPath string
}

type encodeFunc func(ext gocv.FileExt, img gocv.Mat) ([]byte, error)

// Writer persists samples according to the save mode. All files of one
// sample are staged to temporary files and only renamed into place once
// every file encoded; on any failure nothing of the sample remains.
type Writer struct {
	layout  *Layout
	mode    config.SaveMode
	ext     string
	outW    int
	outH    int
	numPer  int
	runID   string
	samples repository.SampleRepository
	encode  encodeFunc
}

// NewWriter creates a Writer over an already created layout. samples may be
// nil when no manifest is kept.
func NewWriter(cfg *config.Config, layout *Layout, runID string, samples repository.SampleRepository) *Writer {
	return &Writer{
		layout:  layout,
		mode:    cfg.SaveMode,
		ext:     cfg.SaveExt,
		outW:    cfg.Width,
		outH:    cfg.Height,
		numPer:  cfg.NumPer,
		runID:   runID,
		samples: samples,
		encode:  imencode,
	}
}

type staged struct {
	tmp    string
	path   string
	backup string // File of an earlier run moved aside until the sample commits.
}

// commit moves the staged file into place. An existing file at the
// destination is kept as a backup so a failed sample can restore it.
func (f *staged) commit() error {
	if _, err := os.Lstat(f.path); err == nil {
		f.backup = f.tmp + ".prev"
		if err := os.Rename(f.path, f.backup); err != nil {
			f.backup = ""
			return err
		}
	}
	if err := os.Rename(f.tmp, f.path); err != nil {
		f.restore()
		return err
	}
	return nil
}

// restore puts back the file the commit replaced, if any.
func (f *staged) restore() {
	if f.backup == "" {
		return
	}
	os.Rename(f.backup, f.path)
	f.backup = ""
}

// rollback undoes a partially written sample: committed files are removed
// and whatever they replaced is restored, uncommitted temp files are removed.
func rollback(files []staged, committed int) {
	for i := range files {
		if i < committed {
			os.Remove(files[i].path)
			files[i].restore()
		} else {
			os.Remove(files[i].tmp)
		}
	}
}

// WriteSample writes every record of one source frame. The records' Mats
// are not closed. Files left by an earlier run under the same names are
// replaced only once the whole sample succeeded.
func (w *Writer) WriteSample(records []Record) ([]Written, error) {
	var pending []staged
	var written []Written

	for _, rec := range records {
		files, out, err := w.stage(rec)
		pending = append(pending, files...)
		if err != nil {
			rollback(pending, 0)
			return nil, err
		}
		written = append(written, out)
	}

	for i := range pending {
		if err := pending[i].commit(); err != nil {
			rollback(pending, i)
			return nil, fmt.Errorf("failed to move %s into place: %w", pending[i].path, err)
		}
	}

	if w.samples != nil {
		rows := make([]model.Sample, len(records))
		for i, rec := range records {
			rows[i] = model.Sample{
				RunID:      w.runID,
				Name:       written[i].Name,
				Split:      rec.Label.String(),
				FrameIndex: rec.Index,
				Variant:    rec.Variant,
				FrameName:  rec.FrameName,
				InputPath:  written[i].InputPath,
				TargetPath: written[i].TargetPath,
				CropX:      rec.Window.X,
				CropY:      rec.Window.Y,
				CropW:      rec.Window.W,
				CropH:      rec.Window.H,
			}
		}
		if err := w.samples.InsertBatch(rows); err != nil {
			rollback(pending, len(pending))
			return nil, fmt.Errorf("failed to record samples: %w", err)
		}
	}

	for _, f := range pending {
		if f.backup != "" {
			os.Remove(f.backup)
		}
	}
	return written, nil
}

// stage encodes the files of one record into temporary files. Files staged
// before a failure are still returned so the caller can remove them.
func (w *Writer) stage(rec Record) ([]staged, Written, error) {
	name := FileName(rec.Index, rec.Variant, w.numPer, rec.FrameName, w.ext)
	dirA, dirB := w.layout.Dirs(rec.Label)
	out := Written{Name: name, Label: rec.Label}

	target, err := w.normalize(rec.Target)
	if err != nil {
		return nil, out, fmt.Errorf("%s: target: %w", name, err)
	}
	defer target.Close()

	var files []staged
	switch w.mode {
	case config.SaveSplit:
		input, err := w.normalize(rec.Input)
		if err != nil {
			return nil, out, fmt.Errorf("%s: input: %w", name, err)
		}
		defer input.Close()

		f, err := w.stageFile(dirA, name, input)
		if err != nil {
			return files, out, err
		}
		files = append(files, f)
		out.InputPath = f.path

		f, err = w.stageFile(dirB, name, target)
		if err != nil {
			return files, out, err
		}
		files = append(files, f)
		out.TargetPath = f.path

	case config.SaveCombined:
		input, err := w.normalize(rec.Input)
		if err != nil {
			return nil, out, fmt.Errorf("%s: input: %w", name, err)
		}
		defer input.Close()

		canvas, err := sideBySide(target, input)
		if err != nil {
			return nil, out, fmt.Errorf("%s: %w", name, err)
		}
		defer canvas.Close()

		f, err := w.stageFile(dirA, name, canvas)
		if err != nil {
			return files, out, err
		}
		files = append(files, f)
		out.TargetPath = f.path

	default:
		f, err := w.stageFile(dirA, name, target)
		if err != nil {
			return files, out, err
		}
		files = append(files, f)
		out.TargetPath = f.path
	}

	return files, out, nil
}

func (w *Writer) stageFile(dir, name string, img gocv.Mat) (staged, error) {
	data, err := w.encode(gocv.FileExt("."+w.ext), img)
	if err != nil {
		return staged{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, ".pairgen-*.tmp")
	if err != nil {
		return staged{}, fmt.Errorf("failed to stage %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return staged{}, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return staged{}, fmt.Errorf("failed to write %s: %w", name, err)
	}

	return staged{tmp: tmp.Name(), path: filepath.Join(dir, name)}, nil
}

// normalize returns a 3-channel outW x outH copy of img.
func (w *Writer) normalize(img gocv.Mat) (gocv.Mat, error) {
	bgr, err := ai.ToBGR(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	if bgr.Cols() == w.outW && bgr.Rows() == w.outH {
		return bgr, nil
	}
	defer bgr.Close()

	resized := gocv.NewMat()
	if err := gocv.Resize(bgr, &resized, image.Pt(w.outW, w.outH), 0, 0, gocv.InterpolationArea); err != nil {
		resized.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize image: %w", err)
	}
	if resized.Empty() {
		resized.Close()
		return gocv.NewMat(), errors.New("failed to resize image")
	}
	return resized, nil
}

// sideBySide joins left and right horizontally. Both must have the same
// height and type.
func sideBySide(left, right gocv.Mat) (gocv.Mat, error) {
	canvas := gocv.NewMat()
	if err := gocv.Hconcat(left, right, &canvas); err != nil {
		canvas.Close()
		return gocv.NewMat(), fmt.Errorf("failed to join images: %w", err)
	}
	if canvas.Cols() != left.Cols()+right.Cols() || canvas.Rows() != left.Rows() {
		canvas.Close()
		return gocv.NewMat(), fmt.Errorf("combined canvas is %dx%d", canvas.Cols(), canvas.Rows())
	}
	return canvas, nil
}

func imencode(ext gocv.FileExt, img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
