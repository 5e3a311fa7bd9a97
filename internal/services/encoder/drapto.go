package encoder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"transmirror/internal/services"
)

// Drapto is the Client backed by the Drapto Go library. Drapto owns its own
// quality and grain analysis, so the ffmpeg Params table does not apply.
type Drapto struct{}

// NewDrapto constructs a library-backed client.
func NewDrapto() *Drapto {
	return &Drapto{}
}

// Encode runs a Drapto encode into outputDir and returns the produced path.
func (d *Drapto) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return "", errors.New("output directory required")
	}

	enc, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", services.Wrap(services.ErrEncode, "encoder", "init drapto", inputPath, err)
	}

	var rep draptolib.Reporter
	if progress != nil {
		rep = &draptoReporter{progress: progress}
	}
	if _, err := enc.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", services.Wrap(services.ErrEncode, "encoder", "drapto", inputPath, err)
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(outputDir, stem+".mkv"), nil
}

var _ Client = (*Drapto)(nil)

// draptoReporter flattens the Drapto reporter callbacks into ProgressUpdate.
// Only the events that carry progress or a user-facing message are forwarded;
// the hardware/config summaries are noise at this layer.
type draptoReporter struct {
	progress func(ProgressUpdate)
}

func (r *draptoReporter) Hardware(draptolib.HardwareSummary) {}

func (r *draptoReporter) Initialization(s draptolib.InitializationSummary) {
	r.progress(ProgressUpdate{Stage: "initializing", Message: s.InputFile})
}

func (r *draptoReporter) StageProgress(s draptolib.StageProgress) {
	r.progress(ProgressUpdate{Percent: float64(s.Percent), Stage: s.Stage, Message: s.Message})
}

func (r *draptoReporter) CropResult(s draptolib.CropSummary) {
	r.progress(ProgressUpdate{Stage: "crop", Message: s.Message})
}

func (r *draptoReporter) EncodingConfig(draptolib.EncodingConfigSummary) {}

func (r *draptoReporter) EncodingStarted(uint64) {
	r.progress(ProgressUpdate{Stage: "encoding"})
}

func (r *draptoReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.progress(ProgressUpdate{Percent: float64(s.Percent), Stage: "encoding"})
}

func (r *draptoReporter) ValidationComplete(s draptolib.ValidationSummary) {
	stage := "validation"
	if !s.Passed {
		stage = "validation failed"
	}
	r.progress(ProgressUpdate{Percent: 100, Stage: stage})
}

func (r *draptoReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.progress(ProgressUpdate{Percent: 100, Stage: "complete", Message: s.OutputFile})
}

func (r *draptoReporter) Warning(message string) {
	r.progress(ProgressUpdate{Stage: "warning", Message: message})
}

func (r *draptoReporter) Error(e draptolib.ReporterError) {
	r.progress(ProgressUpdate{Stage: "error", Message: e.Message})
}

func (r *draptoReporter) OperationComplete(message string) {
	r.progress(ProgressUpdate{Percent: 100, Stage: "complete", Message: message})
}

func (r *draptoReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *draptoReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *draptoReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*draptoReporter)(nil)
