package classify

import (
	"context"
	"strings"

	"transmirror/internal/media/ffprobe"
	"transmirror/internal/services"
)

// Classification is the resolution verdict for a source file.
type Classification string

const (
	Unclassified  Classification = "unclassified"
	NeedsEncode   Classification = "needs_encode"
	AlreadyLowRes Classification = "already_low_res"
	ProbeFailed   Classification = "probe_failed"
)

// Classifier decides whether a source file needs encoding. Implementations are
// idempotent for an unchanged file and cache nothing; callers cache results.
type Classifier interface {
	Classify(ctx context.Context, path string) (Classification, error)
}

// InspectFunc matches ffprobe.Inspect; injectable for tests.
type InspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Prober classifies by probing the file's video stream geometry.
type Prober struct {
	Binary    string
	MaxHeight int
	Inspect   InspectFunc
}

// NewProber constructs a probe-backed classifier with the given threshold.
func NewProber(binary string, maxHeight int) *Prober {
	return &Prober{Binary: binary, MaxHeight: maxHeight, Inspect: ffprobe.Inspect}
}

// Classify probes the file once. ProbeFailed is a terminal verdict, never
// conflated with NeedsEncode: the caller must report it and take no action.
func (p *Prober) Classify(ctx context.Context, path string) (Classification, error) {
	inspect := p.Inspect
	if inspect == nil {
		inspect = ffprobe.Inspect
	}
	result, err := inspect(ctx, p.Binary, path)
	if err != nil {
		return ProbeFailed, services.Wrap(services.ErrProbe, "classify", "probe", path, err)
	}
	video, ok := result.PrimaryVideo()
	if !ok {
		return ProbeFailed, services.Wrap(services.ErrProbe, "classify", "probe", "no video stream in "+path, nil)
	}
	if belowThreshold(video.Width, video.Height, p.MaxHeight) {
		return AlreadyLowRes, nil
	}
	return NeedsEncode, nil
}

// belowThreshold applies the height gate; when a stream reports only width,
// the width-equivalent of a 16:9 frame at the threshold height is used.
func belowThreshold(width, height, maxHeight int) bool {
	if height > 0 {
		return height <= maxHeight
	}
	if width > 0 {
		return width <= maxHeight*16/9
	}
	return false
}

var _ Classifier = (*Prober)(nil)

// Filename markers carried over from the original comparison tooling. A high
// marker wins over a low marker when both appear.
var (
	lowQualityMarkers  = []string{"720p", "480p", "360p", "sd", "dvdrip", "hdtv", "webrip"}
	highQualityMarkers = []string{"1080p", "2160p", "4k", "uhd", "bluray", "bdremux", "remux"}
)

// Markers classifies by filename quality markers alone. It never probes and
// never fails, which makes it suitable for fast offline comparison passes.
type Markers struct{}

func (Markers) Classify(_ context.Context, path string) (Classification, error) {
	name := strings.ToLower(path)
	for _, marker := range highQualityMarkers {
		if strings.Contains(name, marker) {
			return NeedsEncode, nil
		}
	}
	for _, marker := range lowQualityMarkers {
		if strings.Contains(name, marker) {
			return AlreadyLowRes, nil
		}
	}
	return NeedsEncode, nil
}

var _ Classifier = Markers{}
