package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"transmirror/internal/media/ffprobe"
	"transmirror/internal/services"
)

var commandContext = exec.CommandContext

// Params selects the ffmpeg pipeline. Hardware and Quality carry the
// config-validated enums; anything else falls back to the software path and
// the MEDIUM tier.
type Params struct {
	HardwareAccel bool
	Hardware      string // nvidia or intel
	Codec         string // hevc or av1
	Quality       string // LOW, MEDIUM, or HIGH
	MaxHeight     int
}

// qualityValue maps the quality tier to the qp/crf value. Lower is better;
// the same table serves both rate-control flags.
func qualityValue(quality string) int {
	switch quality {
	case "HIGH":
		return 20
	case "LOW":
		return 40
	default:
		return 30
	}
}

// videoArgs returns the codec name, its rate-control arguments, the scale
// filter, and any input-side acceleration options.
func (p Params) videoArgs() (codec string, extra []string, filter string, input []string) {
	q := strconv.Itoa(qualityValue(p.Quality))
	height := strconv.Itoa(p.MaxHeight)

	if p.HardwareAccel {
		switch p.Hardware {
		case "nvidia":
			// NVENC encodes from system memory; no input-side accel needed.
			codec = "hevc_nvenc"
			if p.Codec == "av1" {
				codec = "av1_nvenc"
			}
			return codec, []string{"-b:v", "0", "-qp", q}, "scale=-2:'min(" + height + ",ih)'", nil
		case "intel":
			codec = "hevc_vaapi"
			if p.Codec == "av1" {
				codec = "av1_vaapi"
			}
			input = []string{"-hwaccel", "vaapi", "-vaapi_device", "/dev/dri/renderD128"}
			return codec, []string{"-b:v", "0", "-qp", q}, "format=nv12,hwupload,scale_vaapi=-2:'min(" + height + ",ih)'", input
		}
	}

	codec = "libx265"
	if p.Codec == "av1" {
		codec = "libaom-av1"
	}
	return codec, []string{"-crf", q, "-b:v", "0"}, "scale=-2:'min(" + height + ",ih)'", nil
}

// BuildArgs assembles the full ffmpeg argument list for one encode. All video
// goes through the scale filter, audio is re-encoded to stereo opus, and
// subtitle streams are copied when present.
func (p Params) BuildArgs(inputPath, outputPath string) []string {
	codec, extra, filter, accel := p.videoArgs()

	args := []string{"-hide_banner", "-nostdin", "-y"}
	args = append(args, accel...)
	args = append(args, "-i", inputPath)
	args = append(args, "-vf", filter, "-c:v", codec)
	args = append(args, extra...)
	args = append(args, "-map", "0:v", "-map", "0:a", "-map", "0:s?")
	args = append(args, "-c:a", "libopus", "-b:a", "128k", "-ac", "2")
	args = append(args, "-c:s", "copy")
	args = append(args, "-progress", "pipe:1", "-nostats", "-loglevel", "error")
	args = append(args, outputPath)
	return args
}

// FFmpeg is the Client backed by a local ffmpeg binary.
type FFmpeg struct {
	Binary      string
	ProbeBinary string
	Params      Params
	Inspect     func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewFFmpeg constructs an ffmpeg-backed client.
func NewFFmpeg(binary, probeBinary string, params Params) *FFmpeg {
	return &FFmpeg{Binary: binary, ProbeBinary: probeBinary, Params: params, Inspect: ffprobe.Inspect}
}

// Encode runs ffmpeg, writing <stem>.mkv into outputDir and streaming
// progress parsed from the -progress key=value feed.
func (f *FFmpeg) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return "", errors.New("output directory required")
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	outputPath := filepath.Join(outputDir, stem+".mkv")

	// Duration is only needed to turn out_time into a percentage; a probe
	// failure here degrades progress reporting, not the encode.
	var totalSeconds float64
	if inspect := f.Inspect; inspect != nil && f.ProbeBinary != "" {
		if result, err := inspect(ctx, f.ProbeBinary, inputPath); err == nil {
			totalSeconds = result.DurationSeconds()
		}
	}

	cmd := commandContext(ctx, f.Binary, f.Params.BuildArgs(inputPath, outputPath)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrEncode, "encoder", "start ffmpeg", inputPath, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || progress == nil {
			continue
		}
		switch key {
		case "out_time_us":
			us, parseErr := strconv.ParseInt(value, 10, 64)
			if parseErr != nil || totalSeconds <= 0 {
				continue
			}
			percent := float64(us) / 1e6 / totalSeconds * 100
			if percent > 100 {
				percent = 100
			}
			progress(ProgressUpdate{Percent: percent, Stage: "encoding"})
		case "speed":
			progress(ProgressUpdate{Stage: "encoding", Message: "speed " + value})
		case "progress":
			if value == "end" {
				progress(ProgressUpdate{Percent: 100, Stage: "encoding", Message: "finalizing"})
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = inputPath
		}
		return "", services.Wrap(services.ErrEncode, "encoder", "ffmpeg", detail, err)
	}
	return outputPath, nil
}

var _ Client = (*FFmpeg)(nil)
