package ffprobe_test

import (
	"encoding/json"
	"testing"

	"transmirror/internal/media/ffprobe"
)

const samplePayload = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ],
  "format": {"filename": "in.mkv", "duration": "5400.25", "size": "734003200", "format_name": "matroska"}
}`

func TestResultAccessors(t *testing.T) {
	var result ffprobe.Result
	if err := json.Unmarshal([]byte(samplePayload), &result); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	video, ok := result.PrimaryVideo()
	if !ok {
		t.Fatal("expected a video stream")
	}
	if video.Width != 1920 || video.Height != 1080 {
		t.Fatalf("unexpected geometry: %dx%d", video.Width, video.Height)
	}
	if got := result.DurationSeconds(); got != 5400.25 {
		t.Fatalf("DurationSeconds = %v", got)
	}
	if got := result.SizeBytes(); got != 734003200 {
		t.Fatalf("SizeBytes = %v", got)
	}
}

func TestPrimaryVideoAbsent(t *testing.T) {
	result := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio"}}}
	if _, ok := result.PrimaryVideo(); ok {
		t.Fatal("expected no video stream")
	}
}
