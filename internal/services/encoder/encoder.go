package encoder

import "context"

// ProgressUpdate captures encoder progress events.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
}

// Client defines encoding behaviour. Encode writes the result into outputDir
// as <stem>.mkv and returns its path. Implementations write only inside
// outputDir; the caller stages and publishes.
type Client interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error)
}
