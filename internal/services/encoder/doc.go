// Package encoder provides the transcode clients. The ffmpeg client derives
// its pipeline from the configured hardware, codec, and quality tier; the
// drapto client delegates those decisions to the Drapto library.
package encoder
