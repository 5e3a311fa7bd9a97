// Package ffprobe shells out to ffprobe and parses the JSON inspection
// payload into stream geometry and container metadata.
package ffprobe
