// Package classify decides whether a source video needs encoding, either by
// probing stream geometry through ffprobe or by filename quality markers.
package classify
