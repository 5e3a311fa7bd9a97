// Package watch turns fsnotify events on the source and destination trees
// into a serialized stream of Added/Removed observations, settling new source
// files until their size is stable before announcing them.
package watch
