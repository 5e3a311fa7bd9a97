// Package notifications publishes daemon lifecycle, encode, and scan events
// to an ntfy topic when one is configured.
package notifications
