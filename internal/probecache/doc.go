// Package probecache persists resolution classifications in SQLite so that
// repeated scans only probe files whose source mtime changed.
package probecache
