// Package daemon wires the watcher, reconciliation engine, executor, and
// corrective scan ticker into a single supervised process.
package daemon
