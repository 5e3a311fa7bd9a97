// Package executor runs engine actions: staging encodes on a worker pool,
// publishing results atomically into the destination tree, and removing
// orphaned encodes.
package executor
