// Package reconcile derives encode, skip, and delete actions from the
// observed state of the source and destination trees. A single transition
// table backs both the long-running engine and the offline comparator.
package reconcile
