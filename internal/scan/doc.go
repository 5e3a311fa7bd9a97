// Package scan enumerates the source and destination trees into point-in-time
// snapshots used by the corrective reconciliation pass and the comparator.
package scan
