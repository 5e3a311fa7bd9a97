// Package report shapes comparison buckets into the JSON/CSV report formats
// and the summary the CLI renders.
package report
