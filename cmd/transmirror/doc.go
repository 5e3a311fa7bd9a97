// Command transmirror is the CLI: it runs the daemon in the foreground,
// compares the two trees offline, and manages configuration.
package main
