// Package deps checks availability of the external binaries transmirror
// shells out to.
package deps
