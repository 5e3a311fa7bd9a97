// Package config loads, normalizes, and validates transmirror configuration.
//
// Configuration lives in a TOML file (default ~/.config/transmirror/config.toml)
// with a small set of environment overrides carried over from the original
// container deployment (SOURCE_FOLDER, DEST_FOLDER, ENABLE_HW_ACCEL,
// ENCODING_QUALITY, IGNORE_PATTERNS). Loading always succeeds without a file;
// validation failures are fatal before the daemon starts watching.
package config
