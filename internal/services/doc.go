// Package services defines the shared error taxonomy for transmirror
// components and helpers for wrapping failures with component context.
package services
