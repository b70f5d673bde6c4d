// Package runtimeenv prepares the private directory of the embedded
// interpreter used by the extraction engine: it creates the directory,
// extracts the interpreter's support files from anywhere in the bundle and
// verifies that the required file patterns are present.
package runtimeenv
