// Command ignite prepares the native libraries, embedded runtime and
// extraction engine that a bundled application needs before it can fetch
// content, and reports on their state.
package main
