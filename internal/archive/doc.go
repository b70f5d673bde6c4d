// Package archive copies entries out of the application bundle, which is a
// zip container (APK, JAR or plain zip), and out of zip files nested inside it.
//
// Entries are written flat: an entry named lib/arm64-v8a/libfoo.so lands at
// <target>/libfoo.so. Per-entry failures are collected and reported through
// stage.ExtractionResult; only an unreadable archive fails the whole call.
package archive
