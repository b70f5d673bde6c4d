// Package nativelib manages the platform shared libraries shipped inside the
// bundle: deciding whether they need extracting, extracting the right ABI,
// expanding compressed libraries, loading them in dependency order and
// verifying the result.
//
// The on-disk layout is a flat directory of libraries with an optional
// usr/lib/<name>/ subtree holding the contents of compressed libraries
// such as libpython.zip.so.
package nativelib
