package nativelib

// Loader maps a shared library into the running process.
type Loader interface {
	Open(path string) (uintptr, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (uintptr, error)

func (f LoaderFunc) Open(path string) (uintptr, error) { return f(path) }
