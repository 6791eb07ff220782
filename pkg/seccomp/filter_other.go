//go:build !linux

package seccomp

// Supported reports whether the running kernel supports seccomp filters.
func Supported() bool {
	return false
}

// Load is not available outside Linux.
func Load(f Filter, opts LoadOptions) error {
	return ErrNotSupported
}
