//go:build !linux

package extrasafe

// ThreadState is only meaningful on Linux.
func ThreadState() (EnforcementState, error) {
	return Unrestricted, &UnsupportedPlatformError{}
}

// ThreadStates is only meaningful on Linux.
func ThreadStates() (map[int]EnforcementState, error) {
	return nil, &UnsupportedPlatformError{}
}
