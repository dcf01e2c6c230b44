//go:build !qat

package engine

// HardwareAvailable reports whether an accelerator instance can be
// initialized. Builds without the qat tag never have one.
func HardwareAvailable() bool {
	return false
}

func newHardware(Params) (Engine, error) {
	return nil, &Error{Op: "setup", Status: StatusNoSWNoHardware}
}
