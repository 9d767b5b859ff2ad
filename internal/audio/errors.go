package audio

import (
	"errors"
	"fmt"
)

// ErrDeviceUnavailable means no capture device could be opened. Callers can
// still fall back to a file upload.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// DeviceError records which device failed and at which step.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Op, e.Err)
}

// Unwrap exposes both ErrDeviceUnavailable and the cause to errors.Is/As.
func (e *DeviceError) Unwrap() []error {
	return []error{ErrDeviceUnavailable, e.Err}
}
