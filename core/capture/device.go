package capture

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// UnavailableMessage is the only camera error users ever see.
const UnavailableMessage = "Unable to access camera. Please check camera permissions."

var (
	// device errors
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera found")
	ErrDeviceBusy       = errors.New("camera is in use")
)

// Constraints is what the simulator asks of the device.
type Constraints struct {
	IdealWidth  int    `json:"ideal_width"`
	IdealHeight int    `json:"ideal_height"`
	FacingMode  string `json:"facing_mode"`
}

// DefaultConstraints asks for a 640x480 front-facing camera.
var DefaultConstraints = Constraints{IdealWidth: 640, IdealHeight: 480, FacingMode: "user"}

type (
	// Device grants exclusive capture handles.
	Device interface {
		// Acquire returns a handle or one of ErrPermissionDenied, ErrNoDevice, ErrDeviceBusy.
		Acquire(ctx context.Context, c Constraints) (Handle, error)
	}

	// Handle is an acquired live video stream.
	Handle interface {
		// Frame returns the current video frame at its native resolution.
		Frame() (image.Image, error)
		// Release stops the stream. It is safe to call more than once.
		Release() error
	}

	// DeviceProvider hands out the device of a given student.
	DeviceProvider interface {
		Device(subject string) Device
	}
)

// UnavailableError reports that no capture handle could be acquired.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return "camera unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is, or wraps, an *UnavailableError.
func IsUnavailable(err error) bool {
	var uErr *UnavailableError
	return errors.As(err, &uErr)
}
