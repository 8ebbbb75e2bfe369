package camerasvc

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/capture"
)

var errReleased = errors.New("camera handle released")

// Device is a simulated webcam that can be held by one handle at a time.
type Device struct {
	mu       sync.Mutex
	held     bool
	deny     error
	native   image.Point // zero: honour the ideal constraints
	acquired int
	released int
}

var _ capture.Device = (*Device)(nil) // interface compliance check

func NewDevice() *Device {
	return &Device{}
}

// Deny makes every later acquisition fail with err. A nil err lifts the denial.
func (d *Device) Deny(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deny = err
}

// SetNativeResolution fixes the resolution of the frames, whatever the constraints ask for.
func (d *Device) SetNativeResolution(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.native = image.Pt(width, height)
}

func (d *Device) Acquire(ctx context.Context, c capture.Constraints) (capture.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deny != nil {
		return nil, d.deny
	}
	if d.held {
		return nil, capture.ErrDeviceBusy
	}

	size := d.native
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(c.IdealWidth, c.IdealHeight)
	}
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(capture.DefaultConstraints.IdealWidth, capture.DefaultConstraints.IdealHeight)
	}
	d.held = true
	d.acquired++
	return &handle{device: d, size: size}, nil
}

// Held reports whether a handle is currently acquired.
func (d *Device) Held() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held
}

// Stats returns how many handles were acquired and released so far.
func (d *Device) Stats() (acquired, released int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired, d.released
}

type handle struct {
	device *Device
	size   image.Point

	mu       sync.Mutex
	frames   int
	released bool
}

// Frame renders a synthetic frame: a face-like blob over a background whose tone drifts with every frame.
func (h *handle) Frame() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, errReleased
	}
	h.frames++

	tone := uint8(40 + (h.frames*7)%60)
	frame := imaging.New(h.size.X, h.size.Y, color.NRGBA{R: tone, G: tone, B: tone + 30, A: 255})
	faceW, faceH := h.size.X/3, h.size.Y/2
	face := imaging.New(faceW, faceH, color.NRGBA{R: 224, G: 172, B: 105, A: 255})
	frame = imaging.PasteCenter(frame, face)
	return imaging.Blur(frame, 1.5), nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true

	h.device.mu.Lock()
	defer h.device.mu.Unlock()
	h.device.held = false
	h.device.released++
	return nil
}
