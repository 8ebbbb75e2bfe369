package camerasvc

import (
	"sync"

	"github.com/trezcool/presence/core/capture"
)

// Pool gives every student a simulated camera of their own.
type Pool struct {
	mu      sync.Mutex
	devices map[string]*Device
	deny    error
}

var _ capture.DeviceProvider = (*Pool)(nil)

// NewPool returns a Pool whose devices deny access with deny, if not nil.
func NewPool(deny error) *Pool {
	return &Pool{devices: make(map[string]*Device), deny: deny}
}

func (p *Pool) Device(subject string) capture.Device {
	return p.Get(subject)
}

// Get returns the concrete device of subject.
func (p *Pool) Get(subject string) *Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.devices[subject]; ok {
		return d
	}
	d := NewDevice()
	d.Deny(p.deny)
	p.devices[subject] = d
	return d
}
