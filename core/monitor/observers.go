package monitor

import "sync"

// observers is a set of callbacks receiving snapshots of one monitor.
type observers struct {
	mu   sync.Mutex
	fns  map[int]func(interface{})
	next int
}

func (o *observers) add(fn func(interface{})) (remove func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(interface{}))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observers) notify(v interface{}) {
	o.mu.Lock()
	fns := make([]func(interface{}), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
