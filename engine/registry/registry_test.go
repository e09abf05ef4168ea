package registry

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
)

// hostSubscriber registers directly on the host and can be told to reject registrations.
type hostSubscriber struct {
	h       host.Host
	failFor map[host.Handle]bool
}

func (s *hostSubscriber) Subscribe(entity host.Handle, handler host.ChangeHandler) (host.CallbackToken, error) {
	if s.failFor[entity] {
		return host.CallbackToken{}, errors.New("registration rejected")
	}
	return s.h.RegisterChangeCallback(entity, handler)
}

func (s *hostSubscriber) Cancel(token host.CallbackToken) error {
	return s.h.Deregister(token)
}

type fakeDevice struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (d *fakeDevice) WaitForAllPreviousWork() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waits++
	return d.err
}

func (d *fakeDevice) Ready() bool {
	return true
}

func (d *fakeDevice) Waits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waits
}

func translated(x, y, z float64) host.TransformData {
	t := host.IdentityTransform()
	t.Translation = [3]float64{x, y, z}
	return t
}
