//go:build windows

package runloop

import (
	"time"

	"golang.org/x/sys/windows"
)

// wakerOS is the Windows wake mechanism: an auto-reset event object.
// SetEvent before the owner reaches WaitForSingleObject leaves the event
// signalled, so a wake is never lost; the auto-reset consumes the signal
// on wakeup, making an explicit drain unnecessary.
type wakerOS struct {
	event windows.Handle
}

func (o *wakerOS) init() error {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return err
	}
	o.event = h
	return nil
}

func (o *wakerOS) signal() error {
	return windows.SetEvent(o.event)
}

func (o *wakerOS) wait(timeout time.Duration) (bool, error) {
	ms := uint32(windows.INFINITE)
	if t := waitMillis(timeout); t >= 0 {
		ms = uint32(t)
	}
	status, err := windows.WaitForSingleObject(o.event, ms)
	switch status {
	case windows.WAIT_OBJECT_0:
		return true, nil
	case windows.WAIT_TIMEOUT:
		return false, nil
	}
	return false, err
}

func (o *wakerOS) drain() {
	// Auto-reset events are consumed by the wait itself.
}

func (o *wakerOS) close() error {
	return windows.CloseHandle(o.event)
}
