//go:build linux

package runloop

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// wakerOS is the Linux wake mechanism: a single eventfd serving as both
// read and write end. The counter semantics give at-least-once delivery
// for free; a write issued before the owner polls leaves the fd readable.
type wakerOS struct {
	fd int
}

func (o *wakerOS) init() error {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return err
	}
	o.fd = fd
	return nil
}

func (o *wakerOS) signal() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(o.fd, buf[:])
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			// Counter saturated; the owner cannot miss it.
			return nil
		}
		return err
	}
}

func (o *wakerOS) wait(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(o.fd), Events: unix.POLLIN}}
	ms := waitMillis(timeout)
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

func (o *wakerOS) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(o.fd, buf[:]); err != nil {
			return
		}
	}
}

func (o *wakerOS) close() error {
	return unix.Close(o.fd)
}
