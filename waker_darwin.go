//go:build darwin

package runloop

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// wakerOS is the Darwin wake mechanism: a non-blocking self-pipe watched
// by a private kqueue. The pipe stays readable from the moment of a signal
// until drained, so a wake issued before the owner reaches Kevent is never
// lost.
type wakerOS struct {
	readFD  int
	writeFD int
	kq      int
}

func (o *wakerOS) init() error {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return err
	}
	cleanup := func() {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
	}

	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return err
	}

	kq, err := unix.Kqueue()
	if err != nil {
		cleanup()
		return err
	}
	unix.CloseOnExec(kq)

	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  uint64(fds[0]),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}, nil, nil)
	if err != nil {
		unix.Close(kq)
		cleanup()
		return err
	}

	o.readFD = fds[0]
	o.writeFD = fds[1]
	o.kq = kq
	return nil
}

func (o *wakerOS) signal() error {
	buf := [1]byte{1}
	for {
		_, err := unix.Write(o.writeFD, buf[:])
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			// Pipe full; the owner cannot miss it.
			return nil
		}
		return err
	}
}

func (o *wakerOS) wait(timeout time.Duration) (bool, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	var events [1]unix.Kevent_t
	for {
		n, err := unix.Kevent(o.kq, nil, events[:], ts)
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
	var buf [64]byte
	for {
		if _, err := unix.Read(o.readFD, buf[:]); err != nil {
			return
		}
	}
}

func (o *wakerOS) close() error {
	err := unix.Close(o.kq)
	if cerr := unix.Close(o.readFD); err == nil {
		err = cerr
	}
	if cerr := unix.Close(o.writeFD); err == nil {
		err = cerr
	}
	return err
}
