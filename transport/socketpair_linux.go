//go:build linux
// +build linux

package transport

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Socketpair returns a connected AF_UNIX stream pair. Unlike Pipe, the
// remote half is backed by a real file descriptor, so a caller can pass it
// to another process or poll on it.
func Socketpair() (local, remote io.ReadWriteCloser, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "socketpair")
	}
	return &fdEndpoint{fd: fds[0]}, &fdEndpoint{fd: fds[1]}, nil
}

type fdEndpoint struct {
	fd        int
	closeOnce sync.Once
	closeErr  error
}

func (e *fdEndpoint) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(e.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "fd read")
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (e *fdEndpoint) Write(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := unix.Write(e.fd, b[total:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, errors.Wrap(err, "fd write")
		}
		total += n
	}
	return total, nil
}

func (e *fdEndpoint) Close() error {
	e.closeOnce.Do(func() {
		// shutdown first so a blocked reader on either end wakes up
		unix.Shutdown(e.fd, unix.SHUT_RDWR)
		e.closeErr = unix.Close(e.fd)
	})
	return e.closeErr
}
