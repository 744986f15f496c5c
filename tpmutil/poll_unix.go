//go:build linux || darwin

package tpmutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// poll blocks until the file descriptor is ready for reading or an error occurs.
func poll(f *os.File) error {
	// TSS2_TCTI_TIMEOUT_BLOCK=-1; block indefinitely until data is available
	const timeout = -1

	// Fd reports ^uintptr(0) once f is closed, and poll(2) skips negative
	// descriptors, so a closed file would block forever.
	fd := f.Fd()
	if fd == ^uintptr(0) {
		return fmt.Errorf("poll: %w", os.ErrClosed)
	}
	pollFds := []unix.PollFd{
		{Fd: int32(fd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(pollFds, timeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	if pollFds[0].Revents&(unix.POLLNVAL|unix.POLLERR) != 0 {
		return fmt.Errorf("poll: descriptor %d not readable (revents 0x%x)", fd, pollFds[0].Revents)
	}
	return nil
}
