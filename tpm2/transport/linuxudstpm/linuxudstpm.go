//go:build !windows

// Package linuxudstpm provides access to a TPM emulator (such as swtpm) via a
// Unix domain socket.
package linuxudstpm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/go-tpm-pcr/tpm2/transport"
	"github.com/google/go-tpm-pcr/tpmutil"
)

var (
	// ErrFileIsNotSocket indicates that the TPM file is not a socket.
	ErrFileIsNotSocket = errors.New("TPM file is not a socket")
	// ErrNotOpen indicates that the TPM has already been closed.
	ErrNotOpen = errors.New("no connection is open")
)

// Open opens the TPM socket at the given path.
func Open(path string) (transport.TPMCloser, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if fi.Mode()&os.ModeSocket == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrFileIsNotSocket, fi.Mode().String(), path)
	}
	return newEmulator(path, net.Dial), nil
}

// dialer abstracts the net.Dial call so test code can provide its own net.Conn
// implementation.
type dialer func(network, path string) (net.Conn, error)

// emulator talks to a TPM emulator over a Unix domain socket. These
// emulators often operate in a connect/write/read/disconnect sequence, so
// every Send uses a fresh connection.
type emulator struct {
	path   string
	dialer dialer

	mu     sync.Mutex
	closed bool
}

func newEmulator(path string, d dialer) *emulator {
	return &emulator{
		path:   path,
		dialer: d,
	}
}

// Send implements the TPM interface.
func (e *emulator) Send(cmd []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrNotOpen
	}

	conn, err := e.dialer("unix", e.path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if n, err := conn.Write(cmd); err != nil {
		return nil, err
	} else if n != len(cmd) {
		return nil, fmt.Errorf("partial TPM write: only %d of %d bytes", n, len(cmd))
	}

	rsp := make([]byte, tpmutil.MaxResponseSize)
	n, err := conn.Read(rsp)
	if err != nil && !(n > 0 && errors.Is(err, io.EOF)) {
		return nil, err
	}
	return rsp[:n], nil
}

// Close implements the TPMCloser interface. Closing twice is not an error.
func (e *emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
