// Package transport implements types for physically talking to TPMs.
package transport

import (
	"io"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// TPM represents a logical connection to a TPM. Send exchanges one complete
// command for one complete response; the returned slice holds only the bytes
// the TPM actually sent back.
type TPM interface {
	Send(input []byte) ([]byte, error)
}

// TPMCloser represents a logical connection to a TPM that must be released
// exactly once.
type TPMCloser interface {
	TPM
	io.Closer
}

// wrappedRWC wraps an io.ReadWriteCloser to satisfy TPMCloser.
type wrappedRWC struct {
	transport io.ReadWriteCloser
}

// FromReadWriteCloser wraps a stream-oriented TPM handle (such as a device
// file) so that it satisfies TPMCloser.
func FromReadWriteCloser(rwc io.ReadWriteCloser) TPMCloser {
	return &wrappedRWC{
		transport: rwc,
	}
}

// Send implements the TPM interface.
func (t *wrappedRWC) Send(input []byte) ([]byte, error) {
	return tpmutil.RunCommandRaw(t.transport, input)
}

// Close implements the TPMCloser interface.
func (t *wrappedRWC) Close() error {
	return t.transport.Close()
}
