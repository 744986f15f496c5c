package tpm2

import (
	"fmt"
	"io"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// TPMMarshal implements tpmutil.SelfMarshaler.
func (d *Digest) TPMMarshal(out io.Writer) error {
	if len(*d) > MaxDigestSize {
		return fmt.Errorf("digest of %d bytes exceeds the maximum of %d", len(*d), MaxDigestSize)
	}
	b := make([]byte, 2+len(*d))
	tpmutil.PutUint16(b, uint16(len(*d)))
	copy(b[2:], *d)
	_, err := out.Write(b)
	return err
}

// TPMUnmarshal implements tpmutil.SelfMarshaler. The cursor advances by two
// plus the size the digest declares for itself.
func (d *Digest) TPMUnmarshal(in *tpmutil.Decoder) error {
	size, err := in.Uint16()
	if err != nil {
		return fmt.Errorf("reading digest size: %w", err)
	}
	if size > MaxDigestSize {
		return malformed("digest size %d exceeds the maximum of %d", size, MaxDigestSize)
	}
	buf, err := in.Bytes(int(size))
	if err != nil {
		return fmt.Errorf("reading digest: %w", err)
	}
	*d = buf
	return nil
}

// TPMMarshal implements tpmutil.SelfMarshaler.
func (l *DigestList) TPMMarshal(out io.Writer) error {
	var count [4]byte
	tpmutil.PutUint32(count[:], uint32(len(l.Digests)))
	if _, err := out.Write(count[:]); err != nil {
		return err
	}
	for i := range l.Digests {
		if err := l.Digests[i].TPMMarshal(out); err != nil {
			return err
		}
	}
	return nil
}

// TPMUnmarshal implements tpmutil.SelfMarshaler.
func (l *DigestList) TPMUnmarshal(in *tpmutil.Decoder) error {
	count, err := in.Uint32()
	if err != nil {
		return fmt.Errorf("reading digest count: %w", err)
	}
	if count > MaxDigests {
		return malformed("digest count %d exceeds the maximum of %d", count, MaxDigests)
	}
	digests := make([]Digest, count)
	for i := range digests {
		if err := digests[i].TPMUnmarshal(in); err != nil {
			return fmt.Errorf("digest %d: %w", i, err)
		}
	}
	l.Digests = digests
	return nil
}
