package tpm2

import (
	"fmt"
	"io"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// NewPCRSelection returns a selection of the single PCR index in the bank
// of hash. The bitmap is always PCRSelectMax bytes long, since the TPM
// requires selections big enough to cover the minimum PCR allocation.
func NewPCRSelection(index int, hash Algorithm) (PCRSelection, error) {
	if index < 0 || index > MaxPCRIndex {
		return PCRSelection{}, fmt.Errorf("%w: %d is outside [0, %d]", ErrInvalidIndex, index, MaxPCRIndex)
	}
	sel := PCRSelection{
		Hash:      hash,
		PCRSelect: make([]byte, PCRSelectMax),
	}
	// The PCR selection mask is byte-wise little-endian:
	//   select[0] contains bits representing the selection of PCRs 0 through 7
	//   select[1] contains PCRs 8 through 15, and so on.
	// Within the byte, bit 0 selects the lowest PCR.
	sel.PCRSelect[index/8] |= 1 << (index % 8)
	return sel, nil
}

// PCRs lists the selected PCR indices in ascending order.
func (s PCRSelection) PCRs() []int {
	var pcrs []int
	for byteIdx, byteVal := range s.PCRSelect {
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			if byteVal&(1<<bitIdx) != 0 {
				pcrs = append(pcrs, byteIdx*8+bitIdx)
			}
		}
	}
	return pcrs
}

// wireSize is the serialized size: hash, size byte, bitmap.
func (s PCRSelection) wireSize() int {
	return 2 + 1 + len(s.PCRSelect)
}

// TPMMarshal implements tpmutil.SelfMarshaler.
func (s *PCRSelection) TPMMarshal(out io.Writer) error {
	if len(s.PCRSelect) > PCRSelectMax {
		return fmt.Errorf("PCR select of %d bytes exceeds the maximum of %d", len(s.PCRSelect), PCRSelectMax)
	}
	b := make([]byte, s.wireSize())
	tpmutil.PutUint16(b, uint16(s.Hash))
	b[2] = uint8(len(s.PCRSelect))
	copy(b[3:], s.PCRSelect)
	_, err := out.Write(b)
	return err
}

// TPMUnmarshal implements tpmutil.SelfMarshaler.
func (s *PCRSelection) TPMUnmarshal(in *tpmutil.Decoder) error {
	hash, err := in.Uint16()
	if err != nil {
		return fmt.Errorf("reading hash algorithm: %w", err)
	}
	size, err := in.Uint8()
	if err != nil {
		return fmt.Errorf("reading select size: %w", err)
	}
	if size > PCRSelectMax {
		return malformed("select size %d exceeds the maximum of %d", size, PCRSelectMax)
	}
	sel, err := in.Bytes(int(size))
	if err != nil {
		return fmt.Errorf("reading PCR select: %w", err)
	}
	s.Hash = Algorithm(hash)
	s.PCRSelect = sel
	return nil
}

func (l PCRSelectionList) wireSize() int {
	size := 4
	for _, s := range l.PCRSelections {
		size += s.wireSize()
	}
	return size
}

// numPCRs counts the selected PCRs across all banks.
func (l PCRSelectionList) numPCRs() int {
	n := 0
	for _, s := range l.PCRSelections {
		n += len(s.PCRs())
	}
	return n
}

// TPMMarshal implements tpmutil.SelfMarshaler.
func (l *PCRSelectionList) TPMMarshal(out io.Writer) error {
	var count [4]byte
	tpmutil.PutUint32(count[:], uint32(len(l.PCRSelections)))
	if _, err := out.Write(count[:]); err != nil {
		return err
	}
	for i := range l.PCRSelections {
		if err := l.PCRSelections[i].TPMMarshal(out); err != nil {
			return err
		}
	}
	return nil
}

// TPMUnmarshal implements tpmutil.SelfMarshaler. On return the decoder is
// positioned right after the last selection.
func (l *PCRSelectionList) TPMUnmarshal(in *tpmutil.Decoder) error {
	count, err := in.Uint32()
	if err != nil {
		return fmt.Errorf("reading selection count: %w", err)
	}
	if count > MaxPCRSelections {
		return malformed("selection count %d exceeds the maximum of %d", count, MaxPCRSelections)
	}
	sels := make([]PCRSelection, count)
	for i := range sels {
		if err := sels[i].TPMUnmarshal(in); err != nil {
			return fmt.Errorf("selection %d: %w", i, err)
		}
	}
	l.PCRSelections = sels
	return nil
}
