package tpm2

import (
	"fmt"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// NewPCRReadCommand builds a TPM2_PCR_Read command reading the single PCR
// index from the bank of hash. It returns an error wrapping ErrInvalidIndex
// if index is out of range.
func NewPCRReadCommand(index int, hash Algorithm) (*CommandMessage, error) {
	sel, err := NewPCRSelection(index, hash)
	if err != nil {
		return nil, err
	}
	list := PCRSelectionList{PCRSelections: []PCRSelection{sel}}
	return &CommandMessage{
		Tag:            tagNoSessions,
		CommandCode:    cmdPCRRead,
		ParamSize:      commandSize(list),
		PCRSelectionIn: list,
	}, nil
}

// commandSize is the header, the selection count and each selection entry.
func commandSize(list PCRSelectionList) uint32 {
	return uint32(tpmutil.CommandHeaderSize + list.wireSize())
}

// Marshal serializes the command as it is sent to the TPM.
func (c *CommandMessage) Marshal() ([]byte, error) {
	if want := commandSize(c.PCRSelectionIn); c.ParamSize != want {
		return nil, fmt.Errorf("command paramSize is %d, but the command serializes to %d bytes", c.ParamSize, want)
	}
	hdr := tpmutil.CommandHeader{
		Tag:  c.Tag,
		Size: c.ParamSize,
		Cmd:  c.CommandCode,
	}
	return tpmutil.Pack(hdr, &c.PCRSelectionIn)
}
