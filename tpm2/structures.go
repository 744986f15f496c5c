package tpm2

import "github.com/google/go-tpm-pcr/tpmutil"

// PCRSelection is a TPMS_PCR_SELECTION: the PCRs of one bank, identified by
// its hash algorithm, that a command refers to. The select size sent on the
// wire is len(PCRSelect).
type PCRSelection struct {
	Hash      Algorithm
	PCRSelect []byte
}

// PCRSelectionList is a TPML_PCR_SELECTION.
type PCRSelectionList struct {
	PCRSelections []PCRSelection
}

// Digest is a TPM2B_DIGEST.
type Digest []byte

// DigestList is a TPML_DIGEST.
type DigestList struct {
	Digests []Digest
}

// CommandMessage is a TPM2_PCR_Read command. ParamSize is the size of the
// whole serialized command, header included.
type CommandMessage struct {
	Tag            tpmutil.Tag
	CommandCode    tpmutil.Command
	ParamSize      uint32
	PCRSelectionIn PCRSelectionList
}

// ResponseMessage is a TPM2_PCR_Read response. PCRSelectionOut is the
// selection the TPM actually read, and PCRValues holds one digest per PCR
// selected in it, in ascending PCR order within each bank.
type ResponseMessage struct {
	Tag              tpmutil.Tag
	ResponseCode     tpmutil.ResponseCode
	ParamSize        uint32
	PCRUpdateCounter uint32
	PCRSelectionOut  PCRSelectionList
	PCRValues        DigestList
}
