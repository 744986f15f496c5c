package tpm2

import (
	"fmt"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// ParsePCRReadResponse decodes a TPM2_PCR_Read response. rsp must hold
// exactly the bytes returned by the transport, not the whole receive buffer.
//
// A non-success response code is returned as a *DeviceError. Responses that
// declare more data than rsp holds fail with ErrTruncatedMessage, and
// responses that break a structural limit fail with ErrMalformedMessage.
func ParsePCRReadResponse(rsp []byte) (*ResponseMessage, error) {
	var rh tpmutil.ResponseHeader
	if _, err := tpmutil.Unpack(rsp, &rh); err != nil {
		return nil, fmt.Errorf("reading response header: %w", err)
	}
	if rh.Res != tpmutil.RCSuccess {
		return nil, &DeviceError{Code: rh.Res}
	}
	if rh.Tag != tagNoSessions {
		return nil, malformed("response tag 0x%x, want 0x%x", uint16(rh.Tag), uint16(tagNoSessions))
	}
	if uint64(rh.Size) > uint64(len(rsp)) {
		return nil, fmt.Errorf("%w: response declares %d bytes, %d returned", ErrTruncatedMessage, rh.Size, len(rsp))
	}
	if rh.Size < tpmutil.ResponseHeaderSize {
		return nil, malformed("response size %d is smaller than its header", rh.Size)
	}

	msg := &ResponseMessage{
		Tag:          rh.Tag,
		ResponseCode: rh.Res,
		ParamSize:    rh.Size,
	}
	// Each field starts where the previous one ended; the selection and
	// digest lists size themselves from their own counts and sizes.
	body := tpmutil.NewDecoder(rsp[tpmutil.ResponseHeaderSize:rh.Size])
	counter, err := body.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading pcrUpdateCounter: %w", err)
	}
	msg.PCRUpdateCounter = counter
	if err := msg.PCRSelectionOut.TPMUnmarshal(body); err != nil {
		return nil, fmt.Errorf("reading pcrSelectionOut: %w", err)
	}
	if err := msg.PCRValues.TPMUnmarshal(body); err != nil {
		return nil, fmt.Errorf("reading pcrValues: %w", err)
	}
	if n := body.Remaining(); n != 0 {
		return nil, malformed("%d unread bytes after pcrValues", n)
	}
	if got, want := len(msg.PCRValues.Digests), msg.PCRSelectionOut.numPCRs(); got != want {
		return nil, malformed("%d digests returned for %d selected PCRs", got, want)
	}
	return msg, nil
}
