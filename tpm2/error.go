package tpm2

import (
	"errors"
	"fmt"

	"github.com/google/go-tpm-pcr/tpmutil"
)

var (
	// ErrInvalidIndex is returned for a PCR index outside [0, MaxPCRIndex].
	ErrInvalidIndex = errors.New("invalid PCR index")
	// ErrMalformedMessage is returned when a response violates a structural
	// limit, e.g. a count or size larger than its declared maximum.
	ErrMalformedMessage = errors.New("malformed TPM message")
	// ErrTruncatedMessage is returned when a response declares more data
	// than was actually returned.
	ErrTruncatedMessage = tpmutil.ErrTruncated
)

// Format 0 error codes (bits 0:6).
const (
	rcInitialize  = 0x00
	rcFailure     = 0x01
	rcSequence    = 0x03
	rcDisabled    = 0x20
	rcUpgrade     = 0x2D
	rcReboot      = 0x30
	rcCommandSize = 0x42
	rcCommandCode = 0x43
	rcNeedsTest   = 0x53
	rcNoResult    = 0x54
)

var fmt0Msg = map[uint32]string{
	rcInitialize:  "TPM not initialized by TPM2_Startup or already initialized",
	rcFailure:     "commands not being accepted because of a TPM failure",
	rcSequence:    "improper use of a sequence handle",
	rcDisabled:    "the command is disabled",
	rcUpgrade:     "TPM is in field upgrade mode",
	rcReboot:      "a _TPM_Init and Startup(CLEAR) is required before the TPM can resume operation",
	rcCommandSize: "command commandSize value is inconsistent with contents of the command buffer",
	rcCommandCode: "command code not supported",
	rcNeedsTest:   "some function needs testing",
	rcNoResult:    "internal function cannot process a request due to an unspecified problem",
}

// Format 1 error codes (bits 0:5).
const (
	rcHash         = 0x03
	rcValue        = 0x04
	rcHandle       = 0x0B
	rcRange        = 0x0D
	rcSize         = 0x15
	rcTag          = 0x17
	rcSelector     = 0x18
	rcInsufficient = 0x1A
)

var fmt1Msg = map[uint32]string{
	rcHash:         "hash algorithm not supported or not appropriate",
	rcValue:        "value is out of range or is not correct for the context",
	rcHandle:       "the handle is not correct for the use",
	rcRange:        "value was out of allowed range",
	rcSize:         "structure is the wrong size",
	rcTag:          "incorrect structure tag",
	rcSelector:     "union selector is incorrect",
	rcInsufficient: "the TPM was unable to unmarshal a value because there were not enough octets in the input buffer",
}

// Warning codes (bits 0:6).
const (
	rcMemory        = 0x04
	rcLocality      = 0x07
	rcYielded       = 0x08
	rcCanceled      = 0x09
	rcTesting       = 0x0A
	rcNVRate        = 0x20
	rcLockout       = 0x21
	rcRetry         = 0x22
	rcNVUnavailable = 0x23
)

var warnMsg = map[uint32]string{
	rcMemory:        "out of shared object/session memory or need space for internal operations",
	rcLocality:      "bad locality",
	rcYielded:       "the TPM has suspended operation on the command",
	rcCanceled:      "the command was canceled",
	rcTesting:       "TPM is performing self-tests",
	rcNVRate:        "the TPM is rate-limiting accesses to prevent wearout of NV",
	rcLockout:       "the TPM is in DA lockout mode",
	rcRetry:         "the TPM was not able to start the command",
	rcNVUnavailable: "the command may require writing of NV and NV is not current accessible",
}

// DeviceError is a non-success response code returned by the TPM.
type DeviceError struct {
	Code tpmutil.ResponseCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("TPM response code 0x%x: %s", uint32(e.Code), describeResponse(e.Code))
}

// Warning reports whether the code is a TPM 2.0 warning rather than an
// error. Warnings indicate the command may succeed if sent again later.
func (e *DeviceError) Warning() bool {
	c := uint32(e.Code)
	return c&0x180 != 0 && c&0x80 == 0 && c&0x400 == 0 && c&0x800 != 0
}

// describeResponse follows the "Response Code Evaluation" chart in Part 1 of
// the TPM 2.0 spec.
func describeResponse(code tpmutil.ResponseCode) string {
	c := uint32(code)
	if c&0x180 == 0 { // Bits 7:8 == 0 is a TPM1 error
		return "TPM 1.2 response status"
	}
	if c&0x80 == 0 { // Bit 7 unset
		if c&0x400 > 0 { // Bit 10 set, vendor specific code
			return "vendor specific error"
		}
		if c&0x800 > 0 { // Bit 11 set, warning with code in bit 0:6
			return lookup("warning", warnMsg, c&0x7f)
		}
		// error with code in bit 0:6
		return lookup("error", fmt0Msg, c&0x7f)
	}
	msg := lookup("error", fmt1Msg, c&0x3f)
	if c&0x40 > 0 { // Bit 6 set, parameter number in 8:11
		return fmt.Sprintf("parameter %d, %s", (c&0xf00)>>8, msg)
	}
	if c&0x800 == 0 { // Bit 11 unset, handle in 8:10
		return fmt.Sprintf("handle %d, %s", (c&0x700)>>8, msg)
	}
	return fmt.Sprintf("session %d, %s", (c&0x700)>>8, msg)
}

func lookup(kind string, msgs map[uint32]string, c uint32) string {
	if msg, ok := msgs[c]; ok {
		return msg
	}
	return fmt.Sprintf("%s code 0x%x", kind, c)
}

// TransportError wraps a failure of the transport to exchange a command.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("TPM transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
