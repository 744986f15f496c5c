//go:build windows

// Package windowstpm implements the TPM transport on Windows using the TPM
// Base Services in Tbs.dll.
package windowstpm

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/google/go-tpm-pcr/tpm2/transport"
	"github.com/google/go-tpm-pcr/tpmutil"
)

// https://docs.microsoft.com/en-us/windows/desktop/TBS/tpm-base-services-portal
var (
	tbsDLL           = windows.NewLazySystemDLL("Tbs.dll")
	tbsCreateContext = tbsDLL.NewProc("Tbsi_Context_Create")
	tbsSubmitCommand = tbsDLL.NewProc("Tbsip_Submit_Command")
	tbsContextClose  = tbsDLL.NewProc("Tbsip_Context_Close")
)

var (
	// ErrNoTPM indicates that TBS found no compatible TPM.
	ErrNoTPM = errors.New("no compatible TPM 2.0 found")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("TBS context is closed")
)

// tbs.h
const (
	tpmVersion20      uint32  = 2
	includeTPM20      uint32  = 1 << 2
	commandLocality0  uintptr = 0
	normalPriority    uintptr = 200
	tbsErrTPMNotFound uintptr = 0x8028400F
)

// TDTBS_CONTEXT_PARAMS2
type contextParams2 struct {
	version uint32
	flags   uint32
}

// https://docs.microsoft.com/en-us/windows/desktop/TBS/tbs-return-codes
var tbsErrors = map[uintptr]string{
	0x80284001: "internal software error",
	0x80284002: "invalid parameter",
	0x80284004: "invalid context handle",
	0x80284005: "output buffer too small",
	0x80284006: "error communicating with the TPM",
	0x80284008: "TBS service is not running",
	0x80284009: "too many open contexts",
	0x8028400B: "TBS service is starting",
	0x8028400D: "command canceled",
	0x8028400E: "buffer too large",
	0x8028400F: "TPM not found",
	0x80284010: "TBS service disabled",
	0x80284012: "access denied",
}

func tbsError(rc uintptr) error {
	if rc == 0 {
		return nil
	}
	if rc == tbsErrTPMNotFound {
		return ErrNoTPM
	}
	if desc, ok := tbsErrors[rc]; ok {
		return fmt.Errorf("TBS error 0x%x: %s", rc, desc)
	}
	return fmt.Errorf("unrecognized TBS error 0x%x", rc)
}

type tbsTPM struct {
	mu     sync.Mutex
	handle uintptr
	closed bool
}

// Open creates a TBS context limited to TPM 2.0 commands.
func Open() (transport.TPMCloser, error) {
	params := contextParams2{
		version: tpmVersion20,
		flags:   includeTPM20,
	}
	t := &tbsTPM{}
	rc, _, _ := tbsCreateContext.Call(
		uintptr(unsafe.Pointer(&params)),
		uintptr(unsafe.Pointer(&t.handle)),
	)
	if err := tbsError(rc); err != nil {
		return nil, err
	}
	return t, nil
}

// Send implements the TPM interface. TBS hands back the whole response in
// one call, so there is no stream to drain.
func (t *tbsTPM) Send(cmd []byte) ([]byte, error) {
	if len(cmd) == 0 {
		return nil, errors.New("empty command")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	rsp := make([]byte, tpmutil.MaxResponseSize)
	rspLen := uint32(len(rsp))
	rc, _, _ := tbsSubmitCommand.Call(
		t.handle,
		commandLocality0,
		normalPriority,
		uintptr(unsafe.Pointer(&cmd[0])),
		uintptr(len(cmd)),
		uintptr(unsafe.Pointer(&rsp[0])),
		uintptr(unsafe.Pointer(&rspLen)),
	)
	if err := tbsError(rc); err != nil {
		return nil, err
	}
	return rsp[:rspLen], nil
}

// Close implements the io.Closer interface. Closing twice is a no-op.
func (t *tbsTPM) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	rc, _, _ := tbsContextClose.Call(t.handle)
	return tbsError(rc)
}
