//go:build windows

package windowstpm

import (
	"errors"
	"os"
	"testing"

	testhelper "github.com/google/go-tpm-pcr/tpm2/transport/test"
)

func TestLocalTPM(t *testing.T) {
	testhelper.RunTest(t, []error{os.ErrNotExist, os.ErrPermission, ErrNoTPM}, Open)
}

func TestTBSError(t *testing.T) {
	if err := tbsError(0); err != nil {
		t.Errorf("tbsError(0) = %v", err)
	}
	if err := tbsError(tbsErrTPMNotFound); !errors.Is(err, ErrNoTPM) {
		t.Errorf("tbsError(TPM not found) = %v, want ErrNoTPM", err)
	}
	if err := tbsError(0x80280000); err == nil {
		t.Error("tbsError(unknown) = nil")
	}
}

func TestSendAfterClose(t *testing.T) {
	tpm, err := Open()
	if err != nil {
		t.Skipf("Open() = %v", err)
	}
	if err := tpm.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if _, err := tpm.Send([]byte{0x80, 0x01}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close = %v, want ErrClosed", err)
	}
}
