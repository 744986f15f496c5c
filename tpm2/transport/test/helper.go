// Package testhelper provides some helper code for TPM transport tests.
package testhelper

import (
	"errors"
	"testing"

	"github.com/google/go-tpm-pcr/tpm2"
	"github.com/google/go-tpm-pcr/tpm2/transport"
	"github.com/google/go-tpm-pcr/tpmutil"
)

// RunTest checks that the connection to the given TPM seems to be working.
func RunTest(t *testing.T, skipErrs []error, tpmOpener func() (transport.TPMCloser, error)) {
	tpm, err := tpmOpener()
	for _, skipErr := range skipErrs {
		if errors.Is(err, skipErr) {
			t.Skipf("%v", err)
		}
	}
	if err != nil {
		t.Fatalf("Failed to open TPM: %v", err)
	}
	defer func(tpm transport.TPMCloser) {
		if err := tpm.Close(); err != nil {
			t.Fatalf("tpm.Close() = %v", err)
		}
	}(tpm)

	// Read PCR 0 as a basic consistency check. Every PC Client TPM has a
	// SHA256 bank allocated.
	digest, err := tpm2.ReadPCR(tpm, 0, tpm2.AlgSHA256)
	for _, skipErr := range skipErrs {
		if errors.Is(err, skipErr) {
			t.Skipf("%v", err)
		}
	}
	if err != nil {
		t.Fatalf("ReadPCR() = %v", err)
	}
	if len(digest) != tpm2.AlgSHA256.DigestSize() {
		t.Fatalf("ReadPCR() returned %d bytes, want %d", len(digest), tpm2.AlgSHA256.DigestSize())
	}
	t.Logf("PCR[0] (SHA256): %x", []byte(digest))
}

// PCRReadResponse builds a successful TPM2_PCR_Read response echoing sel and
// carrying digests, as a TPM would send it.
func PCRReadResponse(t testing.TB, counter uint32, sel tpm2.PCRSelection, digests ...tpm2.Digest) []byte {
	t.Helper()
	selOut := tpm2.PCRSelectionList{PCRSelections: []tpm2.PCRSelection{sel}}
	values := tpm2.DigestList{Digests: digests}
	body, err := tpmutil.Pack(counter, &selOut, &values)
	if err != nil {
		t.Fatalf("packing response body: %v", err)
	}
	hdr, err := tpmutil.Pack(tpmutil.ResponseHeader{
		Tag:  0x8001,
		Size: uint32(tpmutil.ResponseHeaderSize + len(body)),
		Res:  tpmutil.RCSuccess,
	})
	if err != nil {
		t.Fatalf("packing response header: %v", err)
	}
	return append(hdr, body...)
}
