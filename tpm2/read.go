package tpm2

import (
	"errors"

	"github.com/golang/glog"

	"github.com/google/go-tpm-pcr/tpm2/transport"
)

// ReadPCR reads PCR index from the bank of hash with a single TPM2_PCR_Read
// exchange. There are no retries: a transport failure is returned as a
// *TransportError, a TPM failure as a *DeviceError.
func ReadPCR(t transport.TPM, index int, hash Algorithm) (Digest, error) {
	if t == nil {
		return nil, errNilTPM
	}
	cmd, err := NewPCRReadCommand(index, hash)
	if err != nil {
		return nil, err
	}
	cmdBytes, err := cmd.Marshal()
	if err != nil {
		return nil, err
	}
	rspBytes, err := t.Send(cmdBytes)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	rsp, err := ParsePCRReadResponse(rspBytes)
	if err != nil {
		return nil, err
	}
	if err := checkEcho(rsp.PCRSelectionOut, index, hash); err != nil {
		return nil, err
	}
	if n := len(rsp.PCRValues.Digests); n != 1 {
		return nil, malformed("%d digests returned for PCR %d, want 1", n, index)
	}
	return rsp.PCRValues.Digests[0], nil
}

// checkEcho requires the TPM to have read exactly PCR index of the hash
// bank, so the digest is never attributed to a PCR it does not belong to.
func checkEcho(out PCRSelectionList, index int, hash Algorithm) error {
	if n := len(out.PCRSelections); n != 1 {
		return malformed("%d banks read for PCR %d, want 1", n, index)
	}
	sel := out.PCRSelections[0]
	if sel.Hash != hash {
		return malformed("TPM read the %v bank, want %v", sel.Hash, hash)
	}
	if pcrs := sel.PCRs(); len(pcrs) != 1 || pcrs[0] != index {
		return malformed("TPM read PCRs %v, want [%d]", pcrs, index)
	}
	return nil
}

// Result is the outcome of reading one PCR. Exactly one of Digest and Err is
// set.
type Result struct {
	Index  int
	Hash   Algorithm
	Digest Digest
	Err    error
}

// A Reporter receives one Result per PCR index.
type Reporter interface {
	Report(Result)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Result)

// Report calls f(r).
func (f ReporterFunc) Report(r Result) { f(r) }

// Results collects every reported Result in order.
type Results []Result

// Report appends r.
func (rs *Results) Report(r Result) { *rs = append(*rs, r) }

var (
	errNilTPM      = errors.New("nil TPM transport")
	errNilReporter = errors.New("nil reporter")
)

// ReadPCRs reads PCRs 0 through MaxPCRIndex from the bank of hash, one
// command per index, and hands each outcome to r as soon as it is known. A
// failure for one index is reported and logged, and the loop moves on to the
// next index. The returned error is only set for a nil transport or reporter.
func ReadPCRs(t transport.TPM, hash Algorithm, r Reporter) error {
	if t == nil {
		return errNilTPM
	}
	if r == nil {
		return errNilReporter
	}
	for index := 0; index < NumPCRs; index++ {
		digest, err := ReadPCR(t, index, hash)
		if err != nil {
			glog.Warningf("Error reading PCR register #%d (%v): %v", index, hash, err)
			r.Report(Result{Index: index, Hash: hash, Err: err})
			continue
		}
		glog.V(2).Infof("PCR[%d] (%v) read, %d byte digest", index, hash, len(digest))
		r.Report(Result{Index: index, Hash: hash, Digest: digest})
	}
	return nil
}
