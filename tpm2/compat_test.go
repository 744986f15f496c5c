package tpm2

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	gotpm "github.com/google/go-tpm/tpm2"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// The selection and digest encodings must agree byte for byte with the
// reflection-based marshaller in go-tpm.

func TestPCRSelectionMatchesGoTPM(t *testing.T) {
	for _, hash := range []Algorithm{AlgSHA1, AlgSHA256, AlgSHA384} {
		for index := 0; index < NumPCRs; index++ {
			sel, err := NewPCRSelection(index, hash)
			if err != nil {
				t.Fatal(err)
			}
			got, err := tpmutil.Pack(&PCRSelectionList{PCRSelections: []PCRSelection{sel}})
			if err != nil {
				t.Fatalf("Pack() = %v", err)
			}
			want := gotpm.Marshal(gotpm.TPMLPCRSelection{
				PCRSelections: []gotpm.TPMSPCRSelection{{
					Hash:      gotpm.TPMAlgID(hash),
					PCRSelect: gotpm.PCClientCompatible.PCRs(uint(index)),
				}},
			})
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("PCR %d (%v) selection mismatch (-go-tpm +ours):\n%s", index, hash, diff)
			}

			back, err := gotpm.Unmarshal[gotpm.TPMLPCRSelection](got)
			if err != nil {
				t.Fatalf("go-tpm could not unmarshal our selection: %v", err)
			}
			if diff := cmp.Diff(sel.PCRSelect, back.PCRSelections[0].PCRSelect); diff != "" {
				t.Errorf("PCR %d (%v) bitmap mismatch after go-tpm decode (-ours +go-tpm):\n%s", index, hash, diff)
			}
		}
	}
}

func TestDigestListMatchesGoTPM(t *testing.T) {
	digests := []Digest{pattern(0, 20), pattern(0x40, 32), {}}
	want := gotpm.Marshal(gotpm.TPMLDigest{Digests: []gotpm.TPM2BDigest{
		{Buffer: digests[0]},
		{Buffer: digests[1]},
		{Buffer: digests[2]},
	}})
	got, err := tpmutil.Pack(&DigestList{Digests: digests})
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("digest list mismatch (-go-tpm +ours):\n%s", diff)
	}

	var back DigestList
	if err := back.TPMUnmarshal(tpmutil.NewDecoder(want)); err != nil {
		t.Fatalf("TPMUnmarshal(go-tpm bytes) = %v", err)
	}
	if diff := cmp.Diff(digests, back.Digests); diff != "" {
		t.Errorf("decoded go-tpm digests mismatch (-want +got):\n%s", diff)
	}
}
