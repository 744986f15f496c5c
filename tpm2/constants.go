// Copyright (c) 2014, Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tpm2

import (
	"crypto"
	"fmt"
	"strings"

	"github.com/google/go-tpm-pcr/tpmutil"
)

// Algorithm represents a TPM_ALG_ID value.
type Algorithm uint16

// Hash algorithms a PCR bank can be allocated with.
const (
	AlgSHA1    Algorithm = 0x0004
	AlgSHA256  Algorithm = 0x000B
	AlgSHA384  Algorithm = 0x000C
	AlgSHA512  Algorithm = 0x000D
	AlgSM3_256 Algorithm = 0x0012
)

var algNames = map[Algorithm]string{
	AlgSHA1:    "SHA1",
	AlgSHA256:  "SHA256",
	AlgSHA384:  "SHA384",
	AlgSHA512:  "SHA512",
	AlgSM3_256: "SM3_256",
}

func (a Algorithm) String() string {
	if name, ok := algNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(0x%04x)", uint16(a))
}

// DigestSize returns the size in bytes of a digest produced by a, or 0 if a is
// not a known hash algorithm.
func (a Algorithm) DigestSize() int {
	switch a {
	case AlgSHA1:
		return crypto.SHA1.Size()
	case AlgSHA256, AlgSM3_256:
		return crypto.SHA256.Size()
	case AlgSHA384:
		return crypto.SHA384.Size()
	case AlgSHA512:
		return crypto.SHA512.Size()
	}
	return 0
}

// ParseAlgorithm looks up a hash algorithm by its name, e.g. "sha256".
func ParseAlgorithm(name string) (Algorithm, error) {
	for alg, n := range algNames {
		if strings.EqualFold(n, name) {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("unknown hash algorithm %q", name)
}

const (
	tagNoSessions tpmutil.Tag     = 0x8001
	cmdPCRRead    tpmutil.Command = 0x0000017E
)

// PC Client platform limits.
const (
	// NumPCRs is the number of PCRs a PC Client TPM must implement.
	NumPCRs = 24
	// MaxPCRIndex is the highest PCR index accepted by NewPCRSelection.
	MaxPCRIndex = NumPCRs - 1
	// PCRSelectMax is the size in bytes of a PCR select bitmap.
	PCRSelectMax = NumPCRs / 8
	// MaxDigestSize is the size of the largest digest of any supported
	// hash algorithm (SHA512).
	MaxDigestSize = 64
	// MaxPCRSelections bounds the count of a decoded selection list.
	MaxPCRSelections = 16
	// MaxDigests bounds the count of a decoded digest list. TPM2_PCR_Read
	// never returns more than eight digests.
	MaxDigests = 8
)
