// Copyright (c) 2018, Google Inc. All rights reserved.
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

// Package tpmutil provides the TPM 2.0 wire primitives: byte order
// conversion, a bounds-checked decode cursor, struct packing and the raw
// command/response exchange over a device handle.
package tpmutil

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// MaxResponseSize is the capacity of the receive buffer. The TPM spec defines
// the longest possible response to be this many bytes.
const MaxResponseSize = 4096

// ErrNilTPM is returned when a command is run against a nil handle.
var ErrNilTPM = errors.New("nil TPM handle")

// RunCommandRaw writes inb to rw in a single write and reads back one
// response. The returned slice holds exactly the bytes the device returned,
// not the whole receive buffer.
func RunCommandRaw(rw io.ReadWriter, inb []byte) ([]byte, error) {
	if rw == nil {
		return nil, ErrNilTPM
	}

	n, err := rw.Write(inb)
	if err != nil {
		return nil, err
	}
	if n != len(inb) {
		return nil, fmt.Errorf("partial TPM write: only %d of %d bytes", n, len(inb))
	}

	// If the TPM is a real device, it may not be ready for reading
	// immediately after writing the command. Wait until the file
	// descriptor is ready to be read from.
	if f, ok := rw.(*os.File); ok {
		if err := poll(f); err != nil {
			return nil, err
		}
	}

	outb := make([]byte, MaxResponseSize)
	outlen, err := rw.Read(outb)
	// An io.EOF after reading some data is fine.
	if err != nil && !(outlen > 0 && errors.Is(err, io.EOF)) {
		return nil, err
	}
	// Resize the buffer to match the amount read from the TPM.
	return outb[:outlen], nil
}
