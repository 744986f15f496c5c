// Copyright (c) 2018, Google LLC All rights reserved.
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

package tpmutil

import "encoding/binary"

// hostIsBigEndian reports whether native integers are already in TPM wire
// order.
var hostIsBigEndian = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// Swap16 reverses the two bytes of v.
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Swap32 reverses the four bytes of v. It swaps each half with Swap16 and
// then exchanges the halves.
func Swap32(v uint32) uint32 {
	lo := uint32(Swap16(uint16(v)))
	hi := uint32(Swap16(uint16(v >> 16)))
	return lo<<16 | hi
}

// ToWire16 converts a host-order value into the value whose native memory
// layout is the big-endian wire layout. Applying it twice returns v.
func ToWire16(v uint16) uint16 {
	if hostIsBigEndian {
		return v
	}
	return Swap16(v)
}

// ToWire32 is the 32-bit counterpart of ToWire16.
func ToWire32(v uint32) uint32 {
	if hostIsBigEndian {
		return v
	}
	return Swap32(v)
}

// ToHost16 is the inverse of ToWire16.
func ToHost16(v uint16) uint16 { return ToWire16(v) }

// ToHost32 is the inverse of ToWire32.
func ToHost32(v uint32) uint32 { return ToWire32(v) }

// PutUint16 stores v into b[:2] in wire order.
func PutUint16(b []byte, v uint16) {
	binary.NativeEndian.PutUint16(b, ToWire16(v))
}

// PutUint32 stores v into b[:4] in wire order.
func PutUint32(b []byte, v uint32) {
	binary.NativeEndian.PutUint32(b, ToWire32(v))
}

// Uint16 reads a wire-order value from b[:2].
func Uint16(b []byte) uint16 {
	return ToHost16(binary.NativeEndian.Uint16(b))
}

// Uint32 reads a wire-order value from b[:4].
func Uint32(b []byte) uint32 {
	return ToHost32(binary.NativeEndian.Uint32(b))
}
