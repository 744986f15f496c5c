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

import "io"

// RawBytes is for Pack arguments that are already encoded. It is written
// without any length prefix.
type RawBytes []byte

// Tag is a command tag.
type Tag uint16

// Command is an identifier of a TPM command.
type Command uint32

// CommandHeader is the header for a TPM 2.0 command. Size counts the whole
// command, header included.
type CommandHeader struct {
	Tag  Tag
	Size uint32
	Cmd  Command
}

// ResponseCode is a response code returned by TPM.
type ResponseCode uint32

// RCSuccess is response code for successful command.
const RCSuccess ResponseCode = 0x000

// ResponseHeader is a header for TPM responses.
type ResponseHeader struct {
	Tag  Tag
	Size uint32
	Res  ResponseCode
}

// Header sizes on the wire.
const (
	CommandHeaderSize  = 10
	ResponseHeaderSize = 10
)

// SelfMarshaler allows custom types to override default encoding/decoding
// behavior in Pack and UnpackBuf. Types with variable-length wire forms
// (count- or size-prefixed arrays) implement it.
type SelfMarshaler interface {
	TPMMarshal(out io.Writer) error
	TPMUnmarshal(in *Decoder) error
}
