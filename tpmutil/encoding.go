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

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
)

var (
	selfMarshalerType = reflect.TypeOf((*SelfMarshaler)(nil)).Elem()
	rawBytesType      = reflect.TypeOf(RawBytes(nil))
)

// Pack encodes a set of elements into a single byte array. Unsigned integers
// of 8, 16 and 32 bits are written in wire order, structs field by field, and
// RawBytes verbatim. Anything variable-length must implement SelfMarshaler.
func Pack(elts ...interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := packType(buf, elts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// tryMarshal attempts to use a TPMMarshal() method defined on the type
// to pack v into buf. True is returned if the method exists and the
// marshal was attempted.
func tryMarshal(buf io.Writer, v reflect.Value) (bool, error) {
	t := v.Type()
	if t.Implements(selfMarshalerType) {
		if t.Kind() == reflect.Ptr && v.IsNil() {
			return true, fmt.Errorf("cannot pack nil %s", t.String())
		}
		return true, v.Interface().(SelfMarshaler).TPMMarshal(buf)
	}

	// A non-pointer struct field whose pointer type implements the
	// interface: copy it so there is something addressable to call on.
	if reflect.PointerTo(t).Implements(selfMarshalerType) {
		tmp := reflect.New(t)
		tmp.Elem().Set(v)
		return true, tmp.Interface().(SelfMarshaler).TPMMarshal(buf)
	}

	return false, nil
}

func packValue(buf io.Writer, v reflect.Value) error {
	if canMarshal, err := tryMarshal(buf, v); canMarshal {
		return err
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return fmt.Errorf("cannot pack nil %s", v.Type().String())
		}
		return packValue(buf, v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := packValue(buf, v.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Uint8:
		_, err := buf.Write([]byte{uint8(v.Uint())})
		return err
	case reflect.Uint16:
		var b [2]byte
		PutUint16(b[:], uint16(v.Uint()))
		_, err := buf.Write(b[:])
		return err
	case reflect.Uint32:
		var b [4]byte
		PutUint32(b[:], uint32(v.Uint()))
		_, err := buf.Write(b[:])
		return err
	case reflect.Slice:
		if v.Type() == rawBytesType {
			_, err := buf.Write(v.Bytes())
			return err
		}
	}
	return fmt.Errorf("cannot pack value of type %s", v.Type().String())
}

func packType(buf io.Writer, elts ...interface{}) error {
	for _, e := range elts {
		if e == nil {
			return errors.New("cannot pack nil interface")
		}
		if err := packValue(buf, reflect.ValueOf(e)); err != nil {
			return err
		}
	}
	return nil
}

// tryUnmarshal attempts to use TPMUnmarshal() to perform the
// unpack, if the given value implements SelfMarshaler.
func tryUnmarshal(d *Decoder, v reflect.Value) (bool, error) {
	t := v.Type()
	if t.Kind() == reflect.Ptr && t.Implements(selfMarshalerType) {
		if v.IsNil() {
			return true, fmt.Errorf("cannot unpack into nil %s", t.String())
		}
		return true, v.Interface().(SelfMarshaler).TPMUnmarshal(d)
	}
	if v.CanAddr() && reflect.PointerTo(t).Implements(selfMarshalerType) {
		return true, v.Addr().Interface().(SelfMarshaler).TPMUnmarshal(d)
	}
	return false, nil
}

func unpackValue(d *Decoder, v reflect.Value) error {
	if didUnmarshal, err := tryUnmarshal(d, v); didUnmarshal {
		return err
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return fmt.Errorf("cannot unpack into nil %s", v.Type().String())
		}
		return unpackValue(d, v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := unpackValue(d, v.Field(i)); err != nil {
				return err
			}
		}
		return nil
	}

	if !v.CanSet() {
		return fmt.Errorf("cannot unpack unaddressable leaf type %q", v.Type().String())
	}
	switch v.Kind() {
	case reflect.Uint8:
		x, err := d.Uint8()
		if err != nil {
			return err
		}
		v.SetUint(uint64(x))
	case reflect.Uint16:
		x, err := d.Uint16()
		if err != nil {
			return err
		}
		v.SetUint(uint64(x))
	case reflect.Uint32:
		x, err := d.Uint32()
		if err != nil {
			return err
		}
		v.SetUint(uint64(x))
	default:
		return fmt.Errorf("cannot unpack value of type %s", v.Type().String())
	}
	return nil
}

// Unpack is a convenience wrapper around UnpackBuf. Unpack returns the number
// of bytes read from b to fill elts and error, if any.
func Unpack(b []byte, elts ...interface{}) (int, error) {
	d := NewDecoder(b)
	err := UnpackBuf(d, elts...)
	return d.Offset(), err
}

// UnpackBuf decodes elts in order from d, mirroring Pack. All elements must
// be non-nil pointers. Each element starts where the previous one ended.
func UnpackBuf(d *Decoder, elts ...interface{}) error {
	for _, e := range elts {
		if e == nil {
			return errors.New("nil interface passed to UnpackBuf")
		}
		v := reflect.ValueOf(e)
		if v.Kind() != reflect.Ptr {
			return fmt.Errorf("non-pointer value %q passed to UnpackBuf", v.Type().String())
		}
		if v.IsNil() {
			return errors.New("nil pointer passed to UnpackBuf")
		}

		if err := unpackValue(d, v); err != nil {
			return err
		}
	}
	return nil
}
