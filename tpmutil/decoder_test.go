package tpmutil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecoderReads(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x00, 0x0B, 0x00, 0x00, 0x01, 0x7E, 0xAA, 0xBB})

	u8, err := d.Uint8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("Uint8() = %#x, %v, want 0x01", u8, err)
	}
	u16, err := d.Uint16()
	if err != nil || u16 != 0x000B {
		t.Fatalf("Uint16() = %#x, %v, want 0x000b", u16, err)
	}
	u32, err := d.Uint32()
	if err != nil || u32 != 0x0000017E {
		t.Fatalf("Uint32() = %#x, %v, want 0x17e", u32, err)
	}
	if d.Offset() != 7 || d.Remaining() != 2 {
		t.Fatalf("Offset(), Remaining() = %d, %d, want 7, 2", d.Offset(), d.Remaining())
	}
	b, err := d.Bytes(2)
	if err != nil {
		t.Fatalf("Bytes(2) = %v", err)
	}
	if diff := cmp.Diff([]byte{0xAA, 0xBB}, b); diff != "" {
		t.Errorf("Bytes(2) mismatch (-want +got):\n%s", diff)
	}
	if d.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", d.Remaining())
	}
}

func TestDecoderBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	d := NewDecoder(src)
	b, err := d.Bytes(3)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 9
	if b[0] != 1 {
		t.Error("Bytes() aliases the decoded buffer")
	}
}

func TestDecoderTruncated(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		read func(d *Decoder) error
	}{
		{"uint8 on empty", nil, func(d *Decoder) error { _, err := d.Uint8(); return err }},
		{"uint16 on one byte", []byte{1}, func(d *Decoder) error { _, err := d.Uint16(); return err }},
		{"uint32 on three bytes", []byte{1, 2, 3}, func(d *Decoder) error { _, err := d.Uint32(); return err }},
		{"bytes past end", []byte{1, 2, 3}, func(d *Decoder) error { _, err := d.Bytes(4); return err }},
		{"negative length", []byte{1, 2, 3}, func(d *Decoder) error { _, err := d.Bytes(-1); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.in)
			err := tt.read(d)
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("got %v, want %v", err, ErrTruncated)
			}
			if d.Offset() != 0 {
				t.Errorf("failed read advanced the cursor to %d", d.Offset())
			}
		})
	}
}
