package netplay

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

type bitField struct {
	varint bool
	width  uint
	value  uint64
}

func TestBitpack_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fields := rapid.SliceOf(rapid.Custom(func(t *rapid.T) bitField {
			if rapid.Bool().Draw(t, "varint") {
				return bitField{varint: true, value: rapid.Uint64().Draw(t, "value")}
			}
			width := uint(rapid.IntRange(1, 64).Draw(t, "width"))
			v := rapid.Uint64().Draw(t, "value")
			if width < 64 {
				v &= 1<<width - 1
			}
			return bitField{width: width, value: v}
		})).Draw(t, "fields")

		w := &bitWriter{}
		for _, f := range fields {
			if f.varint {
				w.WriteUvarint(f.value)
			} else {
				w.WriteBits(f.value, f.width)
			}
		}
		r := newBitReader(w.Bytes())
		for i, f := range fields {
			var got uint64
			if f.varint {
				got = r.ReadUvarint()
			} else {
				got = r.ReadBits(f.width)
			}
			if got != f.value {
				t.Fatalf("field %d: got %d, want %d", i, got, f.value)
			}
		}
		if r.Err() != nil {
			t.Fatalf("err = %v", r.Err())
		}
		if r.Remaining() >= 8 {
			t.Fatalf("%d bits left over", r.Remaining())
		}
	})
}

func TestBitReader_Truncated(t *testing.T) {
	r := newBitReader([]byte{0xff})
	if v := r.ReadBits(4); v != 0xf {
		t.Fatalf("v = %x", v)
	}
	if v := r.ReadBits(5); v != 0 || !errors.Is(r.Err(), ErrCheckpointTruncated) {
		t.Fatalf("v = %x, err = %v", v, r.Err())
	}
	// エラー後は常に0
	if r.ReadBool() {
		t.Fatal("read after error")
	}
}
