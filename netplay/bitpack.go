package netplay

import "errors"

var ErrCheckpointTruncated = errors.New("checkpoint truncated")

// bitWriter packs values MSB-first into a byte slice.
type bitWriter struct {
	buf   []byte
	acc   uint64
	nbits uint
}

func (w *bitWriter) WriteBits(v uint64, width uint) {
	for width > 0 {
		take := min(width, 64-w.nbits, 8)
		shift := width - take
		chunk := (v >> shift) & (1<<take - 1)
		w.acc = w.acc<<take | chunk
		w.nbits += take
		width -= take
		for w.nbits >= 8 {
			w.nbits -= 8
			w.buf = append(w.buf, byte(w.acc>>w.nbits))
		}
	}
}

func (w *bitWriter) WriteBool(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteUvarint writes 7-bit groups, each preceded by a continuation bit.
func (w *bitWriter) WriteUvarint(v uint64) {
	for v >= 0x80 {
		w.WriteBits(1, 1)
		w.WriteBits(v&0x7F, 7)
		v >>= 7
	}
	w.WriteBits(0, 1)
	w.WriteBits(v, 7)
}

// Bytes flushes the pending bits, zero padded.
func (w *bitWriter) Bytes() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.acc<<(8-w.nbits)))
		w.acc, w.nbits = 0, 0
	}
	return w.buf
}

type bitReader struct {
	data []byte
	pos  uint // bit offset
	err  error
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// ReadBits returns 0 once an error has been recorded; check Err at the end.
func (r *bitReader) ReadBits(width uint) uint64 {
	if r.err != nil {
		return 0
	}
	if r.pos+width > uint(len(r.data))*8 {
		r.err = ErrCheckpointTruncated
		return 0
	}
	var v uint64
	for range width {
		b := r.data[r.pos/8] >> (7 - r.pos%8) & 1
		v = v<<1 | uint64(b)
		r.pos++
	}
	return v
}

func (r *bitReader) ReadBool() bool {
	return r.ReadBits(1) == 1
}

func (r *bitReader) ReadUvarint() uint64 {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		more := r.ReadBool()
		group := r.ReadBits(7)
		if r.err != nil {
			return 0
		}
		if shift >= 64 {
			r.err = ErrCorruptCheckpoint
			return 0
		}
		v |= group << shift
		if !more {
			return v
		}
	}
}

func (r *bitReader) Err() error {
	return r.err
}

// Remaining is the number of unread bits, padding included.
func (r *bitReader) Remaining() uint {
	return uint(len(r.data))*8 - r.pos
}
