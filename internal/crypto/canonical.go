package crypto

import "encoding/binary"

// Encoder accumulates a canonical byte encoding: fields are concatenated in
// a fixed, caller-declared order, with a 4-byte big-endian length prefix on
// every variable-length field. This is the encoding signatures are computed
// over throughout LogiChain (spec §4.1).
type Encoder struct {
	buf []byte
}

// NewEncoder constructs an empty canonical encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Fixed appends a fixed-size field verbatim, with no length prefix.
func (e *Encoder) Fixed(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Uint64 appends a big-endian fixed-size uint64 field.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return e.Fixed(tmp[:])
}

// Uint32 appends a big-endian fixed-size uint32 field.
func (e *Encoder) Uint32(v uint32) *Encoder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return e.Fixed(tmp[:])
}

// Byte appends a single byte field.
func (e *Encoder) Byte(v byte) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// Variable appends a variable-length field prefixed by its 4-byte
// big-endian length.
func (e *Encoder) Variable(b []byte) *Encoder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	e.buf = append(e.buf, tmp[:]...)
	e.buf = append(e.buf, b...)
	return e
}

// Bytes returns the accumulated canonical encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}
