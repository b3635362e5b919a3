package block

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/caiorlm/logichain/internal/crypto"
)

// WireVersion is the current block header wire format version.
const WireVersion uint32 = 1

// ModeTag distinguishes an ON_GRID block (full BFT finalization, higher
// caps) from an OFF_GRID one (PoW+PoD only, reduced caps), spec §4.
type ModeTag byte

const (
	ModeOnGrid  ModeTag = 0
	ModeOffGrid ModeTag = 1
)

func (m ModeTag) String() string {
	if m == ModeOffGrid {
		return "OFF_GRID"
	}
	return "ON_GRID"
}

// ErrUnsupportedVersion is returned decoding a header with an unknown wire
// version.
var ErrUnsupportedVersion = errors.New("block: unsupported wire version")

// Header is the block header spec §3/§6 describes. Height is not carried
// on the wire (it is implied by the header's position once linked into a
// chain via ParentHash) — it lives on Block for in-memory convenience,
// mirroring spec §6's literal field list for "Block wire format".
type Header struct {
	ParentHash   [32]byte
	MerkleRoot   [32]byte
	Timestamp    float64
	Difficulty   uint32
	Nonce        uint64
	MinerAddress crypto.Address
	Mode         ModeTag
	Attestations []crypto.Signature
}

// fixedBytes returns the part of the header that is mined over and that
// validators sign: every field up to and including mode_tag, in wire
// order, excluding attestation_count/attestations — those can't be part of
// what a signature commits to, since they are produced after the header
// hash already exists.
func (h Header) fixedBytes() []byte {
	e := crypto.NewEncoder()
	e.Uint32(WireVersion)
	e.Fixed(h.ParentHash[:])
	e.Fixed(h.MerkleRoot[:])
	e.Uint64(math.Float64bits(h.Timestamp))
	e.Uint32(h.Difficulty)
	e.Uint64(h.Nonce)
	e.Fixed(h.MinerAddress[:])
	e.Byte(byte(h.Mode))
	return e.Bytes()
}

// Hash returns the block header's double-SHA-256 hash: the PoW target and
// the message BFT validators attest over.
func (h Header) Hash() [32]byte {
	return crypto.DoubleHash(h.fixedBytes())
}

// LeadingZeroBits counts how many leading zero bits hash has, the PoW
// difficulty unit spec §3 specifies ("leading-zero bit count target")
// rather than the teacher's leading-hex-zero-character count.
func LeadingZeroBits(hash [32]byte) uint32 {
	var bits uint32
	for _, b := range hash {
		if b == 0 {
			bits += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if b&mask != 0 {
				return bits
			}
			bits++
		}
	}
	return bits
}

// MeetsDifficulty reports whether hash has at least difficulty leading
// zero bits.
func MeetsDifficulty(hash [32]byte, difficulty uint32) bool {
	return LeadingZeroBits(hash) >= difficulty
}

// Encode produces the bit-exact wire encoding of the header, including the
// attestation set, per spec §6's "Block wire format (bit-exact)".
func (h Header) Encode() []byte {
	buf := make([]byte, 0, 4+32+32+8+4+8+23+1+2+len(h.Attestations)*64)
	buf = append(buf, h.fixedBytes()...)

	var cnt [2]byte
	binary.BigEndian.PutUint16(cnt[:], uint16(len(h.Attestations)))
	buf = append(buf, cnt[:]...)

	for _, sig := range h.Attestations {
		buf = append(buf, sig.Bytes[:]...)
	}
	return buf
}

// DecodeHeader parses the bit-exact wire encoding produced by Encode.
// Decoded attestations are tagged SchemeEd25519, the only scheme
// validators use (spec §4.1).
func DecodeHeader(b []byte) (Header, int, error) {
	const fixedLen = 4 + 32 + 32 + 8 + 4 + 8 + 23 + 1
	if len(b) < fixedLen+2 {
		return Header{}, 0, errors.New("block: header wire payload too short")
	}

	pos := 0
	version := binary.BigEndian.Uint32(b[pos : pos+4])
	pos += 4
	if version != WireVersion {
		return Header{}, 0, ErrUnsupportedVersion
	}

	var h Header
	copy(h.ParentHash[:], b[pos:pos+32])
	pos += 32
	copy(h.MerkleRoot[:], b[pos:pos+32])
	pos += 32

	h.Timestamp = math.Float64frombits(binary.BigEndian.Uint64(b[pos : pos+8]))
	pos += 8

	h.Difficulty = binary.BigEndian.Uint32(b[pos : pos+4])
	pos += 4

	h.Nonce = binary.BigEndian.Uint64(b[pos : pos+8])
	pos += 8

	copy(h.MinerAddress[:], b[pos:pos+23])
	pos += 23

	h.Mode = ModeTag(b[pos])
	pos++

	attCount := binary.BigEndian.Uint16(b[pos : pos+2])
	pos += 2

	if len(b) < pos+int(attCount)*64 {
		return Header{}, 0, errors.New("block: header attestation list exceeds buffer")
	}
	h.Attestations = make([]crypto.Signature, attCount)
	for i := 0; i < int(attCount); i++ {
		h.Attestations[i].Scheme = crypto.SchemeEd25519
		copy(h.Attestations[i].Bytes[:], b[pos:pos+64])
		pos += 64
	}

	return h, pos, nil
}
