package merkle

import (
	"crypto/sha256"
	"hash"
)

// doubleSHA256 implements hash.Hash by buffering everything written to it
// and, on Sum, hashing the buffered bytes with SHA-256 twice. Block and
// transaction hashing throughout LogiChain uses this same double round
// (spec §4.1's "double-SHA-256 for block and tx hashes"); the merkle tree
// uses it as its pairwise hash strategy so merkle proofs are computed with
// the same primitive the rest of the chain hashes with.
type doubleSHA256 struct {
	buf []byte
}

// newDoubleSHA256 constructs a doubleSHA256 hash.Hash for use as a merkle
// tree hash strategy.
func newDoubleSHA256() hash.Hash {
	return &doubleSHA256{}
}

func (d *doubleSHA256) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

func (d *doubleSHA256) Sum(b []byte) []byte {
	first := sha256.Sum256(d.buf)
	second := sha256.Sum256(first[:])
	return append(b, second[:]...)
}

func (d *doubleSHA256) Reset() { d.buf = d.buf[:0] }

func (d *doubleSHA256) Size() int { return sha256.Size }

func (d *doubleSHA256) BlockSize() int { return sha256.BlockSize }
