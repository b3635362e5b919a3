// Package crypto provides the hashing, signing, address derivation and
// mnemonic support shared by every other LogiChain package.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroHash represents a hash code of zeros, used for the genesis block's
// parent hash and as a sentinel on marshal failure.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Hash returns the single SHA-256 hash of the canonical JSON encoding of
// value, hex-encoded with a 0x prefix. Used for everything except block and
// transaction hashes, which require the extra collision margin of
// DoubleHash.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	h := sha256.Sum256(data)
	return hexutil.Encode(h[:])
}

// DoubleHash returns SHA-256(SHA-256(data)), the block and transaction
// hashing scheme. The extra round buys back the length-extension and
// collision margin a single SHA-256 pass gives up.
func DoubleHash(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// DoubleHashValue double-hashes the canonical JSON encoding of value.
func DoubleHashValue(value any) ([32]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return [32]byte{}, err
	}
	return DoubleHash(data), nil
}

// HashHex returns the hex string (no 0x prefix) of a 32-byte hash.
func HashHex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
