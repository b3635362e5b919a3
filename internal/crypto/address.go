package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// addressPrefix is the human-readable prefix carried in the first three
// bytes of every address, both in wire form and in the printable string.
const addressPrefix = "LGC"

// AddressSize is the wire size of an address: the 3-byte human prefix
// followed by the last 20 bytes of SHA-256(public key).
const AddressSize = 23

// Address identifies an account, validator or establishment. It is the
// 3-byte prefix "LGC" concatenated with the last 20 bytes of
// SHA-256(public key), exactly as carried on the wire (see spec §4.1/§6).
type Address [AddressSize]byte

// ZeroAddress is used for the reward transaction's from-address.
var ZeroAddress Address

// NewAddress derives the address for a raw public key (Ed25519 32-byte key
// or ECDSA uncompressed/compressed encoding — any byte form is accepted,
// hashing is agnostic to the key scheme per spec §4.1).
func NewAddress(publicKey []byte) Address {
	sum := sha256.Sum256(publicKey)

	var a Address
	copy(a[:3], addressPrefix)
	copy(a[3:], sum[12:32])
	return a
}

// String renders the address in its human-readable form: "LGC" followed by
// the hex encoding of the 20-byte hash suffix.
func (a Address) String() string {
	return addressPrefix + hex.EncodeToString(a[3:])
}

// IsZero reports whether this is the zero-value sentinel address used by
// MINING_REWARD transactions, which carry no sender.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// ParseAddress parses the human-readable "LGC<hex>" form back into an
// Address, validating the prefix and hex length.
func ParseAddress(s string) (Address, error) {
	if len(s) != len(addressPrefix)+2*(AddressSize-3) {
		return Address{}, errors.New("crypto: address has wrong length")
	}
	if s[:3] != addressPrefix {
		return Address{}, errors.New("crypto: address missing LGC prefix")
	}

	suffix, err := hex.DecodeString(s[3:])
	if err != nil {
		return Address{}, errors.New("crypto: address suffix is not valid hex")
	}

	var a Address
	copy(a[:3], addressPrefix)
	copy(a[3:], suffix)
	return a, nil
}

// AddressFromEd25519 derives the address for an Ed25519 public key.
func AddressFromEd25519(pub ed25519.PublicKey) Address {
	return NewAddress(pub)
}

// MarshalJSON renders the address as its "LGC<hex>" string form, the same
// wire convention money.Money uses for its own scaled-integer JSON form.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses the "LGC<hex>" string form back into an Address.
func (a *Address) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("crypto: address must be a JSON string")
	}
	parsed, err := ParseAddress(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
