package crypto

import (
	"errors"

	"github.com/tyler-smith/go-bip39"
)

// mnemonicEntropyBits is fixed at 128 bits, which go-bip39 turns into
// exactly 12 words, matching spec §4.1.
const mnemonicEntropyBits = 128

// NewMnemonic generates a fresh BIP-39 12-word seed phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic reports whether the phrase is well-formed BIP-39.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic stretches the mnemonic (and optional passphrase) into a
// 64-byte seed via BIP-39's PBKDF2-HMAC-SHA512 KDF.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("crypto: invalid mnemonic")
	}
	return bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
}

// DeriveIdentity produces a scheme-appropriate Identity from a mnemonic.
// Ed25519 identities use the first 32 seed bytes as their seed directly;
// ECDSA identities use the first 32 seed bytes as the secp256k1 private
// scalar.
func DeriveIdentity(mnemonic, passphrase string, scheme Scheme) (Identity, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case SchemeEd25519:
		return Ed25519IdentityFromSeed(seed[:32]), nil
	case SchemeECDSA:
		return ECDSAIdentityFromSeed(seed[:32])
	default:
		return nil, errors.New("crypto: unknown signature scheme")
	}
}
