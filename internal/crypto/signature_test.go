package crypto_test

import (
	"testing"

	"github.com/caiorlm/logichain/internal/crypto"
)

func Test_Ed25519RoundTrip(t *testing.T) {
	id, err := crypto.GenerateEd25519Identity()
	if err != nil {
		t.Fatalf("Should be able to generate an Ed25519 identity: %s", err)
	}

	msg := []byte("checkpoint payload")

	sig, err := id.Sign(msg)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	if err := crypto.VerifyEd25519(id.PublicKeyBytes(), msg, sig); err != nil {
		t.Fatalf("Should verify under the signer's own public key: %s", err)
	}

	if err := crypto.VerifyEd25519(id.PublicKeyBytes(), []byte("tampered"), sig); err == nil {
		t.Fatalf("Should reject a signature over different data.")
	}
}

func Test_ECDSARoundTrip(t *testing.T) {
	id, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("Should be able to generate an ECDSA identity: %s", err)
	}

	msg := []byte("transfer payload")

	sig, err := id.Sign(msg)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	if err := crypto.VerifyECDSA(msg, sig, id.Address()); err != nil {
		t.Fatalf("Should verify under the signer's own address: %s", err)
	}

	other, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("Should be able to generate a second identity: %s", err)
	}

	if err := crypto.VerifyECDSA(msg, sig, other.Address()); err == nil {
		t.Fatalf("Should reject verification against the wrong address.")
	}
}

func Test_AddressRoundTrip(t *testing.T) {
	id, err := crypto.GenerateEd25519Identity()
	if err != nil {
		t.Fatalf("Should be able to generate an identity: %s", err)
	}

	str := id.Address().String()

	parsed, err := crypto.ParseAddress(str)
	if err != nil {
		t.Fatalf("Should be able to parse the address string: %s", err)
	}

	if parsed != id.Address() {
		t.Fatalf("Parsed address should round-trip to the original value.")
	}

	if str[:3] != "LGC" {
		t.Fatalf("Address string should carry the LGC human prefix, got %q", str[:3])
	}
}

func Test_MnemonicDerivation(t *testing.T) {
	mnemonic, err := crypto.NewMnemonic()
	if err != nil {
		t.Fatalf("Should be able to generate a mnemonic: %s", err)
	}

	if !crypto.ValidateMnemonic(mnemonic) {
		t.Fatalf("Generated mnemonic should validate as well-formed BIP-39.")
	}

	id1, err := crypto.DeriveIdentity(mnemonic, "", crypto.SchemeECDSA)
	if err != nil {
		t.Fatalf("Should derive an ECDSA identity from the mnemonic: %s", err)
	}

	id2, err := crypto.DeriveIdentity(mnemonic, "", crypto.SchemeECDSA)
	if err != nil {
		t.Fatalf("Should derive a second identity from the same mnemonic: %s", err)
	}

	if id1.Address() != id2.Address() {
		t.Fatalf("Deriving from the same mnemonic twice should be deterministic.")
	}
}
