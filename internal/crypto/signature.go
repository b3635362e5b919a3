package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// Scheme identifies which of the two supported signature algorithms an
// identity uses. Validators and PoD checkpoints sign with Ed25519 for
// deterministic, fast verification; user wallets sign with the secp256k1
// ECDSA variant so existing tooling built against go-ethereum keys works
// unmodified (spec §4.1).
type Scheme byte

const (
	// SchemeEd25519 is used by validators and driver checkpoint signatures.
	SchemeEd25519 Scheme = 1
	// SchemeECDSA is used by wallet-held user and establishment accounts.
	SchemeECDSA Scheme = 2
)

// ErrInvalidSignature is returned whenever a signature fails verification
// under the claimed address, regardless of scheme.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// Signature is a scheme-tagged, fixed 64-byte signature. Ed25519 signatures
// are naturally 64 bytes (R||S). ECDSA signatures are stored as the 64-byte
// R||S pair without a recovery id, matching the wire format's fixed
// signature(64) field; verification recovers the public key by trying both
// recovery candidates against the claimed address.
type Signature struct {
	Scheme Scheme
	Bytes  [64]byte
}

// MarshalJSON renders the signature as a single hex string: the 1-byte
// scheme tag followed by the 64 signature bytes, the same flat encoding
// the wire format uses minus the length prefix.
func (s Signature) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 1+len(s.Bytes))
	buf = append(buf, byte(s.Scheme))
	buf = append(buf, s.Bytes[:]...)
	return []byte(`"` + hex.EncodeToString(buf) + `"`), nil
}

// UnmarshalJSON parses the hex string form produced by MarshalJSON.
func (s *Signature) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("crypto: signature must be a JSON string")
	}
	raw, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return errors.New("crypto: signature is not valid hex")
	}
	if len(raw) != 1+len(s.Bytes) {
		return errors.New("crypto: signature has wrong length")
	}
	s.Scheme = Scheme(raw[0])
	copy(s.Bytes[:], raw[1:])
	return nil
}

// Identity is a keypair able to sign canonical field encodings and report
// its own address. Both concrete schemes implement it behind one
// capability, per spec §4.1.
type Identity interface {
	Scheme() Scheme
	Address() Address
	PublicKeyBytes() []byte
	Sign(message []byte) (Signature, error)
}

// =============================================================================

// Ed25519Identity is a validator or driver checkpoint-signing identity.
type Ed25519Identity struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr Address
}

// GenerateEd25519Identity creates a fresh random Ed25519 identity.
func GenerateEd25519Identity() (*Ed25519Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Identity{priv: priv, pub: pub, addr: NewAddress(pub)}, nil
}

// Ed25519IdentityFromSeed derives an identity from a 32-byte seed, used by
// the BIP-39 derivation path.
func Ed25519IdentityFromSeed(seed []byte) *Ed25519Identity {
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Identity{priv: priv, pub: pub, addr: NewAddress(pub)}
}

// Scheme reports SchemeEd25519.
func (i *Ed25519Identity) Scheme() Scheme { return SchemeEd25519 }

// Address returns the derived address.
func (i *Ed25519Identity) Address() Address { return i.addr }

// PublicKeyBytes returns the raw 32-byte Ed25519 public key.
func (i *Ed25519Identity) PublicKeyBytes() []byte { return append([]byte(nil), i.pub...) }

// Sign produces a 64-byte Ed25519 signature over message.
func (i *Ed25519Identity) Sign(message []byte) (Signature, error) {
	sig := ed25519.Sign(i.priv, message)

	var out Signature
	out.Scheme = SchemeEd25519
	copy(out.Bytes[:], sig)
	return out, nil
}

// VerifyEd25519 verifies a signature produced by an Ed25519Identity against
// the claimed public key.
func VerifyEd25519(pub ed25519.PublicKey, message []byte, sig Signature) error {
	if sig.Scheme != SchemeEd25519 {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub, message, sig.Bytes[:]) {
		return ErrInvalidSignature
	}
	return nil
}

// =============================================================================

// ECDSAIdentity is a wallet identity using the secp256k1 curve via
// go-ethereum's crypto package (spec §4.1's "256-bit curve ECDSA variant").
type ECDSAIdentity struct {
	priv *ecdsa.PrivateKey
	addr Address
}

// GenerateECDSAIdentity creates a fresh random secp256k1 identity.
func GenerateECDSAIdentity() (*ECDSAIdentity, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return ecdsaIdentityFromKey(priv), nil
}

// ECDSAIdentityFromSeed derives a deterministic secp256k1 key from a BIP-39
// derived seed by taking its first 32 bytes as the private scalar through
// go-ethereum's ToECDSA, which returns an error (rather than reducing) when
// that scalar is zero or not below the curve order.
func ECDSAIdentityFromSeed(seed []byte) (*ECDSAIdentity, error) {
	priv, err := crypto.ToECDSA(seed[:32])
	if err != nil {
		return nil, err
	}
	return ecdsaIdentityFromKey(priv), nil
}

func ecdsaIdentityFromKey(priv *ecdsa.PrivateKey) *ECDSAIdentity {
	pubBytes := crypto.FromECDSAPub(&priv.PublicKey)
	return &ECDSAIdentity{priv: priv, addr: NewAddress(pubBytes)}
}

// Scheme reports SchemeECDSA.
func (i *ECDSAIdentity) Scheme() Scheme { return SchemeECDSA }

// Address returns the derived address.
func (i *ECDSAIdentity) Address() Address { return i.addr }

// PublicKeyBytes returns the uncompressed secp256k1 public key encoding.
func (i *ECDSAIdentity) PublicKeyBytes() []byte {
	return crypto.FromECDSAPub(&i.priv.PublicKey)
}

// Sign signs the double-hash of message, producing the 64-byte R||S pair.
func (i *ECDSAIdentity) Sign(message []byte) (Signature, error) {
	digest := DoubleHash(message)

	sig, err := crypto.Sign(digest[:], i.priv)
	if err != nil {
		return Signature{}, err
	}

	var out Signature
	out.Scheme = SchemeECDSA
	copy(out.Bytes[:], sig[:64])
	return out, nil
}

// VerifyECDSA verifies a 64-byte R||S signature against the claimed
// address by trying both recovery ids and comparing the recovered address,
// since the wire format carries no recovery-id byte.
func VerifyECDSA(message []byte, sig Signature, expected Address) error {
	if sig.Scheme != SchemeECDSA {
		return ErrInvalidSignature
	}

	digest := DoubleHash(message)

	full := make([]byte, 65)
	copy(full, sig.Bytes[:])

	for recID := byte(0); recID < 2; recID++ {
		full[64] = recID

		pub, err := crypto.SigToPub(digest[:], full)
		if err != nil {
			continue
		}

		addr := NewAddress(crypto.FromECDSAPub(pub))
		if addr == expected {
			return nil
		}
	}

	return ErrInvalidSignature
}
