// Package ledger defines the account and transaction data model shared by
// the mempool, contract state machine and block validator: the wire-exact
// Transaction and Account types spec §3/§6 describe.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// WireVersion is the current transaction/block wire format version. Decoders
// reject any other value, per SPEC_FULL.md's "reject unknown versions"
// design note.
const WireVersion uint32 = 1

// TxType enumerates the five transaction kinds spec §3 defines.
type TxType byte

const (
	TxTransfer           TxType = 0
	TxContractCreate     TxType = 1
	TxContractCheckpoint TxType = 2
	TxContractFinalize   TxType = 3
	TxMiningReward       TxType = 4
)

// String renders the type for logging.
func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "TRANSFER"
	case TxContractCreate:
		return "CONTRACT_CREATE"
	case TxContractCheckpoint:
		return "CONTRACT_CHECKPOINT"
	case TxContractFinalize:
		return "CONTRACT_FINALIZE"
	case TxMiningReward:
		return "MINING_REWARD"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// SignatureScheme reports which signature scheme is expected for a
// transaction of this type: Ed25519 for driver-signed checkpoints,
// ECDSA for every other type, MINING_REWARD included (Sign does not
// enforce a scheme for the coinbase reward).
func (t TxType) SignatureScheme() crypto.Scheme {
	if t == TxContractCheckpoint {
		return crypto.SchemeEd25519
	}
	return crypto.SchemeECDSA
}

// ErrUnsupportedVersion is returned when decoding a wire payload whose
// version the codec does not recognize.
var ErrUnsupportedVersion = errors.New("ledger: unsupported wire version")

// Tx is the unsigned content of a transaction.
type Tx struct {
	Type      TxType
	From      crypto.Address
	To        crypto.Address
	Amount    money.Money
	Nonce     uint64
	Fee       money.Money
	Timestamp float64
	Payload   []byte
}

// canonicalBytes returns the exact byte sequence signatures are computed
// over: every field but the signature itself, in wire order.
func (tx Tx) canonicalBytes() []byte {
	e := crypto.NewEncoder()
	e.Uint32(WireVersion)
	e.Byte(byte(tx.Type))
	e.Fixed(tx.From[:])
	e.Fixed(tx.To[:])

	amt, _ := tx.Amount.MarshalBinary()
	e.Fixed(amt[:])

	e.Uint64(tx.Nonce)

	fee, _ := tx.Fee.MarshalBinary()
	e.Fixed(fee[:])

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], math.Float64bits(tx.Timestamp))
	e.Fixed(ts[:])

	e.Variable(tx.Payload)
	return e.Bytes()
}

// SignedTx pairs a Tx with the signature over its canonical encoding.
type SignedTx struct {
	Tx
	Signature crypto.Signature
}

// Sign signs tx with the given identity, which must use the scheme this
// transaction type expects.
func (tx Tx) Sign(id crypto.Identity) (SignedTx, error) {
	if tx.Type != TxMiningReward && id.Scheme() != tx.Type.SignatureScheme() {
		return SignedTx{}, fmt.Errorf("ledger: tx type %s requires scheme %d, identity uses %d", tx.Type, tx.Type.SignatureScheme(), id.Scheme())
	}

	sig, err := id.Sign(tx.canonicalBytes())
	if err != nil {
		return SignedTx{}, err
	}

	return SignedTx{Tx: tx, Signature: sig}, nil
}

// Verify checks the signature against the From address using the scheme
// the transaction type mandates. Ed25519 verification requires the signer's
// public key since it cannot be recovered from the signature alone; the
// caller (mempool/block validator) supplies it after looking up the
// checkpoint's known driver key.
func (tx SignedTx) Verify(signerPubKey []byte) error {
	switch tx.Type.SignatureScheme() {
	case crypto.SchemeEd25519:
		if signerPubKey == nil {
			return errors.New("ledger: ed25519 verification requires the signer public key")
		}
		if crypto.NewAddress(signerPubKey) != tx.From {
			return crypto.ErrInvalidSignature
		}
		return crypto.VerifyEd25519(signerPubKey, tx.canonicalBytes(), tx.Signature)
	case crypto.SchemeECDSA:
		return crypto.VerifyECDSA(tx.canonicalBytes(), tx.Signature, tx.From)
	default:
		return crypto.ErrInvalidSignature
	}
}

// Hash returns the double-SHA-256 transaction hash.
func (tx SignedTx) Hash() [32]byte {
	return crypto.DoubleHash(tx.wireBytesForHash())
}

func (tx SignedTx) wireBytesForHash() []byte {
	b, _ := tx.Encode()
	return b
}

// Encode produces the bit-exact wire encoding from spec §6:
// version(4) type(1) from(23) to(23) amount(16) nonce(8) fee(16)
// timestamp(8) payload_len(4) payload signature(64). Both address fields
// are always 23 bytes; a MINING_REWARD carries the zero address as from
// rather than an empty field.
func (tx SignedTx) Encode() ([]byte, error) {
	buf := make([]byte, 0, 4+1+23+23+16+8+16+8+4+len(tx.Payload)+64)

	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], WireVersion)
	buf = append(buf, tmp4[:]...)

	buf = append(buf, byte(tx.Type))
	buf = append(buf, tx.From[:]...)
	buf = append(buf, tx.To[:]...)

	amt, err := tx.Amount.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf = append(buf, amt[:]...)

	var tmp8 [8]byte
	binary.BigEndian.PutUint64(tmp8[:], tx.Nonce)
	buf = append(buf, tmp8[:]...)

	fee, err := tx.Fee.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf = append(buf, fee[:]...)

	binary.BigEndian.PutUint64(tmp8[:], math.Float64bits(tx.Timestamp))
	buf = append(buf, tmp8[:]...)

	binary.BigEndian.PutUint32(tmp4[:], uint32(len(tx.Payload)))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, tx.Payload...)

	buf = append(buf, tx.Signature.Bytes[:]...)

	return buf, nil
}

// DecodeTx parses the bit-exact wire encoding produced by Encode.
func DecodeTx(b []byte) (SignedTx, error) {
	const minLen = 4 + 1 + 23 + 23 + 16 + 8 + 16 + 8 + 4 + 64
	if len(b) < minLen {
		return SignedTx{}, errors.New("ledger: transaction wire payload too short")
	}

	pos := 0
	readU32 := func() uint32 {
		v := binary.BigEndian.Uint32(b[pos : pos+4])
		pos += 4
		return v
	}
	readU64 := func() uint64 {
		v := binary.BigEndian.Uint64(b[pos : pos+8])
		pos += 8
		return v
	}

	version := readU32()
	if version != WireVersion {
		return SignedTx{}, ErrUnsupportedVersion
	}

	var tx SignedTx
	tx.Type = TxType(b[pos])
	pos++

	copy(tx.From[:], b[pos:pos+23])
	pos += 23
	copy(tx.To[:], b[pos:pos+23])
	pos += 23

	var amt [16]byte
	copy(amt[:], b[pos:pos+16])
	pos += 16
	tx.Amount = money.UnmarshalMoney(amt)

	tx.Nonce = readU64()

	var fee [16]byte
	copy(fee[:], b[pos:pos+16])
	pos += 16
	tx.Fee = money.UnmarshalMoney(fee)

	tsBits := readU64()
	tx.Timestamp = math.Float64frombits(tsBits)

	payloadLen := readU32()
	if uint64(pos)+uint64(payloadLen)+64 > uint64(len(b)) {
		return SignedTx{}, errors.New("ledger: transaction payload length exceeds buffer")
	}
	tx.Payload = append([]byte(nil), b[pos:pos+int(payloadLen)]...)
	pos += int(payloadLen)

	scheme := tx.Type.SignatureScheme()
	tx.Signature.Scheme = scheme
	copy(tx.Signature.Bytes[:], b[pos:pos+64])
	pos += 64

	return tx, nil
}

// String implements fmt.Stringer for log lines.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%s:%d", tx.Type, tx.From, tx.Nonce)
}
