package ledger_test

import (
	"bytes"
	"testing"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
)

func Test_TransferSignAndVerify(t *testing.T) {
	sender, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("Should generate sender identity: %s", err)
	}
	receiver, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("Should generate receiver identity: %s", err)
	}

	tx := ledger.Tx{
		Type:      ledger.TxTransfer,
		From:      sender.Address(),
		To:        receiver.Address(),
		Amount:    money.FromUnits(100),
		Nonce:     1,
		Fee:       money.FromUnits(1),
		Timestamp: 1700000000,
	}

	signed, err := tx.Sign(sender)
	if err != nil {
		t.Fatalf("Should sign: %s", err)
	}

	if err := signed.Verify(nil); err != nil {
		t.Fatalf("Should verify under the sender's address: %s", err)
	}
}

func Test_WireRoundTrip(t *testing.T) {
	sender, _ := crypto.GenerateECDSAIdentity()
	receiver, _ := crypto.GenerateECDSAIdentity()

	tx := ledger.Tx{
		Type:      ledger.TxTransfer,
		From:      sender.Address(),
		To:        receiver.Address(),
		Amount:    money.FromUnits(250),
		Nonce:     7,
		Fee:       money.FromUnits(2),
		Timestamp: 1700000001,
		Payload:   []byte("memo"),
	}

	signed, err := tx.Sign(sender)
	if err != nil {
		t.Fatalf("Should sign: %s", err)
	}

	encoded, err := signed.Encode()
	if err != nil {
		t.Fatalf("Should encode: %s", err)
	}

	decoded, err := ledger.DecodeTx(encoded)
	if err != nil {
		t.Fatalf("Should decode: %s", err)
	}

	reencoded, err := decoded.Encode()
	if err != nil {
		t.Fatalf("Should re-encode: %s", err)
	}

	if !bytes.Equal(encoded, reencoded) {
		t.Fatalf("encode(decode(bytes)) must equal bytes bit-for-bit")
	}

	if err := decoded.Verify(nil); err != nil {
		t.Fatalf("Decoded transaction should still verify: %s", err)
	}
}

func Test_RejectsUnknownVersion(t *testing.T) {
	b := make([]byte, 4+1+23+23+16+8+16+8+4+64)
	b[3] = 9 // version = 9, big-endian low byte
	if _, err := ledger.DecodeTx(b); err != ledger.ErrUnsupportedVersion {
		t.Fatalf("got %v, exp ErrUnsupportedVersion", err)
	}
}
