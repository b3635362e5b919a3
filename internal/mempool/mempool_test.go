package mempool_test

import (
	"testing"
	"time"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/mempool"
	"github.com/caiorlm/logichain/internal/money"
)

func signedTx(t *testing.T, sender crypto.Identity, to crypto.Address, nonce uint64, fee uint64) ledger.SignedTx {
	tx := ledger.Tx{
		Type:      ledger.TxTransfer,
		From:      sender.Address(),
		To:        to,
		Amount:    money.FromUnits(10),
		Nonce:     nonce,
		Fee:       money.FromUnits(fee),
		Timestamp: 1700000000,
	}
	signed, err := tx.Sign(sender)
	if err != nil {
		t.Fatalf("Should sign: %s", err)
	}
	return signed
}

func Test_RBFRequiresMinimumBump(t *testing.T) {
	sender, _ := crypto.GenerateECDSAIdentity()
	receiver, _ := crypto.GenerateECDSAIdentity()

	pool := mempool.New(1<<20, 0.10)

	first := signedTx(t, sender, receiver.Address(), 1, 10)
	if err := pool.Upsert(first, time.Now(), 1); err != nil {
		t.Fatalf("Should accept first tx: %s", err)
	}

	// A different recipient makes this a distinct transaction at the same
	// nonce (not a byte-identical duplicate), with no fee bump at all.
	tooSmall := signedTx(t, sender, sender.Address(), 1, 10)
	if err := pool.Upsert(tooSmall, time.Now(), 1); err != mempool.ErrReplaceFeeTooLow {
		t.Fatalf("got %v, exp ErrReplaceFeeTooLow", err)
	}

	bumped := signedTx(t, sender, receiver.Address(), 1, 12)
	if err := pool.Upsert(bumped, time.Now(), 1); err != nil {
		t.Fatalf("Should accept a >=10%% fee bump: %s", err)
	}

	if pool.Count() != 1 {
		t.Fatalf("got %d entries, exp 1 (replacement, not addition)", pool.Count())
	}
}

func Test_NonceGapNotBlockEligible(t *testing.T) {
	sender, _ := crypto.GenerateECDSAIdentity()
	receiver, _ := crypto.GenerateECDSAIdentity()

	pool := mempool.New(1<<20, 0.10)

	gapped := signedTx(t, sender, receiver.Address(), 5, 10)
	if err := pool.Upsert(gapped, time.Now(), 1); err != nil {
		t.Fatalf("Should hold a gapped nonce within tolerance: %s", err)
	}

	selected := pool.Select(1<<20, 0)
	if len(selected) != 0 {
		t.Fatalf("got %d selected, exp 0 (gap before nonce 1 makes it ineligible)", len(selected))
	}
}

func Test_ContiguousNoncesSelectInOrder(t *testing.T) {
	sender, _ := crypto.GenerateECDSAIdentity()
	receiver, _ := crypto.GenerateECDSAIdentity()

	pool := mempool.New(1<<20, 0.10)

	for n := uint64(1); n <= 3; n++ {
		tx := signedTx(t, sender, receiver.Address(), n, 10)
		if err := pool.Upsert(tx, time.Now(), 1); err != nil {
			t.Fatalf("Should accept nonce %d: %s", n, err)
		}
	}

	selected := pool.Select(1<<20, 0)
	if len(selected) != 3 {
		t.Fatalf("got %d selected, exp 3", len(selected))
	}
	for i, tx := range selected {
		if tx.Nonce != uint64(i+1) {
			t.Fatalf("got nonce %d at position %d, exp %d", tx.Nonce, i, i+1)
		}
	}
}

func Test_NonceTooLowRejected(t *testing.T) {
	sender, _ := crypto.GenerateECDSAIdentity()
	receiver, _ := crypto.GenerateECDSAIdentity()

	pool := mempool.New(1<<20, 0.10)
	tx := signedTx(t, sender, receiver.Address(), 1, 10)

	if err := pool.Upsert(tx, time.Now(), 2); err != mempool.ErrNonceTooLow {
		t.Fatalf("got %v, exp ErrNonceTooLow", err)
	}
}
