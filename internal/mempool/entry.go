// Package mempool holds pending, not-yet-mined transactions, ordered by a
// fee/age priority score, with replace-by-fee, child-pays-for-parent
// bundling, per-sender nonce ordering and capacity eviction.
package mempool

import (
	"math/big"
	"time"

	"github.com/caiorlm/logichain/internal/ledger"
)

// Tuning constants for the priority score: fee_per_byte + beta*ancestor
// bonus + gamma*age_bonus. Neither value is named by the transaction
// priority formula's source material, so both are chosen here: beta keeps
// child-pays-for-parent bonuses from ever outweighing an ancestor's own
// fee rate by more than 3x at realistic fee spreads, gamma gives a tx
// waiting a full block interval (30s) roughly one "fee_per_byte unit" of
// starvation protection.
const (
	priorityBeta  = 0.5
	priorityGamma = 1.0 / 30.0

	// NonceGapTolerance is N_GAP: nonces up to this far ahead of the
	// sender's expected next nonce are held, not rejected, but are not
	// block-eligible until the gap closes.
	NonceGapTolerance = 16
)

// entry is one pending transaction plus the bookkeeping the priority
// formula and RBF/CPFP rules need.
type entry struct {
	tx         ledger.SignedTx
	receivedAt time.Time
	sizeBytes  int
	feePerByte float64
}

func newEntry(tx ledger.SignedTx, receivedAt time.Time) (entry, error) {
	encoded, err := tx.Encode()
	if err != nil {
		return entry{}, err
	}

	size := len(encoded)
	fee := new(big.Float).SetInt(tx.Fee.Raw())
	feePerByte, _ := new(big.Float).Quo(fee, big.NewFloat(float64(size))).Float64()

	return entry{
		tx:         tx,
		receivedAt: receivedAt,
		sizeBytes:  size,
		feePerByte: feePerByte,
	}, nil
}

// priority computes the fee/age score at evaluation time now. ancestorBonus
// is supplied by the caller (it depends on sibling entries in the same
// sender's queue, which entry itself does not know about).
func (e entry) priority(now time.Time, ancestorBonus float64) float64 {
	age := now.Sub(e.receivedAt).Seconds()
	if age < 0 {
		age = 0
	}
	return e.feePerByte + priorityBeta*ancestorBonus + priorityGamma*age
}
