package block

import "github.com/caiorlm/logichain/internal/ledger"

// Tx adapts ledger.SignedTx to merkle.Hashable so a block's transaction
// list can be placed directly into a merkle.Tree without duplicating the
// transaction hash logic.
type Tx struct {
	ledger.SignedTx
}

// Hash satisfies merkle.Hashable using the transaction's own double-SHA-256
// hash.
func (t Tx) Hash() ([]byte, error) {
	h := t.SignedTx.Hash()
	return h[:], nil
}

// Equals satisfies merkle.Hashable by comparing transaction hashes.
func (t Tx) Equals(other Tx) bool {
	return t.SignedTx.Hash() == other.SignedTx.Hash()
}

// txsToLeaves converts a plain transaction slice to merkle leaves.
func txsToLeaves(txs []ledger.SignedTx) []Tx {
	leaves := make([]Tx, len(txs))
	for i, tx := range txs {
		leaves[i] = Tx{SignedTx: tx}
	}
	return leaves
}
