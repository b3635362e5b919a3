package block

import (
	"bytes"
	"errors"
	"math"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
)

// Sentinel errors for every check ValidateBlock runs, in the order spec
// §4.5 lists them.
var (
	ErrParentNotOnChain      = errors.New("block: parent is not on the best chain or an eligible fork tip")
	ErrWrongHeight           = errors.New("block: height is not parent.height+1")
	ErrTimestampDrift        = errors.New("block: timestamp outside future drift tolerance")
	ErrTimestampNotMonotonic = errors.New("block: timestamp not after parent timestamp")
	ErrSizeCapExceeded       = errors.New("block: encoded size exceeds mode cap")
	ErrTxCountCapExceeded    = errors.New("block: transaction count exceeds mode cap")
	ErrTxSignatureInvalid    = errors.New("block: a transaction signature failed verification")
	ErrNonceNotContiguous    = errors.New("block: sender nonces are not contiguous relative to snapshot")
	ErrRewardAmountWrong     = errors.New("block: coinbase reward does not match the mining schedule")
	ErrMissingCoinbase       = errors.New("block: first transaction is not the coinbase reward")
	ErrMerkleRootMismatch    = errors.New("block: recomputed merkle root does not match header")
	ErrPoWNotMet             = errors.New("block: hash does not meet the difficulty target")
	ErrContractTxIllegal     = errors.New("block: a contract transaction is not a legal transition")
	ErrQuorumNotMet          = errors.New("block: BFT attestations below required quorum")
)

// Config collects the per-mode caps and drift tolerance ValidateBlock
// checks against (spec §6's enumerated configuration).
type Config struct {
	SizeCapBytes  int
	TxCountCap    int
	TDriftSeconds float64
}

// Lookups supplies the pieces of chain/account/contract state ValidateBlock
// needs but does not itself own — the block package validates structure
// and PoW/merkle/reward math standalone, and delegates exactly the checks
// that require a state snapshot back to whichever actor holds one (the
// Chain actor, via business/core/chain). Every field is required; a nil
// OnBestChainOrForkTip, ExpectedNonce or ValidateContractTx means that
// check is skipped, which callers should only do in tests, while a nil
// PublicKeyFor makes every CONTRACT_CHECKPOINT signature check fail.
type Lookups struct {
	// OnBestChainOrForkTip reports whether parentHash identifies a block on
	// the current best chain, or a fork tip within REORG_WINDOW.
	OnBestChainOrForkTip func(parentHash [32]byte) bool
	// PublicKeyFor returns the Ed25519 public key for addr, used to verify
	// CONTRACT_CHECKPOINT transaction signatures (ECDSA transactions
	// self-verify via recovery and need no lookup).
	PublicKeyFor func(addr crypto.Address) ([]byte, bool)
	// ExpectedNonce returns the next nonce the snapshot expects from addr.
	ExpectedNonce func(addr crypto.Address) uint64
	// ValidateContractTx checks that tx is a legal contract-state
	// transition under the current contract snapshot (spec §4.4); called
	// for every TxContractCreate/Checkpoint/Finalize transaction.
	ValidateContractTx func(tx ledger.SignedTx) error
}

// ValidateBlock runs every check spec §4.5 lists, in order, returning the
// first failure. now is the validating node's current time, used for the
// future-drift check. requiredQuorum is 0 for OFF_GRID blocks, which spec
// §4.8 exempts from BFT finalization.
func ValidateBlock(b, parent *Block, cfg Config, now float64, requiredQuorum int, lk Lookups) error {
	if lk.OnBestChainOrForkTip != nil && !lk.OnBestChainOrForkTip(b.Header.ParentHash) {
		return ErrParentNotOnChain
	}

	if b.Height != parent.Height+1 {
		return ErrWrongHeight
	}

	if b.Header.Timestamp > now+2*cfg.TDriftSeconds {
		return ErrTimestampDrift
	}
	if parent.Height > 0 && b.Header.Timestamp <= parent.Header.Timestamp {
		return ErrTimestampNotMonotonic
	}

	size, err := b.SizeBytes()
	if err != nil {
		return err
	}
	if size > cfg.SizeCapBytes {
		return ErrSizeCapExceeded
	}
	if len(b.Txs) > cfg.TxCountCap {
		return ErrTxCountCapExceeded
	}

	if err := verifySignatures(b.Txs, lk.PublicKeyFor); err != nil {
		return err
	}

	if lk.ExpectedNonce != nil {
		if err := verifyNonceContiguity(b.Txs, lk.ExpectedNonce); err != nil {
			return err
		}
	}

	if err := verifyCoinbase(b.Txs, b.Height); err != nil {
		return err
	}

	if !bytes.Equal(b.tree.MerkleRoot(), b.Header.MerkleRoot[:]) {
		return ErrMerkleRootMismatch
	}

	if !MeetsDifficulty(b.Hash(), b.Header.Difficulty) {
		return ErrPoWNotMet
	}

	if lk.ValidateContractTx != nil {
		for _, tx := range b.Txs {
			switch tx.Type {
			case ledger.TxContractCreate, ledger.TxContractCheckpoint, ledger.TxContractFinalize:
				if err := lk.ValidateContractTx(tx); err != nil {
					return ErrContractTxIllegal
				}
			}
		}
	}

	if requiredQuorum > 0 && len(b.Header.Attestations) < requiredQuorum {
		return ErrQuorumNotMet
	}

	return nil
}

func verifySignatures(txs []ledger.SignedTx, publicKeyFor func(crypto.Address) ([]byte, bool)) error {
	for _, tx := range txs {
		if tx.Type == ledger.TxMiningReward {
			continue
		}

		var pubKey []byte
		if tx.Type.SignatureScheme() == crypto.SchemeEd25519 {
			if publicKeyFor == nil {
				return ErrTxSignatureInvalid
			}
			key, ok := publicKeyFor(tx.From)
			if !ok {
				return ErrTxSignatureInvalid
			}
			pubKey = key
		}

		if err := tx.Verify(pubKey); err != nil {
			return ErrTxSignatureInvalid
		}
	}
	return nil
}

func verifyNonceContiguity(txs []ledger.SignedTx, expectedNonce func(crypto.Address) uint64) error {
	next := make(map[crypto.Address]uint64)
	for _, tx := range txs {
		if tx.Type == ledger.TxMiningReward {
			continue
		}

		want, ok := next[tx.From]
		if !ok {
			want = expectedNonce(tx.From)
		}
		if tx.Nonce != want {
			return ErrNonceNotContiguous
		}
		next[tx.From] = want + 1
	}
	return nil
}

func verifyCoinbase(txs []ledger.SignedTx, height uint64) error {
	if len(txs) == 0 || txs[0].Type != ledger.TxMiningReward {
		return ErrMissingCoinbase
	}
	want := Schedule(height)
	if txs[0].Amount.Cmp(want) != 0 {
		return ErrRewardAmountWrong
	}
	return nil
}

// spanSeconds is a small helper used by callers computing a retarget span
// from two header timestamps.
func spanSeconds(first, last Header) float64 {
	return math.Abs(last.Timestamp - first.Timestamp)
}
