package chain

import "errors"

var (
	// ErrTxSignatureInvalid is returned by SubmitTransaction when the
	// signature (or, for CONTRACT_CHECKPOINT transactions, the caller-
	// supplied Ed25519 public key) fails verification.
	ErrTxSignatureInvalid = errors.New("chain: transaction signature invalid")

	// ErrUnknownSigner is returned submitting an Ed25519-signed
	// transaction from an address this node has never cached a public
	// key for, via RegisterPublicKey or a prior submission.
	ErrUnknownSigner = errors.New("chain: no cached public key for signer")

	// ErrContractNotFound is returned querying or mutating a contract id
	// the index has no record of.
	ErrContractNotFound = errors.New("chain: contract not found")

	// ErrAccountNotFound is returned querying an address the index has
	// no account record for.
	ErrAccountNotFound = errors.New("chain: account not found")

	// ErrNoBlockToMine names the empty-mempool case. No function in this
	// package returns it: the mining worker skips an attempt with an empty
	// mempool silently, and MineNewBlock mines a coinbase-only block.
	ErrNoBlockToMine = errors.New("chain: nothing to mine")

	// ErrStaleProposal is returned ProcessProposedBlock when the block's
	// parent is no longer the current tip and lies outside the reorg
	// window.
	ErrStaleProposal = errors.New("chain: proposed block's parent is outside the reorg window")
)
