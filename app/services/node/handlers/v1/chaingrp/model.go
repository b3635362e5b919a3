package chaingrp

import (
	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/ledger"
)

// SubmitTransactionRequest is the wire form of spec §6's
// submit_transaction(tx_bytes) ingress operation: the hex-encoded
// SignedTx wire encoding from ledger.Encode, plus the signer's raw
// public key for the Ed25519-signed CONTRACT_CHECKPOINT case, which
// carries no recoverable key the way ECDSA transactions do.
type SubmitTransactionRequest struct {
	TxHex           string `json:"tx_hex" validate:"required,hexadecimal"`
	SignerPubKeyHex string `json:"signer_pubkey_hex,omitempty" validate:"omitempty,hexadecimal"`
}

// SubmitTransactionResponse matches spec §6's {accepted, tx_hash} result.
type SubmitTransactionResponse struct {
	Accepted bool   `json:"accepted"`
	TxHash   string `json:"tx_hash"`
}

// SubmitBlockRequest is the wire form of spec §6's submit_block(block_bytes).
type SubmitBlockRequest struct {
	BlockHex string `json:"block_hex" validate:"required,hexadecimal"`
}

// SubmitBlockResponse matches spec §6's {accepted, block_hash} result.
type SubmitBlockResponse struct {
	Accepted  bool   `json:"accepted"`
	BlockHash string `json:"block_hash"`
}

// AccountResponse matches spec §6's query_account result shape. Address,
// Balance and money.Money fields carry their own MarshalJSON, so the
// domain type is returned directly rather than copied into a shadow DTO.
type AccountResponse struct {
	Account ledger.Account `json:"account"`
}

// ContractResponse matches spec §6's query_contract result shape.
type ContractResponse struct {
	Contract contract.Contract `json:"contract"`
}

// TipResponse matches spec §6's query_tip() {height, hash, cumulative_work}.
type TipResponse struct {
	Height         uint64 `json:"height"`
	Hash           string `json:"hash"`
	CumulativeWork string `json:"cumulative_work"`
}

// StatusResponse reports node-level health used by wallet tooling to
// decide whether to keep polling or back off.
type StatusResponse struct {
	MempoolCount int `json:"mempool_count"`
}
