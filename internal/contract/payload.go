package contract

import (
	"encoding/json"
	"errors"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// The ledger package's Tx.Payload field is an opaque byte slice on the
// wire (spec §6's transaction wire format never names its structure) —
// these three JSON envelopes are what the Chain actor decodes a
// CONTRACT_CREATE/CONTRACT_CHECKPOINT/CONTRACT_FINALIZE transaction's
// payload into. Living here, not in package ledger, since contract
// already owns Contract/Checkpoint/Coordinate/CargoManifest and importing
// ledger from contract would cycle back (ledger has no contract import
// today, but payload decoding is exactly the boundary that would create
// one).

// ErrUnknownPayload is returned decoding a payload whose shape does not
// match the expected envelope.
var ErrUnknownPayload = errors.New("contract: malformed transaction payload")

// CreatePayload is a CONTRACT_CREATE transaction's payload: the terms of a
// new delivery contract, before any driver has accepted it.
type CreatePayload struct {
	ContractID            [32]byte      `json:"contract_id"`
	Pickup                Coordinate    `json:"pickup"`
	Delivery              Coordinate    `json:"delivery"`
	ToleranceRadiusMeters float64       `json:"tolerance_radius_m"`
	MaxErrorMeters        float64       `json:"max_error_m"`
	Cargo                 CargoManifest `json:"cargo"`
	Escrow                money.Money   `json:"escrow"`
	ExpiresAt             float64       `json:"expires_at"`
}

// EncodeCreate marshals p as the payload of a CONTRACT_CREATE transaction.
func EncodeCreate(p CreatePayload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodeCreate parses a CONTRACT_CREATE transaction's payload.
func DecodeCreate(b []byte) (CreatePayload, error) {
	var p CreatePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return CreatePayload{}, ErrUnknownPayload
	}
	return p, nil
}

// CheckpointPayload is a CONTRACT_CHECKPOINT transaction's payload: one
// signed waypoint plus the contract it belongs to.
type CheckpointPayload struct {
	ContractID [32]byte   `json:"contract_id"`
	Checkpoint Checkpoint `json:"checkpoint"`
}

// EncodeCheckpoint marshals p as the payload of a CONTRACT_CHECKPOINT
// transaction.
func EncodeCheckpoint(p CheckpointPayload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodeCheckpoint parses a CONTRACT_CHECKPOINT transaction's payload.
func DecodeCheckpoint(b []byte) (CheckpointPayload, error) {
	var p CheckpointPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return CheckpointPayload{}, ErrUnknownPayload
	}
	return p, nil
}

// FinalizeAction distinguishes the two terminal actions a
// CONTRACT_FINALIZE transaction can carry: the BFT-attested VALIDATED
// transition, or an explicit DISPUTE freeze. EXPIRED has no transaction of
// its own — it is applied by the Chain actor at block-application time
// whenever a contract's expires_at has passed, per spec §4.4's
// "any -> EXPIRED [block time > expiration, no terminal delivery]" rule,
// which names a time condition rather than a submitted transaction.
type FinalizeAction byte

const (
	FinalizeValidate FinalizeAction = 0
	FinalizeDispute  FinalizeAction = 1
)

// FinalizePayload is a CONTRACT_FINALIZE transaction's payload.
type FinalizePayload struct {
	ContractID    [32]byte        `json:"contract_id"`
	Action        FinalizeAction  `json:"action"`
	Attestations  []crypto.Signature `json:"attestations,omitempty"`
	Validators    []crypto.Address   `json:"validators,omitempty"`
	DisputeReason string             `json:"dispute_reason,omitempty"`
}

// EncodeFinalize marshals p as the payload of a CONTRACT_FINALIZE
// transaction.
func EncodeFinalize(p FinalizePayload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodeFinalize parses a CONTRACT_FINALIZE transaction's payload.
func DecodeFinalize(b []byte) (FinalizePayload, error) {
	var p FinalizePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return FinalizePayload{}, ErrUnknownPayload
	}
	return p, nil
}
