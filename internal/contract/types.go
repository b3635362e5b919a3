// Package contract implements the delivery contract and proof-of-delivery
// state machine spec §4.4 describes: a contract moves from creation through
// driver acceptance and a chain of signed, geo-validated checkpoints to a
// BFT-attested payout, or to expiry/dispute along the way. Mutation follows
// the teacher's database.ApplyTransaction shape — every transition is a
// function that takes a *Contract and an event, mutates the contract in
// place and returns an error, applied by the Chain actor under its
// single-writer lock rather than by a lock owned here.
package contract

import (
	"math"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// State is one of the eight lifecycle states spec §4.4 names.
type State byte

const (
	StateDraft     State = 0
	StateOpen      State = 1
	StateAccepted  State = 2
	StateInTransit State = 3
	StateDelivered State = 4
	StateValidated State = 5
	StateExpired   State = 6
	StateDisputed  State = 7
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case StateDraft:
		return "DRAFT"
	case StateOpen:
		return "OPEN"
	case StateAccepted:
		return "ACCEPTED"
	case StateInTransit:
		return "IN_TRANSIT"
	case StateDelivered:
		return "DELIVERED"
	case StateValidated:
		return "VALIDATED"
	case StateExpired:
		return "EXPIRED"
	case StateDisputed:
		return "DISPUTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible, per
// spec §4.4's "Terminal states: VALIDATED, EXPIRED, DISPUTED."
func (s State) IsTerminal() bool {
	return s == StateValidated || s == StateExpired || s == StateDisputed
}

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// CargoManifest carries the cargo attributes spec §3 names, expanded with
// the temperature range, fragility and insured value fields
// original_source/blockchain/core/contract.py tracks on its cargo dict
// (SPEC_FULL.md §4.4 EXPANSION).
type CargoManifest struct {
	CargoType      string
	WeightKg       float64
	VolumeM3       float64
	Priority       byte
	EstimatedValue money.Money
	TempMinC       float64
	TempMaxC       float64
	Fragile        bool
	InsuredValue   money.Money
}

// SensorReading is the optional checkpoint telemetry spec §3 allows,
// expanded to typed fields per SPEC_FULL.md §4.4 EXPANSION rather than an
// opaque map.
type SensorReading struct {
	TemperatureC float64
	HumidityPct  float64
	Shock        bool
}

// Checkpoint is one signed waypoint in a contract's delivery trail.
type Checkpoint struct {
	Seq                uint64
	Timestamp          float64
	Coord              Coordinate
	AccuracyMeters     float64
	Sensors            *SensorReading
	PrevCheckpointHash [32]byte
	Signature          crypto.Signature
}

// canonicalBytes returns the exact byte sequence the driver signs and the
// checkpoint hash commits to: contract_id || seq || timestamp || coord ||
// prev_checkpoint_hash, per spec §3's Checkpoint invariant.
func (cp Checkpoint) canonicalBytes(contractID [32]byte) []byte {
	e := crypto.NewEncoder()
	e.Fixed(contractID[:])
	e.Uint64(cp.Seq)
	e.Uint64(math.Float64bits(cp.Timestamp))
	e.Uint64(math.Float64bits(cp.Coord.Lat))
	e.Uint64(math.Float64bits(cp.Coord.Lng))
	e.Fixed(cp.PrevCheckpointHash[:])
	return e.Bytes()
}

// Hash returns the checkpoint's tamper-evident hash, committing to the
// previous checkpoint's hash so the trail forms a chain within the
// contract (spec §3 invariant).
func (cp Checkpoint) Hash(contractID [32]byte) [32]byte {
	return crypto.DoubleHash(cp.canonicalBytes(contractID))
}

// Verify checks the driver's Ed25519 signature over the checkpoint's
// canonical bytes.
func (cp Checkpoint) Verify(contractID [32]byte, driverPubKey []byte) error {
	return crypto.VerifyEd25519(driverPubKey, cp.canonicalBytes(contractID), cp.Signature)
}

// SignCheckpoint signs cp with driver's key over the same canonical bytes
// Verify checks, returning the signed copy. Used by the wallet/ingress
// boundary to produce a CHECKPOINT transaction's signature before
// submission, and by tests that need a well-formed checkpoint.
func SignCheckpoint(driver crypto.Identity, contractID [32]byte, cp Checkpoint) (Checkpoint, error) {
	sig, err := driver.Sign(cp.canonicalBytes(contractID))
	if err != nil {
		return Checkpoint{}, err
	}
	cp.Signature = sig
	return cp, nil
}

// Contract is the delivery agreement the Chain actor mutates through the
// state machine in statemachine.go.
type Contract struct {
	ID      [32]byte
	Creator crypto.Address
	Driver  crypto.Address // zero until OPEN -> ACCEPTED

	Pickup                Coordinate
	Delivery              Coordinate
	ToleranceRadiusMeters float64
	MaxErrorMeters        float64

	Cargo CargoManifest

	Escrow    money.Money
	CreatedAt float64
	ExpiresAt float64

	State        State
	Checkpoints  []Checkpoint
	Attestations []crypto.Signature

	DisputeReason string
}

// LastCheckpoint returns the most recent checkpoint and true, or the zero
// value and false if none has been recorded yet.
func (c *Contract) LastCheckpoint() (Checkpoint, bool) {
	if len(c.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return c.Checkpoints[len(c.Checkpoints)-1], true
}
