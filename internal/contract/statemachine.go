package contract

import (
	"github.com/caiorlm/logichain/internal/coordgrid"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// NewContract constructs a contract directly in OPEN, collapsing spec
// §4.4's DRAFT -> OPEN transition into construction itself: DRAFT never
// persists on its own, it is only the pre-transaction intent a
// CONTRACT_CREATE transaction carries before the Chain actor applies it.
func NewContract(id [32]byte, creator crypto.Address, pickup, delivery Coordinate, toleranceRadiusMeters, maxErrorMeters float64, cargo CargoManifest, escrow money.Money, createdAt, expiresAt float64) *Contract {
	return &Contract{
		ID:                    id,
		Creator:               creator,
		Pickup:                pickup,
		Delivery:              delivery,
		ToleranceRadiusMeters: toleranceRadiusMeters,
		MaxErrorMeters:        maxErrorMeters,
		Cargo:                 cargo,
		Escrow:                escrow,
		CreatedAt:             createdAt,
		ExpiresAt:             expiresAt,
		State:                 StateOpen,
	}
}

// Accept applies the OPEN -> ACCEPTED transition, guarded by the driver's
// current reputation meeting REP_THRESHOLD (spec §4.4). There is no
// dedicated ACCEPT transaction among spec §3's five tx types; the Chain
// actor calls Accept from inside its first CONTRACT_CHECKPOINT handling for
// a contract still in OPEN, so acceptance is carried by that checkpoint
// rather than a separate transaction. Signature verification is the
// ledger package's concern (every tx is independently signature-checked
// before reaching the state machine); this function only enforces the
// state-machine-specific reputation gate.
func Accept(c *Contract, driver crypto.Address, driverReputation float64, cfg Config) error {
	if c.State != StateOpen {
		return ErrNotOpen
	}
	if driverReputation < cfg.RepThreshold {
		return ErrDriverReputationLow
	}

	c.Driver = driver
	c.State = StateAccepted
	return nil
}

// ApplyCheckpoint validates and appends cp, then applies whichever of the
// ACCEPTED->IN_TRANSIT, IN_TRANSIT->IN_TRANSIT, or IN_TRANSIT->DELIVERED
// transitions cp satisfies. It touches no coordinate-grid state: the
// cell success/failure bookkeeping is done separately through
// RecordGridOutcome and SetGridActive.
func ApplyCheckpoint(c *Contract, cp Checkpoint, driverPubKey []byte, ingestTime float64, cfg Config) error {
	if c.State != StateAccepted && c.State != StateInTransit {
		return ErrNotAcceptedOrTransit
	}

	if err := validateCheckpoint(c, cp, driverPubKey, ingestTime, cfg); err != nil {
		return err
	}

	switch c.State {
	case StateAccepted:
		if !c.atPickup(cp.Coord) {
			return ErrCheckpointOutsideEnvelope
		}
		c.Checkpoints = append(c.Checkpoints, cp)
		c.State = StateInTransit
		return nil

	case StateInTransit:
		if c.atDelivery(cp.Coord) {
			if cp.AccuracyMeters > c.MaxErrorMeters {
				return ErrFinalAccuracyExceedsMax
			}
			c.Checkpoints = append(c.Checkpoints, cp)
			c.State = StateDelivered
			return nil
		}
		c.Checkpoints = append(c.Checkpoints, cp)
		return nil
	}

	return ErrNotAcceptedOrTransit
}

// SetGridActive increments (delta=+1, at CONTRACT_CREATE) or decrements
// (delta=-1, at any terminal transition) the pickup and delivery cells'
// active_contracts counters spec §3 defines for the Coordinate Cell.
func SetGridActive(grid *coordgrid.Grid, c *Contract, delta int) {
	for _, coord := range []Coordinate{c.Pickup, c.Delivery} {
		cell, err := grid.CellAt(coord.Lat, coord.Lng)
		if err != nil {
			continue
		}
		if delta > 0 {
			cell.IncActive()
		} else {
			cell.DecActive()
		}
	}
}

// RecordGridOutcome applies the cell success/failure bookkeeping spec
// §4.4 ties to a contract's terminal outcome: a success increments the
// pickup and delivery cells' success counters and rolls the delivery
// duration into the average; an expiry increments their failure counters.
// Called once, immediately after Validate or Expire transitions the
// contract to its terminal state.
func RecordGridOutcome(grid *coordgrid.Grid, c *Contract, success bool, durationSeconds float64) {
	for _, coord := range []Coordinate{c.Pickup, c.Delivery} {
		cell, err := grid.CellAt(coord.Lat, coord.Lng)
		if err != nil {
			continue
		}
		if success {
			cell.RecordSuccess(durationSeconds)
		} else {
			cell.RecordFailure()
		}
	}
}

// Validate applies the BFT quorum attestation that moves DELIVERED ->
// VALIDATED and computes the resulting payouts (spec §4.4). requiredQuorum
// is the caller-computed ⌊2f⌋+1 threshold from the consensus package;
// this function only checks that enough signatures were supplied and does
// not itself verify them — that is the consensus package's job, since it
// alone knows the registered committee for the block's height.
func Validate(c *Contract, attestations []crypto.Signature, requiredQuorum int, baseReward money.Money, validators []crypto.Address, cfg Config) (Payouts, error) {
	if c.State != StateDelivered {
		return Payouts{}, ErrNotDelivered
	}
	if len(attestations) < requiredQuorum {
		return Payouts{}, ErrQuorumTooSmall
	}

	payouts, err := computePayouts(c, baseReward, validators, cfg)
	if err != nil {
		return Payouts{}, err
	}

	c.Attestations = attestations
	c.State = StateValidated
	return payouts, nil
}

// Expire applies the "any -> EXPIRED [block time > expiration, no terminal
// delivery]" transition (spec §4.4). now is the applying block's
// timestamp.
func Expire(c *Contract, now float64) error {
	if c.State.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if now <= c.ExpiresAt {
		return nil
	}
	c.State = StateExpired
	return nil
}

// Dispute applies the "any -> DISPUTED [explicit DISPUTE event]"
// transition (spec §4.4): the escrow stays held on the contract (frozen,
// not released) and the reason is recorded. No code path here or anywhere
// else resolves a dispute automatically — that is explicitly out of scope
// per spec.md's Non-goals.
func Dispute(c *Contract, reason string) error {
	if c.State.IsTerminal() {
		return ErrAlreadyTerminal
	}
	c.State = StateDisputed
	c.DisputeReason = reason
	return nil
}
