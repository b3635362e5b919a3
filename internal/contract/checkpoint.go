package contract

import "math"

// validateCheckpoint runs the checkpoint validation rules spec §4.4 lists
// in order, returning the first rule that fails. It does not mutate c or
// decide the resulting state transition — ApplyCheckpoint does that once
// the checkpoint is known-good.
func validateCheckpoint(c *Contract, cp Checkpoint, driverPubKey []byte, ingestTime float64, cfg Config) error {
	if err := cp.Verify(c.ID, driverPubKey); err != nil {
		return ErrCheckpointSignatureInvalid
	}

	prev, hasPrev := c.LastCheckpoint()

	var wantSeq uint64
	var wantPrevHash [32]byte
	if hasPrev {
		wantSeq = prev.Seq + 1
		wantPrevHash = prev.Hash(c.ID)
	} else {
		wantSeq = 1
		wantPrevHash = [32]byte{}
	}

	if cp.Seq != wantSeq {
		return ErrCheckpointSeqOutOfOrder
	}
	if cp.PrevCheckpointHash != wantPrevHash {
		return ErrCheckpointPrevHashMismatch
	}

	if math.Abs(cp.Timestamp-ingestTime) > cfg.TDriftSeconds {
		return ErrCheckpointTimestampDrift
	}

	if cp.AccuracyMeters > cfg.GPSAccuracyLimitMeters {
		return ErrCheckpointAccuracyLimit
	}

	if hasPrev {
		stepKM := distanceMeters(prev.Coord, cp.Coord) / 1000
		if stepKM > cfg.MaxStepKM {
			return ErrCheckpointStepTooFar
		}
	}

	if !withinEnvelope(cp.Coord, c.Pickup, c.Delivery, c.ToleranceRadiusMeters, cfg.MaxStepKM) {
		return ErrCheckpointOutsideEnvelope
	}

	return nil
}

// atPickup reports whether coord is within the contract's tolerance radius
// of its pickup point — the ACCEPTED -> IN_TRANSIT transition guard.
func (c *Contract) atPickup(coord Coordinate) bool {
	return distanceMeters(coord, c.Pickup) <= c.ToleranceRadiusMeters
}

// atDelivery reports whether coord is within the contract's tolerance
// radius of its delivery point — the IN_TRANSIT -> DELIVERED transition
// guard.
func (c *Contract) atDelivery(coord Coordinate) bool {
	return distanceMeters(coord, c.Delivery) <= c.ToleranceRadiusMeters
}
