package contract

import "errors"

// Sentinel errors for every contract/checkpoint transition rule in spec
// §4.4, returned in the order the rules are checked so callers can surface
// the first failing rule as the taxonomy tag spec §7 requires.
var (
	ErrNotOpen              = errors.New("contract: not in OPEN state")
	ErrDriverReputationLow  = errors.New("contract: driver reputation below REP_THRESHOLD")
	ErrNotAcceptedOrTransit = errors.New("contract: not in ACCEPTED or IN_TRANSIT state")
	ErrAlreadyTerminal      = errors.New("contract: already in a terminal state")

	ErrCheckpointSignatureInvalid = errors.New("contract: checkpoint signature invalid")
	ErrCheckpointSeqOutOfOrder    = errors.New("contract: checkpoint seq must be prev_seq+1")
	ErrCheckpointPrevHashMismatch = errors.New("contract: checkpoint prev_checkpoint_hash mismatch")
	ErrCheckpointTimestampDrift   = errors.New("contract: checkpoint timestamp outside T_DRIFT")
	ErrCheckpointAccuracyLimit    = errors.New("contract: checkpoint accuracy exceeds GPS_ACCURACY_LIMIT")
	ErrCheckpointStepTooFar       = errors.New("contract: haversine step exceeds MAX_STEP_KM")
	ErrCheckpointOutsideEnvelope  = errors.New("contract: checkpoint outside trajectory envelope")
	ErrFinalAccuracyExceedsMax    = errors.New("contract: final checkpoint accuracy exceeds max_error")

	ErrNotDelivered    = errors.New("contract: not in DELIVERED state")
	ErrQuorumTooSmall  = errors.New("contract: attestation count below required BFT quorum")
	ErrNoValidatorPool = errors.New("contract: validator pool is empty, cannot split validator share")
)
