package consensus

import "errors"

var (
	ErrStakeTooLow      = errors.New("consensus: stake below registration minimum")
	ErrNoValidators     = errors.New("consensus: committee has no members")
	ErrQuorumNotMet     = errors.New("consensus: attestations below required quorum")
	ErrNotCommitteeMember = errors.New("consensus: voter is not a committee member")
	ErrDuplicateVote    = errors.New("consensus: voter already submitted for this height/view")
	ErrViewChangeSignatureInvalid = errors.New("consensus: view change signature invalid")
)
