package consensus

import (
	"math/big"

	"github.com/caiorlm/logichain/internal/crypto"
)

// Thresholds returns the Byzantine fault tolerance f and the quorum size
// ⌊2f⌋+1 for a committee of n members, spec §4.5/§4.6's fixed
// ⌊2f⌋+1-of-3f+1 threshold (n is treated as 3f+1; f is n's floor-div-3).
// Unlike swift-consensus-swift-v2's QuorumCalculator, which computes an
// adaptive quorum from online voting weight, spec.md fixes the fraction,
// so there is nothing to cache or recompute per round — see DESIGN.md.
func Thresholds(n int) (f, quorumSize int) {
	if n <= 0 {
		return 0, 0
	}
	f = (n - 1) / 3
	return f, 2*f + 1
}

// HasQuorum reports whether sigCount signatures meet the committee's
// quorum threshold.
func HasQuorum(sigCount, committeeSize int) bool {
	_, q := Thresholds(committeeSize)
	return sigCount >= q
}

// VerifyAttestationQuorum checks that at least quorum-many *distinct*
// committee members produced a valid Ed25519 signature over headerHash.
// The wire attestation list (block.Header.Attestations) carries bare
// signatures with no embedded signer identity, so each signature is tried
// against every not-yet-matched committee member's key — O(committee ×
// attestations), acceptable at the spec's committee_size=21 scale.
func VerifyAttestationQuorum(headerHash [32]byte, attestations []crypto.Signature, committee Committee) error {
	_, quorumSize := Thresholds(len(committee.Members))
	if quorumSize == 0 {
		return ErrNoValidators
	}

	matched := make([]bool, len(committee.Members))
	confirmed := 0

	for _, att := range attestations {
		if att.Scheme != crypto.SchemeEd25519 {
			continue
		}
		for i, member := range committee.Members {
			if matched[i] {
				continue
			}
			if crypto.VerifyEd25519(member.PubKey, headerHash[:], att) == nil {
				matched[i] = true
				confirmed++
				break
			}
		}
	}

	if confirmed < quorumSize {
		return ErrQuorumNotMet
	}
	return nil
}

// WorkForDifficulty converts a leading-zero-bit difficulty into the
// cumulative "work" unit fork resolution sums over: 2^difficulty, the
// bit-count analogue of Bitcoin's numeric-target work measure.
func WorkForDifficulty(difficulty uint32) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(difficulty))
}
