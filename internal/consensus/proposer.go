package consensus

import "github.com/caiorlm/logichain/internal/crypto"

// ProposerIndex returns the committee slot whose turn it is to propose the
// block at height, given the current view. Spec §4.6 calls for
// "deterministic round-robin over committee" on each view change — unlike
// the teacher's poa.go, which hashes the latest block to pick a pseudo-random
// index, spec.md wants plain rotation so every honest member's turn is
// predictable and a silent proposer is unambiguous.
func ProposerIndex(committee Committee, height uint64, view uint32) int {
	n := len(committee.Members)
	if n == 0 {
		return -1
	}
	return int((height + uint64(view)) % uint64(n))
}

// Proposer resolves ProposerIndex to the validator record.
func Proposer(committee Committee, height uint64, view uint32) (Record, bool) {
	i := ProposerIndex(committee, height, view)
	if i < 0 {
		return Record{}, false
	}
	return committee.Members[i], true
}

// IsProposer reports whether addr is the expected proposer for
// (height, view).
func IsProposer(committee Committee, height uint64, view uint32, addr crypto.Address) bool {
	p, ok := Proposer(committee, height, view)
	return ok && p.Address == addr
}
