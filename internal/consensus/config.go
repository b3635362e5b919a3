// Package consensus implements the hybrid PoW+PoD+BFT engine spec §4.6
// describes: a fixed-stake validator committee that rotates at epoch
// boundaries, round-robin proposer selection with view-change on timeout,
// and the ⌊2f⌋+1-of-3f+1 quorum used both to finalize contract VALIDATED
// transitions and to settle forks.
package consensus

import "time"

// Config collects the enumerated constants spec §6 lists for consensus.
type Config struct {
	CommitteeSize        int
	EpochBlocks          uint64
	ReorgWindow          uint64
	ProposalTimeout      time.Duration
	MaxViewChangeTimeout time.Duration
	MaxMisbehaviorStrikes int
	MinStakeUnits         uint64
}

// DefaultConfig returns spec §6's named defaults. MinStakeUnits has no
// stated default (spec §4.6 names STAKE_AMOUNT without a value) — set to
// the genesis wallet grant (1000 units, spec §6's genesis_wallets) so an
// early validator can self-stake its full starting balance; see
// DESIGN.md's open questions.
func DefaultConfig() Config {
	return Config{
		CommitteeSize:         21,
		EpochBlocks:           144,
		ReorgWindow:           6,
		ProposalTimeout:       10 * time.Second,
		MaxViewChangeTimeout:  160 * time.Second,
		MaxMisbehaviorStrikes: 3,
		MinStakeUnits:         1000,
	}
}
