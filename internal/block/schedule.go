package block

import "github.com/caiorlm/logichain/internal/money"

// BaseRewardUnits is the genesis mining reward in whole units, chosen to
// match the worked example in spec §8 (S1: "50 base reward").
const BaseRewardUnits = 50

// HalvingIntervalBlocks is the default halving_interval_blocks spec §6
// enumerates (~4 years at the online 30s target block time).
const HalvingIntervalBlocks = 420_480

// Schedule returns the coinbase reward for a block at height, halving
// every HalvingIntervalBlocks (spec §4.6/§8 property 5: the mining
// schedule is the sole source of new supply, counted against
// max_supply_units regardless of ON_GRID/OFF_GRID mode — see DESIGN.md's
// Open Question (a)).
func Schedule(height uint64) money.Money {
	halvings := height / HalvingIntervalBlocks
	if halvings >= 64 {
		return money.Zero()
	}
	units := BaseRewardUnits >> halvings
	return money.FromUnits(uint64(units))
}
