// Package genesis maintains access to the genesis configuration: starting
// balances, chain identity and the reward schedule parameters every other
// component derives its defaults from.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Mode selects the operating profile described by spec §4.8: ON_GRID runs
// full online consensus, OFF_GRID relaxes caps and drops the BFT quorum
// requirement.
type Mode string

const (
	// ModeOnGrid is the default, fully-connected operating mode.
	ModeOnGrid Mode = "ON_GRID"
	// ModeOffGrid is the degraded, disconnected operating mode.
	ModeOffGrid Mode = "OFF_GRID"
)

// RewardSplit is the payout split at contract VALIDATED (spec §4.4).
type RewardSplit struct {
	Driver     float64 `json:"driver"`
	Validators float64 `json:"validators"`
	Reserve    float64 `json:"reserve"`
}

// Genesis represents the genesis configuration file.
type Genesis struct {
	Date        time.Time         `json:"date"`
	ChainID     uint16            `json:"chain_id"`
	Mode        Mode              `json:"mode"`
	Difficulty  uint              `json:"difficulty"`
	Balances    map[string]uint64 `json:"balances"`

	TargetBlockTimeSeconds    int64       `json:"target_block_time_seconds"`
	BlockSizeCapBytes         int64       `json:"block_size_cap_bytes"`
	TxCountCap                int         `json:"tx_count_cap"`
	MempoolMaxBytes           int64       `json:"mempool_max_bytes"`
	DifficultyRetargetBlocks  uint64      `json:"difficulty_retarget_interval"`
	CommitteeSize             int         `json:"committee_size"`
	EpochBlocks               uint64      `json:"epoch_blocks"`
	ReorgWindow               uint64      `json:"reorg_window"`
	GPSAccuracyLimitMeters    float64     `json:"gps_accuracy_limit_m"`
	MaxStepKM                 float64     `json:"max_step_km"`
	TDriftSeconds             int64       `json:"t_drift_seconds"`
	MaxCoordinateOpsPerMinute int         `json:"max_coordinate_ops_per_minute"`
	RBFMinBumpRatio           float64     `json:"rbf_min_bump_ratio"`
	RewardSplit               RewardSplit `json:"reward_split"`
	MaxSupplyUnits            uint64      `json:"max_supply_units"`
	HalvingIntervalBlocks     uint64      `json:"halving_interval_blocks"`
	BaseRewardUnits           uint64      `json:"base_reward_units"`
	StakeAmountUnits          uint64      `json:"stake_amount_units"`
}

// Default returns the ON_GRID defaults enumerated in spec §6.
func Default() Genesis {
	return Genesis{
		Mode:                      ModeOnGrid,
		Difficulty:                1,
		Balances:                  map[string]uint64{},
		TargetBlockTimeSeconds:    30,
		BlockSizeCapBytes:         1_048_576,
		TxCountCap:                1000,
		MempoolMaxBytes:           268_435_456,
		DifficultyRetargetBlocks:  2016,
		CommitteeSize:             21,
		EpochBlocks:               144,
		ReorgWindow:               6,
		GPSAccuracyLimitMeters:    10,
		MaxStepKM:                 5,
		TDriftSeconds:             300,
		MaxCoordinateOpsPerMinute: 100,
		RBFMinBumpRatio:           0.10,
		RewardSplit:               RewardSplit{Driver: 0.70, Validators: 0.20, Reserve: 0.10},
		MaxSupplyUnits:            100_000_000,
		HalvingIntervalBlocks:     420_480,
		BaseRewardUnits:           50,
		StakeAmountUnits:          1_000,
	}
}

// DefaultOffGrid returns the OFF_GRID profile: smaller caps, a shorter
// retarget interval, longer target block time, no BFT quorum (spec §4.8).
// Its starting difficulty is 1, the same as Default's; it is not lowered.
func DefaultOffGrid() Genesis {
	g := Default()
	g.Mode = ModeOffGrid
	g.Difficulty = 1
	g.TargetBlockTimeSeconds = 300
	g.BlockSizeCapBytes = 1_024
	g.TxCountCap = 10
	g.MempoolMaxBytes = 262_144
	g.DifficultyRetargetBlocks = 144
	return g
}

// Load reads and parses a genesis file from disk.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var g Genesis
	if err := json.Unmarshal(content, &g); err != nil {
		return Genesis{}, err
	}
	return g, nil
}

// Save writes the genesis configuration to disk as indented JSON.
func Save(path string, g Genesis) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// RewardAtHeight computes the base mining reward for a given block height
// under the halving schedule (spec §4.6, open question (a) resolved in
// DESIGN.md: halving counts every accepted block regardless of mode).
func (g Genesis) RewardAtHeight(height uint64) uint64 {
	halvings := height / g.HalvingIntervalBlocks
	if halvings >= 64 {
		return 0
	}
	return g.BaseRewardUnits >> halvings
}
