package contract

// RewardSplit is the payout division spec §4.4/§6 fixes by default: driver
// share D, validator pool share V, network reserve share R. The three
// shares always sum to 1.0.
type RewardSplit struct {
	Driver     float64
	Validators float64
	Reserve    float64
}

// Config collects the tunable constants the checkpoint validator and
// payout/reputation rules depend on, sourced from spec §6's enumerated
// configuration and spec §4.4.
type Config struct {
	GPSAccuracyLimitMeters float64
	MaxStepKM              float64
	TDriftSeconds          float64
	RepThreshold           float64
	Split                  RewardSplit

	// ReputationSuccessWeight/ReputationExpiryWeight are the 0.05/0.2
	// nudge weights spec §4.4 assigns to the EMA-style reputation update.
	ReputationSuccessWeight float64
	ReputationExpiryWeight  float64
}

// DefaultConfig returns the ON_GRID defaults spec §6 enumerates.
// REP_THRESHOLD has no default stated in spec.md; 0.2 is chosen here so a
// brand-new account (reputation 0.5, see ledger.NewAccount) is eligible by
// default while a driver whose reputation has decayed from repeated
// EXPIRED contracts is locked out before it reaches the neutral starting
// value — see DESIGN.md's Open Questions addendum.
func DefaultConfig() Config {
	return Config{
		GPSAccuracyLimitMeters: 10,
		MaxStepKM:              5,
		TDriftSeconds:          300,
		RepThreshold:           0.2,
		Split: RewardSplit{
			Driver:     0.70,
			Validators: 0.20,
			Reserve:    0.10,
		},
		ReputationSuccessWeight: 0.05,
		ReputationExpiryWeight:  0.2,
	}
}

// ReputationOnSuccess nudges current toward 1.0 with the configured
// success weight (spec §4.4).
func (cfg Config) ReputationOnSuccess(current float64) float64 {
	return cfg.ReputationSuccessWeight*1.0 + (1-cfg.ReputationSuccessWeight)*current
}

// ReputationOnExpiry nudges current toward 0 with the configured expiry
// weight (spec §4.4).
func (cfg Config) ReputationOnExpiry(current float64) float64 {
	return (1 - cfg.ReputationExpiryWeight) * current
}
