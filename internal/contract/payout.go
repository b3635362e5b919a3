package contract

import (
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// Payout is one credit the Chain actor must apply to an account's balance
// after a contract reaches VALIDATED (spec §4.4's "emits payout txs").
type Payout struct {
	To     crypto.Address
	Amount money.Money
}

// Payouts is the full split of one contract's reward pool: driver share,
// one even credit per attesting validator, and the network reserve share.
// Reserve has no destination address in spec.md — the Chain actor decides
// where the reserve sink lives (e.g. a fixed network-reserve account); this
// package only computes the amount.
type Payouts struct {
	Driver  Payout
	Pool    []Payout
	Reserve money.Money
}

// computePayouts splits baseReward+escrow across driver/validators/reserve
// per cfg.Split, crediting each attesting validator an equal share of the
// validator pool (spec §4.4).
func computePayouts(c *Contract, baseReward money.Money, validators []crypto.Address, cfg Config) (Payouts, error) {
	if len(validators) == 0 {
		return Payouts{}, ErrNoValidatorPool
	}

	total, err := baseReward.Add(c.Escrow)
	if err != nil {
		return Payouts{}, err
	}

	driverAmt, err := total.MulFloat(cfg.Split.Driver)
	if err != nil {
		return Payouts{}, err
	}
	validatorPoolAmt, err := total.MulFloat(cfg.Split.Validators)
	if err != nil {
		return Payouts{}, err
	}

	perValidator, err := validatorPoolAmt.MulFloat(1.0 / float64(len(validators)))
	if err != nil {
		return Payouts{}, err
	}

	pool := make([]Payout, 0, len(validators))
	poolTotal := money.Zero()
	for _, addr := range validators {
		pool = append(pool, Payout{To: addr, Amount: perValidator})
		poolTotal, err = poolTotal.Add(perValidator)
		if err != nil {
			return Payouts{}, err
		}
	}

	// Reserve takes whatever MulFloat's round-down left on the table from
	// the driver and validator shares, rather than its own independently
	// rounded cut, so driver+pool+reserve always sums to exactly total
	// (spec §8 property 5's conservation, rather than leaking dust).
	spent, err := driverAmt.Add(poolTotal)
	if err != nil {
		return Payouts{}, err
	}
	reserveAmt, err := total.Sub(spent)
	if err != nil {
		return Payouts{}, err
	}

	return Payouts{
		Driver:  Payout{To: c.Driver, Amount: driverAmt},
		Pool:    pool,
		Reserve: reserveAmt,
	}, nil
}
