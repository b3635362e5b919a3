package ledger

import (
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// AccountStatus tracks whether an account is in good standing.
type AccountStatus byte

const (
	AccountActive    AccountStatus = 0
	AccountSuspended AccountStatus = 1
)

// RoleMetrics carries the per-role counters spec §3 attaches to an account:
// deliveries completed as a driver, revenue earned as an establishment,
// contracts completed in either role, and the running average rating.
type RoleMetrics struct {
	Deliveries         uint64
	Revenue            money.Money
	CompletedContracts uint64
	AvgRating          float64
}

// Account is the per-address state the Chain actor exclusively owns.
type Account struct {
	Address     crypto.Address
	Balance     money.Money
	Nonce       uint64
	Reputation  float64 // 0..1
	Role        RoleMetrics
	CreatedAt   float64
	Status      AccountStatus
}

// NewAccount constructs a fresh account with the neutral starting
// reputation used for newly-seen addresses (spec §4.4 reputation updates
// move this toward 1.0 on success, toward 0 on expiry).
func NewAccount(addr crypto.Address, balance money.Money, createdAt float64) Account {
	return Account{
		Address:    addr,
		Balance:    balance,
		Reputation: 0.5,
		CreatedAt:  createdAt,
		Status:     AccountActive,
	}
}
