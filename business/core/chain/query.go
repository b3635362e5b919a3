package chain

import (
	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
)

// QueryAccount is spec §6's query_account egress operation.
func (c *Chain) QueryAccount(addr crypto.Address) (ledger.Account, error) {
	acct, ok, err := c.idx.GetAccount(addr)
	if err != nil {
		return ledger.Account{}, err
	}
	if !ok {
		return ledger.Account{}, ErrAccountNotFound
	}
	return acct, nil
}

// QueryContract is spec §6's query_contract egress operation.
func (c *Chain) QueryContract(id [32]byte) (contract.Contract, error) {
	ct, ok, err := c.idx.GetContract(id)
	if err != nil {
		return contract.Contract{}, err
	}
	if !ok {
		return contract.Contract{}, ErrContractNotFound
	}
	return ct, nil
}

// TipInfo is the snapshot QueryTip reports.
type TipInfo struct {
	Hash           [32]byte
	Height         uint64
	CumulativeWork string
}

// QueryTip is spec §6's query_tip egress operation.
func (c *Chain) QueryTip() TipInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return TipInfo{
		Hash:           c.tipHash,
		Height:         c.tipHeight,
		CumulativeWork: c.cumulativeWork.String(),
	}
}

// QueryMempoolCount reports how many transactions are currently pending,
// used by the web boundary's health/status surface.
func (c *Chain) QueryMempoolCount() int {
	return c.mempool.Count()
}

// SubscribeEvents is spec §6's subscribe_events egress operation: acquire
// the channel for subscriber id, creating it if this is the first call.
func (c *Chain) SubscribeEvents(id string) chan string {
	return c.events.Acquire(id)
}

// UnsubscribeEvents releases the channel handed out for id.
func (c *Chain) UnsubscribeEvents(id string) error {
	return c.events.Release(id)
}
