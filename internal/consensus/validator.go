package consensus

import (
	"sort"
	"sync"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

// Record is a registered validator, spec §4.6/SPEC_FULL.md's [EXPANSION]
// validator record: address, pubkey, stake, joined_epoch, reputation,
// misbehavior_strikes.
type Record struct {
	Address             crypto.Address
	PubKey              []byte
	Stake               money.Money
	JoinedEpoch         uint64
	Reputation          float64
	MisbehaviorStrikes  int
	SuspendedUntilEpoch uint64
}

// eligible reports whether v may sit on the committee for epoch.
func (v Record) eligible(epoch uint64) bool {
	return epoch >= v.SuspendedUntilEpoch
}

// Registry is the mutable set of all registered validators, independent of
// which ones currently hold a committee seat. Adapted from the teacher's
// poa.go registry (one map, one mutex, add/list), generalized with stake
// and strike bookkeeping the teacher's demo node registry never needed.
type Registry struct {
	mu         sync.RWMutex
	validators map[crypto.Address]*Record
}

// NewRegistry constructs an empty validator registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[crypto.Address]*Record)}
}

// Register adds or replaces a validator's record. cfg.MinStakeUnits is the
// registration floor spec §4.6 calls STAKE_AMOUNT.
func (r *Registry) Register(rec Record, cfg Config) error {
	if rec.Stake.Cmp(money.FromUnits(cfg.MinStakeUnits)) < 0 {
		return ErrStakeTooLow
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[rec.Address] = &rec
	return nil
}

// Get returns a copy of the record for addr.
func (r *Registry) Get(addr crypto.Address) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.validators[addr]
	if !ok {
		return Record{}, false
	}
	return *v, true
}

// PublicKeyFor adapts the registry to block.Lookups.PublicKeyFor and to
// attestation verification: both need a validator's raw Ed25519 key by
// address.
func (r *Registry) PublicKeyFor(addr crypto.Address) ([]byte, bool) {
	v, ok := r.Get(addr)
	if !ok {
		return nil, false
	}
	return v.PubKey, true
}

// RecordStrike increments addr's misbehavior strike count and, once it
// reaches cfg.MaxMisbehaviorStrikes, suspends the validator from committee
// selection until evictionEpoch — spec §4.7's "repeated ProposerMisbehavior
// removes a validator from the committee for the remainder of the epoch."
func (r *Registry) RecordStrike(addr crypto.Address, evictionEpoch uint64, cfg Config) (strikes int, evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.validators[addr]
	if !ok {
		return 0, false
	}
	v.MisbehaviorStrikes++
	if v.MisbehaviorStrikes >= cfg.MaxMisbehaviorStrikes {
		v.SuspendedUntilEpoch = evictionEpoch
		return v.MisbehaviorStrikes, true
	}
	return v.MisbehaviorStrikes, false
}

// ResetStrikesAtEpoch clears every validator's strike count at an epoch
// boundary, the natural point for a suspension to lapse.
func (r *Registry) ResetStrikesAtEpoch(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.validators {
		if v.SuspendedUntilEpoch <= epoch {
			v.MisbehaviorStrikes = 0
		}
	}
}

// EligibleCandidates returns every validator not suspended for epoch,
// the pool SelectCommittee draws its top-N-by-stake from.
func (r *Registry) EligibleCandidates(epoch uint64) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.validators))
	for _, v := range r.validators {
		if v.eligible(epoch) {
			out = append(out, *v)
		}
	}
	return out
}

// Committee is the fixed validator set for one epoch, sorted by address so
// round-robin proposer selection is deterministic across nodes.
type Committee struct {
	Epoch   uint64
	Members []Record
}

// SelectCommittee picks the top size candidates by stake (ties broken by
// address, lowest first, for determinism), spec §4.6's "top N by stake
// (default N=21) form the committee." The result is re-sorted by address:
// stake only decides membership, not proposer order.
func SelectCommittee(epoch uint64, candidates []Record, size int) Committee {
	ranked := append([]Record(nil), candidates...)
	sort.Slice(ranked, func(i, j int) bool {
		if cmp := ranked[i].Stake.Cmp(ranked[j].Stake); cmp != 0 {
			return cmp > 0
		}
		return ranked[i].Address.String() < ranked[j].Address.String()
	})
	if len(ranked) > size {
		ranked = ranked[:size]
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Address.String() < ranked[j].Address.String()
	})

	return Committee{Epoch: epoch, Members: ranked}
}

// IndexOf returns the committee slot for addr, or -1 if addr does not hold
// a seat this epoch.
func (c Committee) IndexOf(addr crypto.Address) int {
	for i, m := range c.Members {
		if m.Address == addr {
			return i
		}
	}
	return -1
}
