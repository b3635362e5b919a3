package consensus

import (
	"math/big"
	"testing"

	"github.com/caiorlm/logichain/internal/block"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

func newTestValidator(t *testing.T, stakeUnits uint64) (*crypto.Ed25519Identity, Record) {
	t.Helper()
	id, err := crypto.GenerateEd25519Identity()
	if err != nil {
		t.Fatalf("GenerateEd25519Identity: %v", err)
	}
	rec := Record{
		Address: id.Address(),
		PubKey:  id.PublicKeyBytes(),
		Stake:   money.FromUnits(stakeUnits),
	}
	return id, rec
}

func Test_Thresholds_FourMemberCommittee(t *testing.T) {
	// Spec §9 S6: committee of 4, quorum reached at 3 of 4.
	f, q := Thresholds(4)
	if f != 1 || q != 3 {
		t.Fatalf("Thresholds(4) = (%d, %d), want (1, 3)", f, q)
	}
}

func Test_SelectCommittee_TopByStakeThenSortedByAddress(t *testing.T) {
	var candidates []Record
	for i := uint64(1); i <= 5; i++ {
		_, rec := newTestValidator(t, i*1000)
		candidates = append(candidates, rec)
	}

	committee := SelectCommittee(0, candidates, 3)
	if len(committee.Members) != 3 {
		t.Fatalf("committee size = %d, want 3", len(committee.Members))
	}
	for i := 1; i < len(committee.Members); i++ {
		if committee.Members[i-1].Address.String() >= committee.Members[i].Address.String() {
			t.Fatalf("committee members not sorted by address")
		}
	}
}

func Test_ProposerRotatesRoundRobin(t *testing.T) {
	var candidates []Record
	for i := 0; i < 4; i++ {
		_, rec := newTestValidator(t, 5000)
		candidates = append(candidates, rec)
	}
	committee := SelectCommittee(0, candidates, 4)

	seen := make(map[crypto.Address]bool)
	for view := uint32(0); view < 4; view++ {
		p, ok := Proposer(committee, 10, view)
		if !ok {
			t.Fatalf("Proposer(%d) not found", view)
		}
		seen[p.Address] = true
	}
	if len(seen) != 4 {
		t.Fatalf("round robin over 4 views visited %d distinct proposers, want 4", len(seen))
	}
}

func Test_ViewChangeHandler_ReachesQuorum(t *testing.T) {
	var ids []*crypto.Ed25519Identity
	var candidates []Record
	for i := 0; i < 4; i++ {
		id, rec := newTestValidator(t, 5000)
		ids = append(ids, id)
		candidates = append(candidates, rec)
	}
	committee := SelectCommittee(0, candidates, 4)
	handler := NewViewChangeHandler(committee)

	pubKeyFor := func(addr crypto.Address) ([]byte, bool) {
		for _, r := range committee.Members {
			if r.Address == addr {
				return r.PubKey, true
			}
		}
		return nil, false
	}

	var lastCommitted [32]byte
	reached := false
	for i := 0; i < 3; i++ {
		msg, err := SignViewChange(ids[i], 10, 1, lastCommitted)
		if err != nil {
			t.Fatalf("SignViewChange: %v", err)
		}
		ok, err := handler.Process(msg, pubKeyFor)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if ok {
			reached = true
		}
	}
	if !reached {
		t.Fatalf("quorum of 3/4 view-change votes did not certify")
	}
}

func Test_ViewChangeHandler_RejectsDuplicateVoter(t *testing.T) {
	id, rec := newTestValidator(t, 5000)
	committee := Committee{Epoch: 0, Members: []Record{rec}}
	handler := NewViewChangeHandler(committee)

	pubKeyFor := func(crypto.Address) ([]byte, bool) { return rec.PubKey, true }

	var lastCommitted [32]byte
	msg, err := SignViewChange(id, 5, 1, lastCommitted)
	if err != nil {
		t.Fatalf("SignViewChange: %v", err)
	}

	if _, err := handler.Process(msg, pubKeyFor); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if _, err := handler.Process(msg, pubKeyFor); err != ErrDuplicateVote {
		t.Fatalf("second Process err = %v, want ErrDuplicateVote", err)
	}
}

func Test_ChooseBestTip_CumulativeWorkWins(t *testing.T) {
	low := TipInfo{Hash: [32]byte{1}, CumulativeWork: big.NewInt(10), BFTFinalizedHeight: 5}
	high := TipInfo{Hash: [32]byte{2}, CumulativeWork: big.NewInt(20), BFTFinalizedHeight: 1}

	best, ok := ChooseBestTip([]TipInfo{low, high})
	if !ok || best.Hash != high.Hash {
		t.Fatalf("ChooseBestTip did not pick the greater-work tip")
	}
}

func Test_ChooseBestTip_TiesBreakByFinalizedHeightThenHash(t *testing.T) {
	a := TipInfo{Hash: [32]byte{9}, CumulativeWork: big.NewInt(10), BFTFinalizedHeight: 3}
	b := TipInfo{Hash: [32]byte{1}, CumulativeWork: big.NewInt(10), BFTFinalizedHeight: 3}

	best, ok := ChooseBestTip([]TipInfo{a, b})
	if !ok || best.Hash != b.Hash {
		t.Fatalf("ChooseBestTip did not break the tie by lowest hash")
	}
}

func Test_RecordStrike_SuspendsAfterMax(t *testing.T) {
	registry := NewRegistry()
	cfg := DefaultConfig()
	_, rec := newTestValidator(t, cfg.MinStakeUnits)
	if err := registry.Register(rec, cfg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var evicted bool
	for i := 0; i < cfg.MaxMisbehaviorStrikes; i++ {
		_, evicted = registry.RecordStrike(rec.Address, 1, cfg)
	}
	if !evicted {
		t.Fatalf("validator was not evicted after MaxMisbehaviorStrikes strikes")
	}

	candidates := registry.EligibleCandidates(0)
	if len(candidates) != 0 {
		t.Fatalf("suspended validator still eligible at epoch 0")
	}

	candidates = registry.EligibleCandidates(1)
	if len(candidates) != 1 {
		t.Fatalf("validator not eligible again at its eviction epoch")
	}
}

func Test_EngineModeOffGridNeedsNoQuorum(t *testing.T) {
	registry := NewRegistry()
	cfg := DefaultConfig()
	for i := 0; i < 4; i++ {
		_, rec := newTestValidator(t, cfg.MinStakeUnits)
		if err := registry.Register(rec, cfg); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	engine := NewEngine(cfg, registry, block.ModeOffGrid)
	if engine.RequiredQuorum() != 0 {
		t.Fatalf("OFF_GRID engine requires quorum %d, want 0", engine.RequiredQuorum())
	}

	if err := engine.VerifyFinalization([32]byte{}, nil); err != nil {
		t.Fatalf("VerifyFinalization in OFF_GRID mode: %v", err)
	}
}
