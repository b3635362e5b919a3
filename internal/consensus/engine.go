package consensus

import (
	"github.com/caiorlm/logichain/internal/block"
	"github.com/caiorlm/logichain/internal/crypto"
)

// Engine is the per-height consensus state the single-writer Chain actor
// drives: the active committee, the in-flight view, and the view-change
// handler collecting votes for the current round. It owns no storage —
// block application and persistence stay with the Chain actor and
// internal/storage, per spec §5's single-writer-actor scheduling model.
type Engine struct {
	cfg       Config
	registry  *Registry
	committee Committee
	view      *ViewState
	vc        *ViewChangeHandler
	mode      block.ModeTag
}

// NewEngine starts an engine for height 0's committee and mode.
func NewEngine(cfg Config, registry *Registry, mode block.ModeTag) *Engine {
	committee := SelectCommittee(0, registry.EligibleCandidates(0), cfg.CommitteeSize)
	return &Engine{
		cfg:       cfg,
		registry:  registry,
		committee: committee,
		view:      NewViewState(0, cfg),
		vc:        NewViewChangeHandler(committee),
		mode:      mode,
	}
}

// Committee returns the currently active committee.
func (e *Engine) Committee() Committee { return e.committee }

// View returns the current round's view state.
func (e *Engine) View() *ViewState { return e.view }

// RequiredQuorum returns the attestation count a block at the engine's
// current height needs to finalize: 0 for OFF_GRID (spec §4.8 disables
// the BFT requirement entirely), ⌊2f⌋+1 of the committee otherwise.
func (e *Engine) RequiredQuorum() int {
	if e.mode == block.ModeOffGrid {
		return 0
	}
	_, q := Thresholds(len(e.committee.Members))
	return q
}

// AdvanceHeight rotates the committee if height lands on an epoch
// boundary, resets the view state for the new round, and prunes
// view-change bookkeeping older than the reorg window.
func (e *Engine) AdvanceHeight(height uint64) {
	epoch := EpochOf(height, e.cfg.EpochBlocks)
	if IsEpochBoundary(height, e.cfg.EpochBlocks) {
		e.registry.ResetStrikesAtEpoch(epoch)
		e.committee = SelectCommittee(epoch, e.registry.EligibleCandidates(epoch), e.cfg.CommitteeSize)
		e.vc = NewViewChangeHandler(e.committee)
	}
	e.view.Reset(height, e.cfg)
	e.vc.Cleanup(height, e.cfg.ReorgWindow)
}

// ExpectedProposer resolves the current round's proposer.
func (e *Engine) ExpectedProposer() (Record, bool) {
	return Proposer(e.committee, e.view.Height, e.view.View)
}

// OnProposerTimeout advances the view, marking a missed proposal, and
// records a ProposerMisbehavior strike against the silent proposer.
// evictionEpoch is the epoch at which a now-suspended validator becomes
// eligible again.
func (e *Engine) OnProposerTimeout(evictionEpoch uint64) (strikes int, evicted bool) {
	proposer, ok := e.ExpectedProposer()
	e.view.OnTimeout()
	if !ok {
		return 0, false
	}
	return e.registry.RecordStrike(proposer.Address, evictionEpoch, e.cfg)
}

// ProcessViewChange feeds a VIEW_CHANGE vote into the handler for the
// current round.
func (e *Engine) ProcessViewChange(msg ViewChangeMsg) (bool, error) {
	return e.vc.Process(msg, e.registry.PublicKeyFor)
}

// VerifyFinalization checks a candidate block's BFT attestations against
// the active committee's quorum requirement.
func (e *Engine) VerifyFinalization(headerHash [32]byte, attestations []crypto.Signature) error {
	if e.RequiredQuorum() == 0 {
		return nil
	}
	return VerifyAttestationQuorum(headerHash, attestations, e.committee)
}
