package consensus

import (
	"math"
	"sync"
	"time"

	"github.com/caiorlm/logichain/internal/crypto"
)

// ViewState tracks one committee member's view number and the next
// proposal timeout, doubling on each failed round up to a cap — spec
// §4.6's "timeouts double on each view change up to a cap," grounded on
// viewchange.go's note that TimeoutManager was folded into the main
// consensus loop rather than run as a separate callback-driven timer.
type ViewState struct {
	Height  uint64
	View    uint32
	Timeout time.Duration
	max     time.Duration
}

// NewViewState starts a fresh round at view 0 with the base proposal
// timeout.
func NewViewState(height uint64, cfg Config) *ViewState {
	return &ViewState{Height: height, Timeout: cfg.ProposalTimeout, max: cfg.MaxViewChangeTimeout}
}

// OnTimeout advances to the next view and doubles the timeout, clamped to
// the configured cap.
func (vs *ViewState) OnTimeout() {
	vs.View++
	vs.Timeout = time.Duration(math.Min(float64(vs.Timeout*2), float64(vs.max)))
}

// Reset returns to view 0 for a new height once a block commits.
func (vs *ViewState) Reset(height uint64, cfg Config) {
	vs.Height = height
	vs.View = 0
	vs.Timeout = cfg.ProposalTimeout
}

// ViewChangeMsg is VIEW_CHANGE(view+1, last_committed) broadcast by a
// committee member when the expected proposer is silent past the timeout.
type ViewChangeMsg struct {
	Height        uint64
	NewView       uint32
	LastCommitted [32]byte
	Voter         crypto.Address
	Signature     crypto.Signature
}

func (m ViewChangeMsg) canonicalBytes() []byte {
	e := crypto.NewEncoder()
	e.Uint64(m.Height)
	e.Uint32(m.NewView)
	e.Fixed(m.LastCommitted[:])
	e.Fixed(m.Voter[:])
	return e.Bytes()
}

// SignViewChange builds and signs a VIEW_CHANGE message.
func SignViewChange(id crypto.Identity, height uint64, newView uint32, lastCommitted [32]byte) (ViewChangeMsg, error) {
	msg := ViewChangeMsg{Height: height, NewView: newView, LastCommitted: lastCommitted, Voter: id.Address()}
	sig, err := id.Sign(msg.canonicalBytes())
	if err != nil {
		return ViewChangeMsg{}, err
	}
	msg.Signature = sig
	return msg, nil
}

// Verify checks m's signature against the voter's known public key.
func (m ViewChangeMsg) Verify(voterPubKey []byte) error {
	switch m.Signature.Scheme {
	case crypto.SchemeEd25519:
		return crypto.VerifyEd25519(voterPubKey, m.canonicalBytes(), m.Signature)
	case crypto.SchemeECDSA:
		return crypto.VerifyECDSA(m.canonicalBytes(), m.Signature, m.Voter)
	default:
		return crypto.ErrInvalidSignature
	}
}

// ViewChangeHandler collects VIEW_CHANGE votes per (height, newView) and
// reports once a quorum of the committee has voted for the same round,
// structurally following viewchange.go's per-height/round message map and
// duplicate-voter rejection, simplified to this package's plain
// ⌊2f⌋+1-of-3f+1 threshold instead of weighted adaptive quorum.
type ViewChangeHandler struct {
	mu        sync.Mutex
	committee Committee
	votes     map[uint64]map[uint32][]ViewChangeMsg
	certified map[uint64]map[uint32]bool
}

// NewViewChangeHandler constructs a handler bound to committee.
func NewViewChangeHandler(committee Committee) *ViewChangeHandler {
	return &ViewChangeHandler{
		committee: committee,
		votes:     make(map[uint64]map[uint32][]ViewChangeMsg),
		certified: make(map[uint64]map[uint32]bool),
	}
}

// Process validates and records msg, returning true once its round first
// reaches quorum.
func (h *ViewChangeHandler) Process(msg ViewChangeMsg, pubKeyFor func(crypto.Address) ([]byte, bool)) (bool, error) {
	if h.committee.IndexOf(msg.Voter) < 0 {
		return false, ErrNotCommitteeMember
	}

	pub, ok := pubKeyFor(msg.Voter)
	if !ok {
		return false, ErrViewChangeSignatureInvalid
	}
	if err := msg.Verify(pub); err != nil {
		return false, ErrViewChangeSignatureInvalid
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.votes[msg.Height] == nil {
		h.votes[msg.Height] = make(map[uint32][]ViewChangeMsg)
	}
	for _, existing := range h.votes[msg.Height][msg.NewView] {
		if existing.Voter == msg.Voter {
			return false, ErrDuplicateVote
		}
	}
	h.votes[msg.Height][msg.NewView] = append(h.votes[msg.Height][msg.NewView], msg)

	if h.certified[msg.Height] != nil && h.certified[msg.Height][msg.NewView] {
		return true, nil
	}

	if HasQuorum(len(h.votes[msg.Height][msg.NewView]), len(h.committee.Members)) {
		if h.certified[msg.Height] == nil {
			h.certified[msg.Height] = make(map[uint32]bool)
		}
		h.certified[msg.Height][msg.NewView] = true
		return true, nil
	}
	return false, nil
}

// Cleanup drops vote/certificate bookkeeping for heights older than
// currentHeight-keepHeights, mirroring viewchange.go's Cleanup.
func (h *ViewChangeHandler) Cleanup(currentHeight, keepHeights uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var cutoff uint64
	if currentHeight > keepHeights {
		cutoff = currentHeight - keepHeights
	}
	for height := range h.votes {
		if height < cutoff {
			delete(h.votes, height)
		}
	}
	for height := range h.certified {
		if height < cutoff {
			delete(h.certified, height)
		}
	}
}
