package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/caiorlm/logichain/internal/block"
	"github.com/caiorlm/logichain/internal/consensus"
	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/events"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
	"github.com/caiorlm/logichain/internal/storage"
)

// reserveAddress is the network-reserve sink a VALIDATED contract's
// Payouts.Reserve share is credited to. spec §4.4 names the share but not
// a destination account; a fixed well-known address (derived the same way
// any other address is, from the hash of a literal label rather than a
// real public key — it never signs anything, only receives) is simplest.
var reserveAddress = crypto.NewAddress([]byte("logichain-network-reserve"))

// pendingAttestations collects BFT attestations for a mined-but-not-yet-
// finalized block header, keyed by header hash, so MineNewBlock can block
// until quorum arrives the same way a multi-node deployment's proposer
// waits on its peers — grounded on consensus.Engine's round/quorum model,
// adapted from an implicit network wait into an explicit, polled
// in-process collector since this package owns no transport.
type pendingAttestations struct {
	mu   sync.Mutex
	cond *sync.Cond
	sigs map[[32]byte][]crypto.Signature
}

func newPendingAttestations() *pendingAttestations {
	p := &pendingAttestations{sigs: make(map[[32]byte][]crypto.Signature)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pendingAttestations) add(hash [32]byte, sig crypto.Signature) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.sigs[hash] {
		if existing.Bytes == sig.Bytes {
			return
		}
	}
	p.sigs[hash] = append(p.sigs[hash], sig)
	p.cond.Broadcast()
}

func (p *pendingAttestations) waitForQuorum(ctx context.Context, hash [32]byte, quorum int) []crypto.Signature {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
		close(done)
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.sigs[hash]) < quorum {
		select {
		case <-ctx.Done():
			out := append([]crypto.Signature(nil), p.sigs[hash]...)
			return out
		default:
		}
		p.cond.Wait()
	}
	out := append([]crypto.Signature(nil), p.sigs[hash]...)
	return out
}

func (p *pendingAttestations) clear(hash [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sigs, hash)
}

// SubmitAttestation records a committee member's signature over a
// proposed block's header hash, contributing toward the quorum
// MineNewBlock waits for before appending a locally proposed block. A
// block received through ProcessProposedBlock is checked against the
// attestations already in its own header instead.
func (c *Chain) SubmitAttestation(headerHash [32]byte, signer crypto.Address, sig crypto.Signature) error {
	if c.engine.Committee().IndexOf(signer) < 0 {
		return consensus.ErrNotCommitteeMember
	}
	pk, ok := c.publicKeyFor(signer)
	if !ok {
		return ErrUnknownSigner
	}
	if err := crypto.VerifyEd25519(pk, headerHash[:], sig); err != nil {
		return err
	}
	if c.attestations == nil {
		c.attestations = newPendingAttestations()
	}
	c.attestations.add(headerHash, sig)
	return nil
}

// buildCandidateBlock selects mempool transactions, prepends the mining
// reward coinbase, and assembles (but does not mine) the next block.
func (c *Chain) buildCandidateBlock(now float64) (*block.Block, error) {
	c.mu.Lock()
	height := c.tipHeight + 1
	parent := c.tipHash
	c.mu.Unlock()

	reward := block.Schedule(height)
	coinbase := ledger.SignedTx{Tx: ledger.Tx{
		Type:      ledger.TxMiningReward,
		From:      crypto.ZeroAddress,
		To:        c.cfg.MinerAddress,
		Amount:    reward,
		Timestamp: now,
	}}

	selected := c.mempool.Select(c.blockCfg.SizeCapBytes, 0)
	txs := append([]ledger.SignedTx{coinbase}, selected...)

	return block.New(height, parent, now, c.currentDifficulty(), c.cfg.MinerAddress, c.mode, txs)
}

// currentDifficulty returns the PoW target currently in force. Retargeting
// against DIFFICULTY_RETARGET_BLOCKS is not tracked across restarts in
// this implementation — it always resumes at genesis.Difficulty, a
// documented limitation (see DESIGN.md) rather than a full difficulty
// oracle, since tracking it exactly would require replaying every
// segment's header timestamps back to the last retarget boundary.
func (c *Chain) currentDifficulty() uint32 {
	return uint32(c.genesis.Difficulty)
}

// MineNewBlock runs spec §4.5's mining loop: assemble a candidate, search
// for a nonce meeting the difficulty target, collect BFT attestations (for
// ON_GRID blocks) up to the proposal timeout, then append it to the chain.
func (c *Chain) MineNewBlock(ctx context.Context) (*block.Block, error) {
	candidate, err := c.buildCandidateBlock(nowSeconds())
	if err != nil {
		return nil, err
	}

	if err := block.Mine(ctx, candidate, c.evHandler); err != nil {
		return nil, err
	}

	requiredQuorum := 0
	if c.mode == block.ModeOnGrid {
		requiredQuorum = c.engine.RequiredQuorum()
	}

	if requiredQuorum > 0 {
		if c.attestations == nil {
			c.attestations = newPendingAttestations()
		}
		hash := candidate.Hash()
		waitCtx, cancel := context.WithTimeout(ctx, c.consensusCfg.ProposalTimeout)
		sigs := c.attestations.waitForQuorum(waitCtx, hash, requiredQuorum)
		cancel()
		c.attestations.clear(hash)
		if len(sigs) < requiredQuorum {
			return nil, consensus.ErrQuorumNotMet
		}
		candidate.Header.Attestations = sigs
	}

	if err := c.appendBlock(candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// ProcessProposedBlock is spec §6's submit_block ingress operation: a
// fully-formed, already-attested block received from a peer. It is
// structurally and contextually validated against the current chain state
// before being appended (or triggering a reorg).
func (c *Chain) ProcessProposedBlock(b *block.Block) error {
	c.mu.Lock()
	parentHash := c.tipHash
	parentHeight := c.tipHeight
	c.mu.Unlock()

	if b.Header.ParentHash == parentHash {
		parent, err := c.loadBlockByHash(parentHash)
		if err != nil {
			return err
		}
		requiredQuorum := 0
		if c.mode == block.ModeOnGrid {
			requiredQuorum = c.engine.RequiredQuorum()
		}
		if err := block.ValidateBlock(b, parent, c.blockCfg, nowSeconds(), requiredQuorum, c.blockLookups()); err != nil {
			return err
		}
		if err := c.engine.VerifyFinalization(b.Hash(), b.Header.Attestations); err != nil {
			return err
		}
		return c.appendBlock(b)
	}

	return c.processForkCandidate(b, parentHeight)
}

func (c *Chain) blockLookups() block.Lookups {
	return block.Lookups{
		OnBestChainOrForkTip: func(parentHash [32]byte) bool {
			if parentHash == c.tipHash {
				return true
			}
			_, ok, _ := c.idx.GetBlockIndexEntry(parentHash)
			return ok
		},
		PublicKeyFor: c.publicKeyFor,
		ExpectedNonce: func(addr crypto.Address) uint64 {
			acct, ok, _ := c.idx.GetAccount(addr)
			if !ok {
				return 1
			}
			return acct.Nonce + 1
		},
		ValidateContractTx: c.validateContractTx,
	}
}

// validateContractTx checks that tx is a legal contract-state transition
// against the current persisted snapshot, without applying it — spec
// §4.5's contract-tx legality check, run once per CONTRACT_* transaction
// while validating a whole block.
func (c *Chain) validateContractTx(tx ledger.SignedTx) error {
	switch tx.Type {
	case ledger.TxContractCreate:
		p, err := contract.DecodeCreate(tx.Payload)
		if err != nil {
			return err
		}
		if _, exists, _ := c.idx.GetContract(p.ContractID); exists {
			return fmt.Errorf("chain: contract %x already exists", p.ContractID)
		}
		return nil

	case ledger.TxContractCheckpoint:
		p, err := contract.DecodeCheckpoint(tx.Payload)
		if err != nil {
			return err
		}
		ct, exists, err := c.idx.GetContract(p.ContractID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrContractNotFound
		}
		if ct.State != contract.StateOpen && ct.State != contract.StateAccepted && ct.State != contract.StateInTransit {
			return contract.ErrNotAcceptedOrTransit
		}
		return nil

	case ledger.TxContractFinalize:
		p, err := contract.DecodeFinalize(tx.Payload)
		if err != nil {
			return err
		}
		ct, exists, err := c.idx.GetContract(p.ContractID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrContractNotFound
		}
		if p.Action == contract.FinalizeValidate && ct.State != contract.StateDelivered {
			return contract.ErrNotDelivered
		}
		return nil
	}
	return nil
}

func (c *Chain) loadBlockByHash(hash [32]byte) (*block.Block, error) {
	loc, ok, err := c.idx.GetBlockLocation(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chain: block %x not found", hash)
	}
	raw, err := c.segs.Read(loc)
	if err != nil {
		return nil, err
	}
	return block.Decode(raw)
}

// appendBlock persists b as the new chain tip, extending directly from the
// current tip (no reorg needed: b.Header.ParentHash already equals it).
func (c *Chain) appendBlock(b *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded, err := b.Encode()
	if err != nil {
		return err
	}
	hash := b.Hash()

	loc, err := c.segs.Append(encoded)
	if err != nil {
		return err
	}
	if err := c.idx.PutBlockLocation(hash, loc); err != nil {
		return err
	}

	undo, err := c.applyBlockEffects(b)
	if err != nil {
		return err
	}
	if err := c.idx.PutUndo(hash, undo); err != nil {
		return err
	}

	work := consensus.WorkForDifficulty(b.Header.Difficulty)
	newWork := new(big.Int).Add(c.cumulativeWork, work)

	if err := c.idx.PutBlockIndexEntry(hash, storage.BlockIndexEntry{
		Height:         b.Height,
		ParentHash:     b.Header.ParentHash,
		CumulativeWork: newWork,
		Status:         storage.BlockStatusValid,
	}); err != nil {
		return err
	}
	if err := c.idx.PutHeightToHash(b.Height, hash); err != nil {
		return err
	}

	c.removeMinedTxsFromMempool(b)

	c.tipHash = hash
	c.tipHeight = b.Height
	c.cumulativeWork = newWork
	c.engine.AdvanceHeight(b.Height)

	if err := storage.WriteManifestAtomic(c.cfg.DataDir, &storage.Manifest{
		SchemaVersion:        storage.SchemaVersion,
		TipHash:              hash,
		TipHeight:            b.Height,
		TipCumulativeWorkDec: newWork.String(),
		CurrentSegment:       c.segs.CurrentSegment(),
	}); err != nil {
		return err
	}

	c.events.PublishBlockAppended(events.BlockAppendedData{
		BlockHash: crypto.HashHex(hash),
		Height:    b.Height,
		TxCount:   len(b.Txs),
	})
	return nil
}

// processForkCandidate handles a proposed block whose parent is not the
// current tip: it is stored as a fork block, and a reorg is triggered only
// if its chain turns out to carry more cumulative work.
func (c *Chain) processForkCandidate(b *block.Block, currentHeight uint64) error {
	parentEntry, ok, err := c.idx.GetBlockIndexEntry(b.Header.ParentHash)
	if err != nil {
		return err
	}
	if !ok || !consensus.WithinReorgWindow(currentHeight, parentEntry.Height, c.consensusCfg.ReorgWindow) {
		return ErrStaleProposal
	}

	parent, err := c.loadBlockByHash(b.Header.ParentHash)
	if err != nil {
		return err
	}
	requiredQuorum := 0
	if c.mode == block.ModeOnGrid {
		requiredQuorum = c.engine.RequiredQuorum()
	}
	if err := block.ValidateBlock(b, parent, c.blockCfg, nowSeconds(), requiredQuorum, c.blockLookups()); err != nil {
		return err
	}
	if err := c.engine.VerifyFinalization(b.Hash(), b.Header.Attestations); err != nil {
		return err
	}

	encoded, err := b.Encode()
	if err != nil {
		return err
	}
	hash := b.Hash()

	c.mu.Lock()
	loc, err := c.segs.Append(encoded)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.idx.PutBlockLocation(hash, loc); err != nil {
		c.mu.Unlock()
		return err
	}

	candidateWork := new(big.Int).Add(parentEntry.CumulativeWork, consensus.WorkForDifficulty(b.Header.Difficulty))
	if err := c.idx.PutBlockIndexEntry(hash, storage.BlockIndexEntry{
		Height:         b.Height,
		ParentHash:     b.Header.ParentHash,
		CumulativeWork: candidateWork,
		Status:         storage.BlockStatusValid,
	}); err != nil {
		c.mu.Unlock()
		return err
	}

	best, _ := consensus.ChooseBestTip([]consensus.TipInfo{
		{Hash: c.tipHash, CumulativeWork: c.cumulativeWork},
		{Hash: hash, CumulativeWork: candidateWork},
	})
	oldTip, oldHeight := c.tipHash, c.tipHeight
	c.mu.Unlock()

	if best.Hash != hash {
		return nil
	}

	manifest, err := c.reorg.ReorgTo(oldTip, oldHeight, hash, c.applyForward)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tipHash = manifest.TipHash
	c.tipHeight = manifest.TipHeight
	c.cumulativeWork = manifest.CumulativeWork()
	c.engine.AdvanceHeight(c.tipHeight)
	c.mu.Unlock()

	c.events.PublishReorg(events.ReorgData{
		OldTipHash: crypto.HashHex(oldTip),
		NewTipHash: crypto.HashHex(hash),
		ForkHeight: parentEntry.Height + 1,
	})
	return nil
}

// applyForward decodes a stored block and applies its effects, matching
// storage.ApplyForwardFunc's signature for use by Reorg.ReorgTo.
func (c *Chain) applyForward(idx *storage.Index, blockHash [32]byte, blockBytes []byte) (storage.UndoRecord, error) {
	b, err := block.Decode(blockBytes)
	if err != nil {
		return storage.UndoRecord{}, err
	}
	return c.applyBlockEffects(b)
}

// applyBlockEffects applies every transaction in b to the account/contract
// snapshot, in order, recording before-state into an UndoRecord a reorg
// can later replay backward from.
func (c *Chain) applyBlockEffects(b *block.Block) (storage.UndoRecord, error) {
	var undo storage.UndoRecord

	requiredQuorum := 0
	if c.mode == block.ModeOnGrid {
		requiredQuorum = c.engine.RequiredQuorum()
	}

	for _, tx := range b.Txs {
		if err := c.applyTx(&undo, b, tx, requiredQuorum); err != nil {
			return storage.UndoRecord{}, err
		}
	}

	if err := c.expireOverdueContracts(&undo, b.Header.Timestamp); err != nil {
		return storage.UndoRecord{}, err
	}

	return undo, nil
}

func (c *Chain) loadAccount(undo *storage.UndoRecord, addr crypto.Address, now float64) (ledger.Account, error) {
	acct, existed, err := c.idx.GetAccount(addr)
	if err != nil {
		return ledger.Account{}, err
	}
	undo.AccountDeltas = append(undo.AccountDeltas, storage.AccountDelta{Address: addr, Before: acct, Existed: existed})
	if !existed {
		acct = ledger.NewAccount(addr, money.Zero(), now)
	}
	return acct, nil
}

func (c *Chain) loadContract(undo *storage.UndoRecord, id [32]byte) (contract.Contract, bool, error) {
	ct, existed, err := c.idx.GetContract(id)
	if err != nil {
		return contract.Contract{}, false, err
	}
	undo.ContractDeltas = append(undo.ContractDeltas, storage.ContractDelta{ID: id, Before: ct, Existed: existed})
	return ct, existed, nil
}

func (c *Chain) applyTx(undo *storage.UndoRecord, b *block.Block, tx ledger.SignedTx, requiredQuorum int) error {
	now := b.Header.Timestamp

	switch tx.Type {
	case ledger.TxMiningReward:
		if tx.To.IsZero() {
			return nil
		}
		miner, err := c.loadAccount(undo, tx.To, now)
		if err != nil {
			return err
		}
		miner.Balance, err = miner.Balance.Add(tx.Amount)
		if err != nil {
			return err
		}
		return c.idx.PutAccount(miner)

	case ledger.TxTransfer:
		return c.applyTransfer(undo, b, tx)

	case ledger.TxContractCreate:
		return c.applyContractCreate(undo, b, tx)

	case ledger.TxContractCheckpoint:
		return c.applyContractCheckpoint(undo, b, tx)

	case ledger.TxContractFinalize:
		return c.applyContractFinalize(undo, b, tx, requiredQuorum)
	}
	return nil
}

func (c *Chain) applyTransfer(undo *storage.UndoRecord, b *block.Block, tx ledger.SignedTx) error {
	now := b.Header.Timestamp

	sender, err := c.loadAccount(undo, tx.From, now)
	if err != nil {
		return err
	}
	total, err := tx.Amount.Add(tx.Fee)
	if err != nil {
		return err
	}
	sender.Balance, err = sender.Balance.Sub(total)
	if err != nil {
		return err
	}
	if sender.Balance.IsNegative() {
		return fmt.Errorf("chain: insufficient balance for transfer from %s", tx.From)
	}
	sender.Nonce++
	if err := c.idx.PutAccount(sender); err != nil {
		return err
	}

	recipient, err := c.loadAccount(undo, tx.To, now)
	if err != nil {
		return err
	}
	recipient.Balance, err = recipient.Balance.Add(tx.Amount)
	if err != nil {
		return err
	}
	if err := c.idx.PutAccount(recipient); err != nil {
		return err
	}

	if tx.Fee.IsZero() || b.Header.MinerAddress.IsZero() {
		return nil
	}
	miner, err := c.loadAccount(undo, b.Header.MinerAddress, now)
	if err != nil {
		return err
	}
	miner.Balance, err = miner.Balance.Add(tx.Fee)
	if err != nil {
		return err
	}
	return c.idx.PutAccount(miner)
}

func (c *Chain) applyContractCreate(undo *storage.UndoRecord, b *block.Block, tx ledger.SignedTx) error {
	now := b.Header.Timestamp

	p, err := contract.DecodeCreate(tx.Payload)
	if err != nil {
		return err
	}

	if _, err := c.grid.RecordOp(p.Pickup.Lat, p.Pickup.Lng, time.Unix(int64(now), 0).UTC()); err != nil {
		return err
	}

	creator, err := c.loadAccount(undo, tx.From, now)
	if err != nil {
		return err
	}
	creator.Balance, err = creator.Balance.Sub(p.Escrow)
	if err != nil {
		return err
	}
	if creator.Balance.IsNegative() {
		return fmt.Errorf("chain: insufficient balance to escrow contract %x", p.ContractID)
	}
	creator.Nonce++
	if err := c.idx.PutAccount(creator); err != nil {
		return err
	}

	ct := contract.NewContract(p.ContractID, tx.From, p.Pickup, p.Delivery, p.ToleranceRadiusMeters, p.MaxErrorMeters, p.Cargo, p.Escrow, now, p.ExpiresAt)
	undo.ContractDeltas = append(undo.ContractDeltas, storage.ContractDelta{ID: p.ContractID, Existed: false})
	if err := c.idx.PutContract(*ct); err != nil {
		return err
	}
	contract.SetGridActive(c.grid, ct, 1)
	c.trackActiveContract(p.ContractID)
	c.publishContractStateChanged(p.ContractID, contract.State(0), ct.State)
	return nil
}

func (c *Chain) applyContractCheckpoint(undo *storage.UndoRecord, b *block.Block, tx ledger.SignedTx) error {
	now := b.Header.Timestamp

	p, err := contract.DecodeCheckpoint(tx.Payload)
	if err != nil {
		return err
	}

	if _, err := c.grid.RecordOp(p.Checkpoint.Coord.Lat, p.Checkpoint.Coord.Lng, time.Unix(int64(now), 0).UTC()); err != nil {
		return err
	}

	ct, existed, err := c.loadContract(undo, p.ContractID)
	if err != nil {
		return err
	}
	if !existed {
		return ErrContractNotFound
	}

	driverPubKey, _ := c.publicKeyFor(tx.From)

	before := ct.State
	if ct.State == contract.StateOpen {
		reputation := 0.5
		if driverAcct, ok, err := c.idx.GetAccount(tx.From); err != nil {
			return err
		} else if ok {
			reputation = driverAcct.Reputation
		}
		if err := contract.Accept(&ct, tx.From, reputation, c.contractCfg); err != nil {
			return err
		}
	}

	if err := contract.ApplyCheckpoint(&ct, p.Checkpoint, driverPubKey, now, c.contractCfg); err != nil {
		return err
	}

	if err := c.idx.PutContract(ct); err != nil {
		return err
	}
	c.publishContractStateChanged(p.ContractID, before, ct.State)
	return nil
}

func (c *Chain) applyContractFinalize(undo *storage.UndoRecord, b *block.Block, tx ledger.SignedTx, requiredQuorum int) error {
	now := b.Header.Timestamp

	p, err := contract.DecodeFinalize(tx.Payload)
	if err != nil {
		return err
	}

	ct, existed, err := c.loadContract(undo, p.ContractID)
	if err != nil {
		return err
	}
	if !existed {
		return ErrContractNotFound
	}

	before := ct.State

	switch p.Action {
	case contract.FinalizeValidate:
		baseReward := block.Schedule(b.Height)
		payouts, err := contract.Validate(&ct, p.Attestations, requiredQuorum, baseReward, p.Validators, c.contractCfg)
		if err != nil {
			return err
		}
		if err := c.creditPayouts(undo, now, payouts); err != nil {
			return err
		}
		contract.RecordGridOutcome(c.grid, &ct, true, now-ct.CreatedAt)
		contract.SetGridActive(c.grid, &ct, -1)
		c.untrackActiveContract(p.ContractID)

	case contract.FinalizeDispute:
		if err := contract.Dispute(&ct, p.DisputeReason); err != nil {
			return err
		}
		contract.SetGridActive(c.grid, &ct, -1)
		c.untrackActiveContract(p.ContractID)
	}

	if err := c.idx.PutContract(ct); err != nil {
		return err
	}
	c.publishContractStateChanged(p.ContractID, before, ct.State)
	return nil
}

func (c *Chain) publishContractStateChanged(id [32]byte, from, to contract.State) {
	if from == to {
		return
	}
	c.events.PublishContractStateChanged(events.ContractStateChangedData{
		ContractID: crypto.HashHex(id),
		FromState:  from.String(),
		ToState:    to.String(),
	})
}

func (c *Chain) creditPayouts(undo *storage.UndoRecord, now float64, payouts contract.Payouts) error {
	credit := func(addr crypto.Address, amt money.Money) error {
		acct, err := c.loadAccount(undo, addr, now)
		if err != nil {
			return err
		}
		acct.Balance, err = acct.Balance.Add(amt)
		if err != nil {
			return err
		}
		acct.Role.CompletedContracts++
		return c.idx.PutAccount(acct)
	}

	if err := credit(payouts.Driver.To, payouts.Driver.Amount); err != nil {
		return err
	}
	for _, p := range payouts.Pool {
		if err := credit(p.To, p.Amount); err != nil {
			return err
		}
	}
	return credit(reserveAddress, payouts.Reserve)
}

// expireOverdueContracts applies the time-triggered "any -> EXPIRED" rule
// (spec §4.4) to every contract this node has tracked as active and not
// yet terminal. Tracking is in-memory only (populated at CONTRACT_CREATE
// time within this process's lifetime) — a freshly restarted node will not
// re-discover older open contracts to expire until they are next
// referenced by a transaction; see DESIGN.md's Open Questions.
func (c *Chain) expireOverdueContracts(undo *storage.UndoRecord, now float64) error {
	for _, id := range c.activeContractIDs() {
		ct, existed, err := c.loadContract(undo, id)
		if err != nil {
			return err
		}
		if !existed || ct.State.IsTerminal() {
			c.untrackActiveContract(id)
			continue
		}
		before := ct.State
		if err := contract.Expire(&ct, now); err != nil {
			return err
		}
		if ct.State == before {
			continue
		}
		contract.RecordGridOutcome(c.grid, &ct, false, 0)
		contract.SetGridActive(c.grid, &ct, -1)
		c.untrackActiveContract(id)
		if err := c.idx.PutContract(ct); err != nil {
			return err
		}
		c.publishContractStateChanged(id, before, ct.State)
	}
	return nil
}

func (c *Chain) trackActiveContract(id [32]byte) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	if c.activeContracts == nil {
		c.activeContracts = make(map[[32]byte]struct{})
	}
	c.activeContracts[id] = struct{}{}
}

func (c *Chain) untrackActiveContract(id [32]byte) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	delete(c.activeContracts, id)
}

func (c *Chain) activeContractIDs() [][32]byte {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	ids := make([][32]byte, 0, len(c.activeContracts))
	for id := range c.activeContracts {
		ids = append(ids, id)
	}
	return ids
}

func (c *Chain) removeMinedTxsFromMempool(b *block.Block) {
	for _, tx := range b.Txs {
		if tx.Type == ledger.TxMiningReward {
			continue
		}
		c.mempool.Remove(tx.From, tx.Nonce)
		if acct, ok, _ := c.idx.GetAccount(tx.From); ok {
			c.mempool.SetNextNonce(tx.From, acct.Nonce+1)
		}
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
