package storage

import (
	"errors"
	"fmt"

	"github.com/caiorlm/logichain/internal/consensus"
)

// ErrReorgBeyondWindow is returned when the requested new tip forks off
// more than ReorgWindow blocks behind the current best height — spec
// §4.7's ReorgBeyondWindow error kind.
var ErrReorgBeyondWindow = errors.New("storage: fork point beyond reorg window")

// ApplyForwardFunc applies one block's transactions to the index (account
// balances/nonces, contract state transitions, coordinate-cell counters)
// and returns the before-state needed to undo it later. It is supplied by
// the caller rather than implemented in this package, the same
// externally-owned-state pattern internal/block's Lookups uses: this
// package knows how to walk and persist the chain, not how to interpret a
// transaction's payload.
type ApplyForwardFunc func(idx *Index, blockHash [32]byte, blockBytes []byte) (UndoRecord, error)

// Reorg drives the disconnect/connect sequence that moves the persisted
// chain from its current tip to a new, better tip discovered on a fork.
// Grounded on store/reorg.go's ReorgToTip, generalized from UTXO
// spent/created sets to this chain's account/contract/cell deltas.
type Reorg struct {
	dir  string
	idx  *Index
	segs *Segments
	cfg  consensus.Config
}

// NewReorg constructs a Reorg driver over an already-open index and
// segment set.
func NewReorg(dir string, idx *Index, segs *Segments, cfg consensus.Config) *Reorg {
	return &Reorg{dir: dir, idx: idx, segs: segs, cfg: cfg}
}

// findForkPoint walks both chains back via ParentHash, first to equal
// height, then together, until the hashes match — mirrors
// store/reorg.go's findForkPoint.
func (r *Reorg) findForkPoint(tipA, tipB [32]byte) ([32]byte, uint64, error) {
	entryA, ok, err := r.idx.GetBlockIndexEntry(tipA)
	if err != nil {
		return [32]byte{}, 0, err
	}
	if !ok {
		return [32]byte{}, 0, fmt.Errorf("storage: unknown tip %x", tipA)
	}
	entryB, ok, err := r.idx.GetBlockIndexEntry(tipB)
	if err != nil {
		return [32]byte{}, 0, err
	}
	if !ok {
		return [32]byte{}, 0, fmt.Errorf("storage: unknown tip %x", tipB)
	}

	hashA, heightA := tipA, entryA.Height
	hashB, heightB := tipB, entryB.Height

	for heightA > heightB {
		hashA = entryA.ParentHash
		entryA, _, err = r.idx.GetBlockIndexEntry(hashA)
		if err != nil {
			return [32]byte{}, 0, err
		}
		heightA = entryA.Height
	}
	for heightB > heightA {
		hashB = entryB.ParentHash
		entryB, _, err = r.idx.GetBlockIndexEntry(hashB)
		if err != nil {
			return [32]byte{}, 0, err
		}
		heightB = entryB.Height
	}

	for hashA != hashB {
		hashA = entryA.ParentHash
		entryA, _, err = r.idx.GetBlockIndexEntry(hashA)
		if err != nil {
			return [32]byte{}, 0, err
		}
		hashB = entryB.ParentHash
		entryB, _, err = r.idx.GetBlockIndexEntry(hashB)
		if err != nil {
			return [32]byte{}, 0, err
		}
		heightA = entryA.Height
	}

	return hashA, heightA, nil
}

// pathFromAncestor returns the chain of block hashes from just after
// ancestor up to and including tip, oldest first — mirrors
// store/reorg.go's pathFromAncestor (walk back, then reverse).
func (r *Reorg) pathFromAncestor(tip, ancestor [32]byte) ([][32]byte, error) {
	var reversed [][32]byte
	cur := tip
	for cur != ancestor {
		reversed = append(reversed, cur)
		entry, ok, err := r.idx.GetBlockIndexEntry(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("storage: unknown block %x while walking to ancestor", cur)
		}
		cur = entry.ParentHash
	}

	path := make([][32]byte, len(reversed))
	for i, h := range reversed {
		path[len(reversed)-1-i] = h
	}
	return path, nil
}

// ReorgTo moves the persisted chain from currentTip to newTip: disconnects
// blocks from currentTip down to their common ancestor with newTip by
// applying each disconnected block's undo record in reverse, then connects
// forward from the ancestor to newTip by calling applyForward on each
// block in order. currentHeight is the height of currentTip, used only for
// the reorg-window eligibility check.
func (r *Reorg) ReorgTo(currentTip [32]byte, currentHeight uint64, newTip [32]byte, applyForward ApplyForwardFunc) (*Manifest, error) {
	forkHash, forkHeight, err := r.findForkPoint(currentTip, newTip)
	if err != nil {
		return nil, err
	}
	if !consensus.WithinReorgWindow(currentHeight, forkHeight, r.cfg.ReorgWindow) {
		return nil, ErrReorgBeyondWindow
	}

	disconnectPath, err := r.pathFromAncestor(currentTip, forkHash)
	if err != nil {
		return nil, err
	}
	// Disconnect from the tip backward: undo the most recent block first.
	for i := len(disconnectPath) - 1; i >= 0; i-- {
		hash := disconnectPath[i]
		if err := r.disconnectBlock(hash); err != nil {
			return nil, fmt.Errorf("storage: disconnect %x: %w", hash, err)
		}
	}

	connectPath, err := r.pathFromAncestor(newTip, forkHash)
	if err != nil {
		return nil, err
	}
	var lastEntry BlockIndexEntry
	for _, hash := range connectPath {
		entry, err := r.connectBlock(hash, applyForward)
		if err != nil {
			// Mark this block invalid; the caller's best-tip selection
			// must not choose it again.
			entry.Status = BlockStatusInvalid
			_ = r.idx.PutBlockIndexEntry(hash, entry)
			return nil, fmt.Errorf("storage: connect %x: %w", hash, err)
		}
		lastEntry = entry
	}

	m := &Manifest{
		SchemaVersion:        SchemaVersion,
		TipHash:              newTip,
		TipHeight:            lastEntry.Height,
		TipCumulativeWorkDec: lastEntry.CumulativeWork.String(),
		CurrentSegment:       r.segs.CurrentSegment(),
	}
	if err := WriteManifestAtomic(r.dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Reorg) disconnectBlock(hash [32]byte) error {
	undo, ok, err := r.idx.GetUndo(hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("storage: missing undo record for %x", hash)
	}

	for _, d := range undo.AccountDeltas {
		if d.Existed {
			if err := r.idx.PutAccount(d.Before); err != nil {
				return err
			}
		} else if err := r.idx.DeleteAccount(d.Address); err != nil {
			return err
		}
	}
	for _, d := range undo.ContractDeltas {
		if d.Existed {
			if err := r.idx.PutContract(d.Before); err != nil {
				return err
			}
		} else if err := r.idx.DeleteContract(d.ID); err != nil {
			return err
		}
	}
	for _, d := range undo.CellDeltas {
		if err := r.idx.PutCell(d.Before); err != nil {
			return err
		}
	}

	entry, ok, err := r.idx.GetBlockIndexEntry(hash)
	if err != nil {
		return err
	}
	if ok {
		entry.Status = BlockStatusOrphaned
		if err := r.idx.PutBlockIndexEntry(hash, entry); err != nil {
			return err
		}
	}
	return r.idx.DeleteUndo(hash)
}

func (r *Reorg) connectBlock(hash [32]byte, applyForward ApplyForwardFunc) (BlockIndexEntry, error) {
	loc, ok, err := r.idx.GetBlockLocation(hash)
	if err != nil {
		return BlockIndexEntry{}, err
	}
	if !ok {
		return BlockIndexEntry{}, fmt.Errorf("storage: no stored location for %x", hash)
	}
	blockBytes, err := r.segs.Read(loc)
	if err != nil {
		return BlockIndexEntry{}, err
	}

	undo, err := applyForward(r.idx, hash, blockBytes)
	if err != nil {
		return BlockIndexEntry{}, err
	}
	if err := r.idx.PutUndo(hash, undo); err != nil {
		return BlockIndexEntry{}, err
	}

	entry, ok, err := r.idx.GetBlockIndexEntry(hash)
	if err != nil {
		return BlockIndexEntry{}, err
	}
	if !ok {
		return BlockIndexEntry{}, fmt.Errorf("storage: no block index entry for %x", hash)
	}
	entry.Status = BlockStatusValid
	if err := r.idx.PutBlockIndexEntry(hash, entry); err != nil {
		return BlockIndexEntry{}, err
	}
	if err := r.idx.PutHeightToHash(entry.Height, hash); err != nil {
		return BlockIndexEntry{}, err
	}
	return entry, nil
}
