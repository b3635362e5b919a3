package consensus

import "math/big"

// TipInfo is the data fork resolution needs about a candidate chain tip.
type TipInfo struct {
	Hash               [32]byte
	CumulativeWork     *big.Int
	BFTFinalizedHeight uint64
}

// ChooseBestTip picks the canonical tip among candidates: greatest
// cumulative work first, ties broken by greatest BFT-finalized height,
// remaining ties broken by lowest hash — spec §4.7's literal tie-break
// order (DESIGN.md Open Question (b): no further tie-break is needed).
func ChooseBestTip(candidates []TipInfo) (TipInfo, bool) {
	if len(candidates) == 0 {
		return TipInfo{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best, true
}

func better(a, b TipInfo) bool {
	if cmp := a.CumulativeWork.Cmp(b.CumulativeWork); cmp != 0 {
		return cmp > 0
	}
	if a.BFTFinalizedHeight != b.BFTFinalizedHeight {
		return a.BFTFinalizedHeight > b.BFTFinalizedHeight
	}
	return lessHash(a.Hash, b.Hash)
}

func lessHash(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// WithinReorgWindow reports whether a fork tip at forkHeight is still an
// eligible reorg target from a chain currently at bestHeight.
func WithinReorgWindow(bestHeight, forkHeight uint64, window uint64) bool {
	if forkHeight >= bestHeight {
		return true
	}
	return bestHeight-forkHeight <= window
}
