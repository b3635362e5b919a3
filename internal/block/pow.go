package block

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
)

// Mine searches for a nonce producing a header hash that meets b's
// configured difficulty, exactly the teacher's performPOW loop adapted to
// a leading-zero-*bit* target instead of leading-zero hex characters.
// evHandler receives the same "worker: PerformPOW: MINING: ..." style
// progress lines the teacher logs. Cancellation unwinds immediately,
// leaving the block's nonce at whatever value was last tried.
func Mine(ctx context.Context, b *Block, evHandler func(v string, args ...any)) error {
	evHandler("worker: PerformPOW: MINING: started")
	defer evHandler("worker: PerformPOW: MINING: completed")

	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return ctx.Err()
	}
	b.Header.Nonce = nBig.Uint64()

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			evHandler("worker: PerformPOW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			evHandler("worker: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.Header.Hash()
		if !MeetsDifficulty(hash, b.Header.Difficulty) {
			b.Header.Nonce++
			continue
		}

		evHandler("worker: PerformPOW: MINING: SOLVED: blk[%x]", hash)
		evHandler("worker: PerformPOW: MINING: attempts[%d]", attempts)
		return nil
	}
}

// Retarget computes the next difficulty from the actual time the last
// RETARGET_INTERVAL blocks took versus the target span, clamped to
// [0.25x, 4x] per spec §4.5. Difficulty here is a bit count rather than a
// Bitcoin-style numeric target, so the ratio is applied in "work" space
// (work = 2^difficulty) and converted back to the nearest bit count — the
// bit-count analogue of Bitcoin's target-adjustment arithmetic, since
// spec.md defines difficulty as "leading-zero bit count target" without
// specifying the retarget formula itself.
func Retarget(currentDifficulty uint32, actualSpanSeconds, targetSpanSeconds float64, minDifficulty uint32) uint32 {
	if actualSpanSeconds <= 0 {
		actualSpanSeconds = 1
	}

	ratio := targetSpanSeconds / actualSpanSeconds
	switch {
	case ratio > 4:
		ratio = 4
	case ratio < 0.25:
		ratio = 0.25
	}

	delta := math.Log2(ratio)
	next := int64(math.Round(float64(currentDifficulty) + delta))
	if next < int64(minDifficulty) {
		next = int64(minDifficulty)
	}
	return uint32(next)
}
