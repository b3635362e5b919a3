package mempool

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
)

var (
	ErrNonceTooLow       = errors.New("mempool: nonce already applied")
	ErrNonceGapTooLarge  = errors.New("mempool: nonce exceeds N_GAP tolerance")
	ErrReplaceFeeTooLow  = errors.New("mempool: replacement fee_per_byte bump below RBF_MIN_BUMP")
	ErrDuplicateTx       = errors.New("mempool: duplicate transaction")
	ErrCapacityExceeded  = errors.New("mempool: pool at capacity and no lower-priority bundle to evict")
	ErrSenderRateLimited = errors.New("mempool: sender submission rate exceeded")
)

// Pool is the priority queue of pending transactions spec §2/§4.3
// describes: grouped per sender for nonce ordering and RBF, globally
// capped by byte size, with a fee+age priority score driving block
// selection. Concurrent access follows the global-then-sender lock order
// spec §4.3 mandates.
type Pool struct {
	mu              sync.RWMutex // global index lock
	bySender        map[crypto.Address]*senderQueue
	byHash          map[[32]byte]crypto.Address
	totalBytes      int
	maxBytes        int
	rbfMinBumpRatio float64

	limiterMu sync.Mutex
	limiters  map[crypto.Address]*rate.Limiter
}

// New constructs an empty Pool capped at maxBytes (MEMPOOL_MAX_BYTES) with
// the configured RBF bump ratio.
func New(maxBytes int, rbfMinBumpRatio float64) *Pool {
	return &Pool{
		bySender:        make(map[crypto.Address]*senderQueue),
		byHash:          make(map[[32]byte]crypto.Address),
		maxBytes:        maxBytes,
		rbfMinBumpRatio: rbfMinBumpRatio,
		limiters:        make(map[crypto.Address]*rate.Limiter),
	}
}

// senderLimiter lazily creates a per-sender token bucket: 10 submissions/s
// with a burst of 20, grounded on Artfain-triad-networks' rate.NewLimiter
// ingress guards (spec §5's "per-sender at the mempool boundary").
func (p *Pool) senderLimiter(addr crypto.Address) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()

	l, ok := p.limiters[addr]
	if !ok {
		l = rate.NewLimiter(rate.Limit(10), 20)
		p.limiters[addr] = l
	}
	return l
}

func (p *Pool) queueFor(addr crypto.Address, nextNonce uint64) *senderQueue {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.bySender[addr]
	if !ok {
		q = newSenderQueue(nextNonce)
		p.bySender[addr] = q
	}
	return q
}

// SetNextNonce tells the pool the confirmed next nonce for addr, called by
// the Chain actor after applying a block.
func (p *Pool) SetNextNonce(addr crypto.Address, nextNonce uint64) {
	q := p.queueFor(addr, nextNonce)
	before := q.bytes()
	q.setNextNonce(nextNonce)
	after := q.bytes()

	p.mu.Lock()
	p.totalBytes -= before - after
	p.mu.Unlock()
}

// Upsert admits tx into the pool, applying RBF if a transaction already
// occupies (from, nonce), and the per-sender rate limiter. expectedNextNonce
// is the sender's account.Nonce+1 as the Chain actor currently knows it —
// the pool does not own account state, so the ingress boundary looks this
// up and supplies it (first-submission only; later submissions reuse the
// queue's own tracked value via SetNextNonce).
func (p *Pool) Upsert(tx ledger.SignedTx, now time.Time, expectedNextNonce uint64) error {
	if !p.senderLimiter(tx.From).Allow() {
		return ErrSenderRateLimited
	}

	e, err := newEntry(tx, now)
	if err != nil {
		return err
	}

	hash := tx.Hash()

	p.mu.RLock()
	_, dup := p.byHash[hash]
	p.mu.RUnlock()
	if dup {
		return ErrDuplicateTx
	}

	q := p.queueFor(tx.From, expectedNextNonce)

	priorSize, replaced, err := q.upsert(e, p.rbfMinBumpRatio)
	if err != nil {
		return err
	}

	if !p.tryReserve(e.sizeBytes - priorSize) {
		// Roll back: the insertion already happened in the sender queue,
		// so undo it to keep totals consistent.
		q.remove(tx.Nonce)
		return ErrCapacityExceeded
	}

	p.mu.Lock()
	p.byHash[hash] = tx.From
	_ = replaced
	p.mu.Unlock()

	return nil
}

// tryReserve grows the pool's total byte counter by delta if capacity
// allows, evicting the globally lowest-priority bundle first when it does
// not. Returns false if even eviction cannot make room.
func (p *Pool) tryReserve(delta int) bool {
	if delta <= 0 {
		p.mu.Lock()
		p.totalBytes += delta
		p.mu.Unlock()
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.totalBytes+delta > p.maxBytes {
		if !p.evictLowestPriorityBundleLocked() {
			return false
		}
	}
	p.totalBytes += delta
	return true
}

// evictLowestPriorityBundleLocked drops the lowest-priority sender bundle
// (its full contiguous run) to make room. Caller holds p.mu.
func (p *Pool) evictLowestPriorityBundleLocked() bool {
	now := time.Now()

	var worstAddr crypto.Address
	var worstScore float64
	found := false

	for addr, q := range p.bySender {
		run := q.sortedContiguous()
		if len(run) == 0 {
			continue
		}
		score := bundlePriority(run, now)
		if !found || score < worstScore {
			worstScore = score
			worstAddr = addr
			found = true
		}
	}

	if !found {
		return false
	}

	q := p.bySender[worstAddr]
	run := q.sortedContiguous()
	for _, e := range run {
		q.remove(e.tx.Nonce)
		p.totalBytes -= e.sizeBytes
		delete(p.byHash, e.tx.Hash())
	}
	return true
}

func bundlePriority(run []entry, now time.Time) float64 {
	bonuses := ancestorBonuses(run)
	var sum float64
	for i, e := range run {
		sum += e.priority(now, bonuses[i])
	}
	return sum / float64(len(run))
}

// ancestorBonuses computes, per entry, how much a later (higher-nonce)
// descendant's fee rate should lift an earlier entry's priority —
// child-pays-for-parent, spec §4.3.
func ancestorBonuses(run []entry) []float64 {
	bonuses := make([]float64, len(run))
	runningMax := 0.0
	for i := len(run) - 1; i >= 0; i-- {
		bonuses[i] = runningMax - run[i].feePerByte
		if bonuses[i] < 0 {
			bonuses[i] = 0
		}
		if run[i].feePerByte > runningMax {
			runningMax = run[i].feePerByte
		}
	}
	return bonuses
}

// Remove drops tx from the pool, e.g. after block inclusion. Holds the
// global lock for the whole operation, taking the sender lock nested inside
// it, per §4.3's global-then-sender order.
func (p *Pool) Remove(addr crypto.Address, nonce uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.bySender[addr]
	if !ok {
		return
	}

	q.mu.Lock()
	e, exists := q.byNonce[nonce]
	if exists {
		delete(q.byNonce, nonce)
		q.totalBytes -= e.sizeBytes
	}
	q.mu.Unlock()

	if exists {
		p.totalBytes -= e.sizeBytes
		delete(p.byHash, e.tx.Hash())
	}
}

// Count returns the number of pending transactions across all senders.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, q := range p.bySender {
		n += q.count()
	}
	return n
}

// Bytes returns the pool's current total size.
func (p *Pool) Bytes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalBytes
}
