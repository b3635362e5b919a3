package mempool

import (
	"sort"
	"time"

	"github.com/caiorlm/logichain/internal/ledger"
)

// Select returns the highest-priority block-eligible transactions, in
// inclusion order, filling up to maxBytes. Adapted from the teacher's
// selector.tipSelect row algorithm: pick each sender's next contiguous
// entry in priority rounds so nonce order is preserved within a sender
// while competing senders are interleaved by fee. minFeePerByte implements
// the "aggregate fee/size clears the block-minimum" CPFP rule — a sender
// bundle whose aggregate fee/size falls short is dropped in full rather
// than partially included.
func (p *Pool) Select(maxBytes int, minFeePerByte float64) []ledger.SignedTx {
	now := time.Now()

	p.mu.RLock()
	senders := make([]*senderQueue, 0, len(p.bySender))
	for _, q := range p.bySender {
		senders = append(senders, q)
	}
	p.mu.RUnlock()

	type bundle struct {
		addr string
		run  []entry
	}

	var bundles []bundle
	for _, q := range senders {
		run := q.sortedContiguous()
		if len(run) == 0 {
			continue
		}
		if aggregateFeePerByte(run) < minFeePerByte {
			continue
		}
		bundles = append(bundles, bundle{run: run})
	}

	// Build selection rows: row r takes the r'th entry from every bundle
	// that still has one, exactly as the teacher's tipSelect does, so a
	// sender's entries are only ever chosen in nonce order.
	var rows [][]entry
	for {
		var row []entry
		remaining := false
		for i := range bundles {
			if len(bundles[i].run) > 0 {
				row = append(row, bundles[i].run[0])
				bundles[i].run = bundles[i].run[1:]
				remaining = true
			}
		}
		if !remaining {
			break
		}
		rows = append(rows, row)
	}

	var selected []ledger.SignedTx
	usedBytes := 0

	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool {
			pi := row[i].priority(now, 0)
			pj := row[j].priority(now, 0)
			if pi != pj {
				return pi > pj
			}
			return row[i].receivedAt.Before(row[j].receivedAt)
		})

		for _, e := range row {
			if usedBytes+e.sizeBytes > maxBytes {
				return selected
			}
			selected = append(selected, e.tx)
			usedBytes += e.sizeBytes
		}
	}

	return selected
}
