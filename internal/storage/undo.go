package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/coordgrid"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
)

func timeFromUnixNano(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// AccountDelta records an account's complete prior state before a block
// was applied, letting a reorg restore it exactly rather than replaying
// every transaction in reverse. Grounded on store/undo.go's UndoSpent
// (restore the prior value, don't recompute it), generalized from a spent
// UTXO's prior entry to this chain's account-balance model.
type AccountDelta struct {
	Address crypto.Address
	Before  ledger.Account
	Existed bool // false if the account did not exist prior to this block
}

// ContractDelta records a contract's complete prior state (or its absence)
// before a block was applied.
type ContractDelta struct {
	ID      [32]byte
	Before  contract.Contract
	Existed bool
}

// CellDelta records a coordinate cell's prior counters before a block was
// applied. opTimestamps (the rolling-window buffer backing the
// ops-per-minute saturation guard) are deliberately not captured here: they are an
// unexported, bounded, self-pruning buffer, and a reorg that walks back
// only ReorgWindow blocks re-accumulates them from the next few minutes
// of traffic rather than needing byte-exact restoration.
type CellDelta struct {
	Lat, Lng int
	Before   coordgrid.Cell
}

// UndoRecord is everything needed to roll a single applied block back to
// its parent's state: every account, contract, and coordinate-cell change
// that block made, captured before-state.
type UndoRecord struct {
	AccountDeltas  []AccountDelta
	ContractDeltas []ContractDelta
	CellDeltas     []CellDelta
}

// accountFixedSize is the encoded length of one Account snapshot: address
// (20) + balance (16) + nonce (8) + reputation (8) + role.deliveries (8) +
// role.revenue (16) + role.completedContracts (8) + role.avgRating (8) +
// createdAt (8) + status (1) + existed flag (1).
const accountFixedSize = 20 + 16 + 8 + 8 + 8 + 16 + 8 + 8 + 8 + 1 + 1

// cellFixedSize is the encoded length of one Cell snapshot: lat (4) + lng
// (4) + activeContracts (8) + successes (8) + failures (8) +
// lastActivityUnixNano (8) + successRateEMA (8) + avgDurationSeconds (8).
const cellFixedSize = 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8

func putFloat64(b []byte, v float64) { binary.BigEndian.PutUint64(b, math.Float64bits(v)) }
func getFloat64(b []byte) float64    { return math.Float64frombits(binary.BigEndian.Uint64(b)) }

func encodeAccountDelta(d AccountDelta) ([]byte, error) {
	balBin, err := d.Before.Balance.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("storage: encode account delta balance: %w", err)
	}
	revBin, err := d.Before.Role.Revenue.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("storage: encode account delta revenue: %w", err)
	}

	out := make([]byte, accountFixedSize)
	off := 0
	copy(out[off:off+20], d.Address[:])
	off += 20
	copy(out[off:off+16], balBin[:])
	off += 16
	binary.BigEndian.PutUint64(out[off:off+8], d.Before.Nonce)
	off += 8
	putFloat64(out[off:off+8], d.Before.Reputation)
	off += 8
	binary.BigEndian.PutUint64(out[off:off+8], d.Before.Role.Deliveries)
	off += 8
	copy(out[off:off+16], revBin[:])
	off += 16
	binary.BigEndian.PutUint64(out[off:off+8], d.Before.Role.CompletedContracts)
	off += 8
	putFloat64(out[off:off+8], d.Before.Role.AvgRating)
	off += 8
	putFloat64(out[off:off+8], d.Before.CreatedAt)
	off += 8
	out[off] = byte(d.Before.Status)
	off++
	if d.Existed {
		out[off] = 1
	}
	return out, nil
}

func decodeAccountDelta(b []byte) (AccountDelta, error) {
	if len(b) != accountFixedSize {
		return AccountDelta{}, fmt.Errorf("storage: bad account delta length %d", len(b))
	}
	var d AccountDelta
	off := 0
	copy(d.Address[:], b[off:off+20])
	off += 20

	var balBin [16]byte
	copy(balBin[:], b[off:off+16])
	d.Before.Balance = money.UnmarshalMoney(balBin)
	off += 16

	d.Before.Nonce = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	d.Before.Reputation = getFloat64(b[off : off+8])
	off += 8
	d.Before.Role.Deliveries = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	var revBin [16]byte
	copy(revBin[:], b[off:off+16])
	d.Before.Role.Revenue = money.UnmarshalMoney(revBin)
	off += 16

	d.Before.Role.CompletedContracts = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	d.Before.Role.AvgRating = getFloat64(b[off : off+8])
	off += 8
	d.Before.CreatedAt = getFloat64(b[off : off+8])
	off += 8
	d.Before.Status = ledger.AccountStatus(b[off])
	off++
	d.Existed = b[off] == 1
	d.Before.Address = d.Address

	return d, nil
}

func encodeCellDelta(d CellDelta) []byte {
	out := make([]byte, cellFixedSize)
	off := 0
	binary.BigEndian.PutUint32(out[off:off+4], uint32(int32(d.Lat)))
	off += 4
	binary.BigEndian.PutUint32(out[off:off+4], uint32(int32(d.Lng)))
	off += 4
	binary.BigEndian.PutUint64(out[off:off+8], uint64(d.Before.ActiveContracts))
	off += 8
	binary.BigEndian.PutUint64(out[off:off+8], d.Before.Successes)
	off += 8
	binary.BigEndian.PutUint64(out[off:off+8], d.Before.Failures)
	off += 8
	binary.BigEndian.PutUint64(out[off:off+8], uint64(d.Before.LastActivity.UnixNano()))
	off += 8
	putFloat64(out[off:off+8], d.Before.SuccessRateEMA)
	off += 8
	putFloat64(out[off:off+8], d.Before.AvgDurationSeconds)
	return out
}

func decodeCellDelta(b []byte) (CellDelta, error) {
	if len(b) != cellFixedSize {
		return CellDelta{}, fmt.Errorf("storage: bad cell delta length %d", len(b))
	}
	var d CellDelta
	off := 0
	d.Lat = int(int32(binary.BigEndian.Uint32(b[off : off+4])))
	off += 4
	d.Lng = int(int32(binary.BigEndian.Uint32(b[off : off+4])))
	off += 4
	d.Before.Lat, d.Before.Lng = d.Lat, d.Lng
	d.Before.ActiveContracts = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	d.Before.Successes = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	d.Before.Failures = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	nanos := int64(binary.BigEndian.Uint64(b[off : off+8]))
	d.Before.LastActivity = timeFromUnixNano(nanos)
	off += 8
	d.Before.SuccessRateEMA = getFloat64(b[off : off+8])
	off += 8
	d.Before.AvgDurationSeconds = getFloat64(b[off : off+8])
	return d, nil
}

// encodeUndoRecord lays out counted sections: account deltas (fixed-size),
// cell deltas (fixed-size), then contract deltas as length-prefixed JSON
// blobs — the contract snapshot's checkpoint list and cargo/sensor fields
// are variable-length, so a JSON blob is used for it the same way the
// teacher JSON-encodes BlockFS for at-rest persistence despite a bit-exact
// binary wire codec for transactions.
func encodeUndoRecord(u UndoRecord) ([]byte, error) {
	var buf []byte

	var countHdr [4]byte
	binary.BigEndian.PutUint32(countHdr[:], uint32(len(u.AccountDeltas)))
	buf = append(buf, countHdr[:]...)
	for _, d := range u.AccountDeltas {
		enc, err := encodeAccountDelta(d)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	}

	binary.BigEndian.PutUint32(countHdr[:], uint32(len(u.CellDeltas)))
	buf = append(buf, countHdr[:]...)
	for _, d := range u.CellDeltas {
		buf = append(buf, encodeCellDelta(d)...)
	}

	binary.BigEndian.PutUint32(countHdr[:], uint32(len(u.ContractDeltas)))
	buf = append(buf, countHdr[:]...)
	for _, d := range u.ContractDeltas {
		type wireContractDelta struct {
			ID      [32]byte          `json:"id"`
			Before  contract.Contract `json:"before"`
			Existed bool              `json:"existed"`
		}
		blob, err := json.Marshal(wireContractDelta{ID: d.ID, Before: d.Before, Existed: d.Existed})
		if err != nil {
			return nil, fmt.Errorf("storage: encode contract delta: %w", err)
		}
		var lenHdr [4]byte
		binary.BigEndian.PutUint32(lenHdr[:], uint32(len(blob)))
		buf = append(buf, lenHdr[:]...)
		buf = append(buf, blob...)
	}

	return buf, nil
}

func decodeUndoRecord(b []byte) (UndoRecord, error) {
	var u UndoRecord
	off := 0

	readU32 := func() (uint32, error) {
		if off+4 > len(b) {
			return 0, fmt.Errorf("storage: truncated undo record")
		}
		v := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		return v, nil
	}

	accountCount, err := readU32()
	if err != nil {
		return u, err
	}
	for i := uint32(0); i < accountCount; i++ {
		if off+accountFixedSize > len(b) {
			return u, fmt.Errorf("storage: truncated account delta")
		}
		d, err := decodeAccountDelta(b[off : off+accountFixedSize])
		if err != nil {
			return u, err
		}
		off += accountFixedSize
		u.AccountDeltas = append(u.AccountDeltas, d)
	}

	cellCount, err := readU32()
	if err != nil {
		return u, err
	}
	for i := uint32(0); i < cellCount; i++ {
		if off+cellFixedSize > len(b) {
			return u, fmt.Errorf("storage: truncated cell delta")
		}
		d, err := decodeCellDelta(b[off : off+cellFixedSize])
		if err != nil {
			return u, err
		}
		off += cellFixedSize
		u.CellDeltas = append(u.CellDeltas, d)
	}

	contractCount, err := readU32()
	if err != nil {
		return u, err
	}
	for i := uint32(0); i < contractCount; i++ {
		blobLen, err := readU32()
		if err != nil {
			return u, err
		}
		if off+int(blobLen) > len(b) {
			return u, fmt.Errorf("storage: truncated contract delta")
		}
		var wire struct {
			ID      [32]byte          `json:"id"`
			Before  contract.Contract `json:"before"`
			Existed bool              `json:"existed"`
		}
		if err := json.Unmarshal(b[off:off+int(blobLen)], &wire); err != nil {
			return u, fmt.Errorf("storage: decode contract delta: %w", err)
		}
		off += int(blobLen)
		u.ContractDeltas = append(u.ContractDeltas, ContractDelta{ID: wire.ID, Before: wire.Before, Existed: wire.Existed})
	}

	return u, nil
}
